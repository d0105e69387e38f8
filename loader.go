package crimesql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nao1215/crimesql/domain/model"
)

// Atomicity decides how much of a load is rolled back when a batch fails.
type Atomicity int

const (
	// AtomicityPerBatch commits every batch on its own. Batches appended
	// before a failure stay in the relation.
	AtomicityPerBatch Atomicity = iota
	// AtomicityAll appends the whole source in one transaction. A failure
	// leaves the relation as it was before the load.
	AtomicityAll
)

// String returns the string representation of Atomicity
func (a Atomicity) String() string {
	if a == AtomicityAll {
		return "all"
	}
	return "per-batch"
}

// ExistingPolicy decides what happens when the target relation already holds rows.
// No policy ever deletes existing rows.
type ExistingPolicy int

const (
	// ExistingAppend appends to the relation. Loading the same file twice doubles its rows.
	ExistingAppend ExistingPolicy = iota
	// ExistingFail refuses to load into a non-empty relation.
	ExistingFail
)

// String returns the string representation of ExistingPolicy
func (p ExistingPolicy) String() string {
	if p == ExistingFail {
		return "fail"
	}
	return "append"
}

// LoadResult summarizes a finished load.
type LoadResult struct {
	// Relation is the relation the rows were appended to.
	Relation string
	// Source is the source path, empty for stream readers.
	Source string
	// Columns are the loaded column names in relation order.
	Columns []string
	// Rows is the number of rows appended.
	Rows int
	// Batches is the number of batches appended.
	Batches int
	// Elapsed is the wall time of the load.
	Elapsed time.Duration
}

// Loader appends the batches of a source to one relation, strictly in order.
type Loader struct {
	store     Appender
	relation  string
	chunkSize int
	columns   []string
	atomicity Atomicity
	existing  ExistingPolicy
	infer     bool
	logger    *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithRelation sets the target relation. The default is model.DefaultRelation.
func WithRelation(name string) LoaderOption {
	return func(l *Loader) {
		l.relation = name
	}
}

// WithLoadChunkSize sets the number of rows per batch. The default is model.DefaultChunkSize.
func WithLoadChunkSize(size int) LoaderOption {
	return func(l *Loader) {
		l.chunkSize = size
	}
}

// WithSelectColumns keeps only the named columns. They are stored in source header order.
func WithSelectColumns(names ...string) LoaderOption {
	return func(l *Loader) {
		l.columns = append([]string(nil), names...)
	}
}

// WithIncidentColumns keeps the fixed incident column subset.
func WithIncidentColumns() LoaderOption {
	return WithSelectColumns(model.IncidentColumns()...)
}

// WithAtomicity sets the atomicity policy. The default is AtomicityPerBatch.
func WithAtomicity(a Atomicity) LoaderOption {
	return func(l *Loader) {
		l.atomicity = a
	}
}

// WithExistingPolicy sets the existing relation policy. The default is ExistingAppend.
func WithExistingPolicy(p ExistingPolicy) LoaderOption {
	return func(l *Loader) {
		l.existing = p
	}
}

// WithInference toggles column type inference. Enabled by default.
func WithInference(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.infer = enabled
	}
}

// WithLogger sets the logger. Progress is logged at debug level, the summary at info level.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a Loader appending to store.
func NewLoader(store Appender, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:     store,
		relation:  model.DefaultRelation,
		chunkSize: model.DefaultChunkSize,
		atomicity: AtomicityPerBatch,
		existing:  ExistingAppend,
		infer:     true,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("system", "loader")
	return l
}

// LoadFile loads the source file at path into the relation.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	if err := l.prepare(ctx, path); err != nil {
		return nil, err
	}

	reader, err := OpenBatchReader(path,
		WithChunkSize(l.chunkSize),
		WithColumns(l.columns...),
		WithTypeInference(l.infer),
	)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return l.load(ctx, model.NewSourceFile(path), reader)
}

// LoadReader loads every batch of r into the relation. The read options of
// the Loader do not apply; r was configured when it was created.
func (l *Loader) LoadReader(ctx context.Context, r BatchReader) (*LoadResult, error) {
	if err := l.prepare(ctx, ""); err != nil {
		return nil, err
	}
	return l.load(ctx, nil, r)
}

// prepare validates the configuration and applies the existing relation policy.
func (l *Loader) prepare(ctx context.Context, source string) error {
	ec := NewErrorContext("load", source).WithRelation(l.relation)
	if l.store == nil {
		return ec.Error(errors.New("no store configured"))
	}
	if err := newValidator().validateRelation(l.relation); err != nil {
		return ec.Error(err)
	}
	if l.atomicity == AtomicityAll {
		if _, ok := l.store.(Transactor); !ok {
			return ec.WithDetails("atomicity all needs a transactional store").Error(ErrUnsupported)
		}
	}
	if err := ctx.Err(); err != nil {
		return ec.Error(err)
	}

	if l.existing != ExistingFail {
		return nil
	}
	counter, ok := l.store.(RelationCounter)
	if !ok {
		return ec.WithDetails("existing policy fail needs a store that counts rows").Error(ErrUnsupported)
	}
	count, err := counter.Count(ctx, l.relation)
	if err != nil {
		return err
	}
	if count > 0 {
		return ec.WithDetails(fmt.Sprintf("%d rows present", count)).Error(ErrRelationNotEmpty)
	}
	return nil
}

// load appends every batch of r. file is nil when r was not opened from a path.
func (l *Loader) load(ctx context.Context, file *model.SourceFile, r BatchReader) (*LoadResult, error) {
	start := time.Now()
	var source string
	logger := l.logger.With("relation", l.relation)
	if file != nil {
		source = file.Path()
		logger = logger.With("source", source)
		if file.IsCompressed() {
			logger = logger.With("compression", file.Compression().String())
		}
	}
	result := &LoadResult{
		Relation: l.relation,
		Source:   source,
	}

	logger.Info("load started", "atomicity", l.atomicity.String(), "existing", l.existing.String())

	appendAll := func(app Appender) error {
		result.Rows, result.Batches = 0, 0
		for {
			if err := ctx.Err(); err != nil {
				return NewErrorContext("load", source).WithRelation(l.relation).WithBatch(result.Batches).Error(err)
			}

			batch, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}

			if err := app.AppendBatch(ctx, l.relation, batch.Schema, batch.Records); err != nil {
				return NewErrorContext("load", source).WithRelation(l.relation).WithBatch(batch.Index).Error(err)
			}
			result.Rows += batch.Len()
			result.Batches++
			logger.Debug("batch appended",
				"batch", batch.Index,
				"rows", batch.Len(),
				"total", result.Rows,
				"elapsed", time.Since(start),
			)
		}

		if result.Batches == 0 {
			// Header only: the relation still gets created with the projected schema.
			return app.AppendBatch(ctx, l.relation, r.Schema(), nil)
		}
		return nil
	}

	var err error
	if l.atomicity == AtomicityAll {
		err = l.store.(Transactor).InTx(ctx, appendAll)
	} else {
		err = appendAll(l.store)
	}

	result.Columns = r.Schema().Names()
	result.Elapsed = time.Since(start)
	if err != nil {
		logger.Error("load failed", "error", err, "batches", result.Batches, "rows", result.Rows)
		return nil, err
	}

	logger.Info("load complete",
		"rows", result.Rows,
		"batches", result.Batches,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// Load opens the SQLite file at dbPath, loads sourcePath into it and closes the file.
func Load(ctx context.Context, dbPath, sourcePath string, opts ...LoaderOption) (*LoadResult, error) {
	store, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return NewLoader(store, opts...).LoadFile(ctx, sourcePath)
}
