package crimesql

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/nao1215/crimesql/domain/model"
)

// BatchReader is a lazy, finite and restartable sequence of batches read from one source.
//
// Next returns io.EOF after the last batch. Every batch holds exactly the
// configured chunk size of rows except the last one. Reset rewinds the reader
// to the first data row so the same rows can be read again.
type BatchReader interface {
	// Next returns the next batch or io.EOF.
	Next() (*model.Batch, error)
	// Schema returns the projected schema. Column types are known once the first batch was read.
	// They come from a fixed number of leading rows, whatever the chunk size.
	Schema() model.Schema
	// Reset rewinds the reader to the first data row.
	Reset() error
	// Close releases the underlying source.
	Close() error
}

// ReadOption configures a BatchReader.
type ReadOption func(*readOptions)

type readOptions struct {
	chunkSize model.ChunkSize
	columns   []string
	infer     bool
	sample    int
}

func defaultReadOptions() readOptions {
	return readOptions{
		chunkSize: model.NewChunkSize(model.DefaultChunkSize),
		infer:     true,
		sample:    model.InferenceSampleSize,
	}
}

// WithChunkSize sets the number of rows per batch. Values below one fall back to the default.
func WithChunkSize(size int) ReadOption {
	return func(o *readOptions) {
		o.chunkSize = model.NewChunkSize(size)
	}
}

// WithColumns restricts the batches to the named columns.
// The columns keep the order in which they appear in the source header.
func WithColumns(names ...string) ReadOption {
	return func(o *readOptions) {
		o.columns = append([]string(nil), names...)
	}
}

// WithTypeInference toggles column type inference. Without it every column is TEXT.
func WithTypeInference(enabled bool) ReadOption {
	return func(o *readOptions) {
		o.infer = enabled
	}
}

// WithInferenceSample sets how many leading rows column types are inferred
// from. The sample is read ahead of the first batch, so the inferred schema
// does not depend on the chunk size. Values below one fall back to the default.
func WithInferenceSample(rows int) ReadOption {
	return func(o *readOptions) {
		if rows < 1 {
			rows = model.InferenceSampleSize
		}
		o.sample = rows
	}
}

// batchReader implements BatchReader on top of a rowSource.
type batchReader struct {
	name       string
	open       func() (rowSource, error)
	rewind     func() error
	opts       readOptions
	src        rowSource
	projection *model.Projection
	identity   bool
	schema     model.Schema
	typed      bool
	index      int
	done       bool
	// pending holds sampled rows not yet handed out; readErr is the read
	// failure that ended the sample, reported once pending is drained.
	pending []model.Record
	readErr error
}

// OpenBatchReader opens the source file at path. The format and compression are
// detected from the file name suffix. The header is read and validated before
// OpenBatchReader returns, so a selection naming an absent column fails here.
func OpenBatchReader(path string, opts ...ReadOption) (BatchReader, error) {
	if err := newValidator().validateSource(path); err != nil {
		return nil, err
	}

	source := model.NewSourceFile(path)
	r := &batchReader{
		name: source.Path(),
		open: func() (rowSource, error) {
			reader, cleanup, err := OpenDecompressed(path)
			if err != nil {
				return nil, err
			}
			return newRowSource(source.Type(), reader, cleanup)
		},
		opts: applyReadOptions(opts),
	}
	if err := r.start(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewBatchReader reads an already decompressed stream of the given file type.
// The reader can be reset only when reader implements io.Seeker.
func NewBatchReader(reader io.Reader, fileType model.FileType, opts ...ReadOption) (BatchReader, error) {
	if err := newValidator().validateReader(reader, fileType); err != nil {
		return nil, err
	}

	r := &batchReader{
		open: func() (rowSource, error) {
			return newRowSource(fileType, reader, func() error { return nil })
		},
		opts: applyReadOptions(opts),
	}

	if seeker, ok := reader.(io.Seeker); ok {
		offset, err := seeker.Seek(0, io.SeekCurrent)
		if err == nil {
			r.rewind = func() error {
				_, err := seeker.Seek(offset, io.SeekStart)
				return err
			}
		}
	}

	if err := r.start(); err != nil {
		return nil, err
	}
	return r, nil
}

func applyReadOptions(opts []ReadOption) readOptions {
	o := defaultReadOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// start opens the source, reads the header and resolves the projection.
func (r *batchReader) start() error {
	src, err := r.open()
	if err != nil {
		return r.errorContext("open").Error(err)
	}

	header, err := src.Header()
	if err != nil {
		_ = src.Close()
		if errors.Is(err, io.EOF) {
			return r.errorContext("read header").Error(fmt.Errorf("%w: source has no header row", ErrSchemaMismatch))
		}
		return r.errorContext("read header").Error(ioFailure(err))
	}

	if err := header.Validate(); err != nil {
		_ = src.Close()
		return r.errorContext("read header").Error(fmt.Errorf("%w: %w", ErrSchemaMismatch, err))
	}

	projection, missing := model.NewProjection(header, r.opts.columns)
	if len(missing) > 0 {
		_ = src.Close()
		return r.errorContext("project columns").
			WithDetails("missing columns: " + strings.Join(missing, ", ")).
			Error(ErrSchemaMismatch)
	}

	if r.schema != nil && !model.NewHeader(r.schema.Names()).Equal(projection.Header()) {
		_ = src.Close()
		return r.errorContext("reset").Error(fmt.Errorf("%w: header changed between passes", ErrSchemaMismatch))
	}

	r.src = src
	r.projection = projection
	r.identity = projection.IsIdentity(len(header))
	if r.schema == nil {
		r.schema = model.TextSchema(projection.Header())
	}
	r.index = 0
	r.done = false
	r.pending = nil
	r.readErr = nil
	return nil
}

func (r *batchReader) errorContext(operation string) *ErrorContext {
	return NewErrorContext(operation, r.name)
}

// Next implements BatchReader.
func (r *batchReader) Next() (*model.Batch, error) {
	if r.src == nil {
		return nil, io.EOF
	}
	if !r.typed {
		r.inferSchema()
	}

	size := r.opts.chunkSize.Int()
	records := make([]model.Record, 0, min(size, 1024))
	for len(records) < size {
		if len(r.pending) > 0 {
			n := min(size-len(records), len(r.pending))
			records = append(records, r.pending[:n]...)
			r.pending = r.pending[n:]
			continue
		}
		if r.readErr != nil {
			err := r.readErr
			r.readErr = nil
			r.done = true
			return nil, r.errorContext("read").WithBatch(r.index).Error(ioFailure(err))
		}
		if r.done {
			break
		}

		record, err := r.read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, r.errorContext("read").WithBatch(r.index).Error(ioFailure(err))
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	batch := &model.Batch{
		Index:   r.index,
		Schema:  r.schema,
		Records: records,
	}
	r.index++
	return batch, nil
}

// read returns the next projected record.
func (r *batchReader) read() (model.Record, error) {
	record, err := r.src.Next()
	if err != nil {
		return nil, err
	}
	if !r.identity {
		record = r.projection.Apply(record)
	}
	return record, nil
}

// inferSchema reads the inference sample ahead and types the schema from it.
// A read failure ends the sample early and is kept for the batch that reaches it.
func (r *batchReader) inferSchema() {
	r.typed = true
	if !r.opts.infer {
		return
	}
	for len(r.pending) < r.opts.sample {
		record, err := r.read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			r.readErr = err
			break
		}
		r.pending = append(r.pending, record)
	}
	r.schema = model.InferSchema(r.projection.Header(), r.pending)
}

// Schema implements BatchReader.
func (r *batchReader) Schema() model.Schema {
	return r.schema
}

// Reset implements BatchReader. Path readers reopen the file; seekable
// stream readers seek back to where they started.
func (r *batchReader) Reset() error {
	if r.name == "" && r.rewind == nil {
		return ErrNotRestartable
	}
	if r.src != nil {
		_ = r.src.Close()
		r.src = nil
	}
	if r.rewind != nil {
		if err := r.rewind(); err != nil {
			return r.errorContext("reset").Error(ioFailure(err))
		}
	}
	return r.start()
}

// Close implements BatchReader.
func (r *batchReader) Close() error {
	if r.src == nil {
		return nil
	}
	err := r.src.Close()
	r.src = nil
	r.done = true
	return err
}

// Batches adapts a BatchReader to a range-over-func sequence.
// The sequence stops after the first error.
//
//	for batch, err := range crimesql.Batches(reader) {
//		if err != nil {
//			return err
//		}
//		...
//	}
func Batches(r BatchReader) iter.Seq2[*model.Batch, error] {
	return func(yield func(*model.Batch, error) bool) {
		for {
			batch, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}
