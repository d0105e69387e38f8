package crimesql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nao1215/crimesql/domain/model"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// driverName is the database/sql driver name registered by modernc.org/sqlite.
const driverName = "sqlite"

// Appender is the bulk-append capability of a store.
//
// The first append to a relation creates it with the given schema, even when
// records is empty. Later appends insert by column name; every schema column
// must already exist in the relation.
type Appender interface {
	AppendBatch(ctx context.Context, relation string, schema model.Schema, records []model.Record) error
}

// Transactor is implemented by stores that can group several appends into one transaction.
// If fn returns an error nothing appended through the provided Appender is kept.
type Transactor interface {
	InTx(ctx context.Context, fn func(Appender) error) error
}

// RelationCounter is implemented by stores that can report the row count of a relation.
type RelationCounter interface {
	Count(ctx context.Context, relation string) (int64, error)
}

// SQLiteStore keeps relations in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Appender        = (*SQLiteStore)(nil)
	_ Transactor      = (*SQLiteStore)(nil)
	_ RelationCounter = (*SQLiteStore)(nil)
)

// OpenSQLite opens (or creates) the SQLite file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, NewErrorContext("open store", path).Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, NewErrorContext("open store", path).Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an open SQLite handle. The handle is limited to one
// open connection so that appends to the file are serialized.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}
}

// DB returns the underlying handle, usable as a report.Querier.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendBatch appends records in a transaction of its own.
func (s *SQLiteStore) AppendBatch(ctx context.Context, relation string, schema model.Schema, records []model.Record) error {
	return s.InTx(ctx, func(a Appender) error {
		return a.AppendBatch(ctx, relation, schema, records)
	})
}

// InTx runs fn inside one transaction and commits it when fn succeeds.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Appender) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewErrorContext("begin transaction", "").Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}

	if err := fn(&txAppender{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewErrorContext("commit transaction", "").Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return nil
}

// Exists reports whether relation exists.
func (s *SQLiteStore) Exists(ctx context.Context, relation string) (bool, error) {
	return relationExists(ctx, s.db, relation)
}

// Count returns the number of rows in relation, zero when it does not exist.
func (s *SQLiteStore) Count(ctx context.Context, relation string) (int64, error) {
	exists, err := s.Exists(ctx, relation)
	if err != nil || !exists {
		return 0, err
	}

	var count int64
	query := "SELECT COUNT(*) FROM " + quoteIdent(relation) //nolint:gosec // identifier is quoted
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, NewErrorContext("count", "").WithRelation(relation).Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return count, nil
}

// RelationSchema returns the declared columns of relation, nil when it does not exist.
func (s *SQLiteStore) RelationSchema(ctx context.Context, relation string) (model.Schema, error) {
	return relationSchema(ctx, s.db, relation)
}

// queryer is the read side shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txAppender appends through an open transaction.
type txAppender struct {
	tx *sql.Tx
}

// AppendBatch implements Appender.
func (a *txAppender) AppendBatch(ctx context.Context, relation string, schema model.Schema, records []model.Record) error {
	ec := NewErrorContext("append", "").WithRelation(relation)
	if len(schema) == 0 {
		return ec.Error(fmt.Errorf("%w: batch has no columns", ErrSchemaMismatch))
	}

	existing, err := relationSchema(ctx, a.tx, relation)
	if err != nil {
		return err
	}

	if existing == nil {
		if err := createRelation(ctx, a.tx, relation, schema); err != nil {
			return ec.Error(fmt.Errorf("%w: failed to create relation: %w", ErrIOFailure, err))
		}
		existing = schema
	} else if missing := missingColumns(existing, schema); len(missing) > 0 {
		return ec.WithDetails("columns not in relation: " + strings.Join(missing, ", ")).Error(ErrSchemaMismatch)
	}
	declared := declaredTypes(existing, schema)

	if len(records) == 0 {
		return nil
	}

	stmt, err := a.tx.PrepareContext(ctx, insertQuery(relation, schema))
	if err != nil {
		return ec.Error(fmt.Errorf("%w: failed to prepare insert statement: %w", ErrIOFailure, err))
	}
	defer stmt.Close()

	values := make([]any, len(schema))
	for i, record := range records {
		if len(record) != len(schema) {
			return ec.WithDetails(fmt.Sprintf("record %d has %d fields, schema has %d", i, len(record), len(schema))).
				Error(ErrSchemaMismatch)
		}
		for j, value := range record {
			if value == "" {
				values[j] = nil
				continue
			}
			if !declared[j].Accepts(value) {
				return ec.WithDetails(fmt.Sprintf("record %d: %s value %q does not fit column %q",
					i, declared[j], value, schema[j].Name)).Error(ErrSchemaMismatch)
			}
			values[j] = value
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return ec.Error(fmt.Errorf("%w: failed to insert record: %w", ErrIOFailure, err))
		}
	}
	return nil
}

func relationExists(ctx context.Context, q queryer, relation string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		relation,
	).Scan(&count)
	if err != nil {
		return false, NewErrorContext("check relation", "").WithRelation(relation).
			Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return count > 0, nil
}

func relationSchema(ctx context.Context, q queryer, relation string) (model.Schema, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, relation)
	if err != nil {
		return nil, NewErrorContext("read relation schema", "").WithRelation(relation).
			Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	defer rows.Close()

	var schema model.Schema
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, NewErrorContext("read relation schema", "").WithRelation(relation).
				Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
		}
		schema = append(schema, model.ColumnInfo{Name: name, Type: declaredType(declared)})
	}
	if err := rows.Err(); err != nil {
		return nil, NewErrorContext("read relation schema", "").WithRelation(relation).
			Error(fmt.Errorf("%w: %w", ErrIOFailure, err))
	}
	return schema, nil
}

func declaredType(declared string) model.ColumnType {
	switch strings.ToUpper(declared) {
	case "INTEGER":
		return model.ColumnTypeInteger
	case "REAL":
		return model.ColumnTypeReal
	default:
		return model.ColumnTypeText
	}
}

func createRelation(ctx context.Context, tx *sql.Tx, relation string, schema model.Schema) error {
	columns := make([]string, 0, len(schema))
	for _, col := range schema {
		columns = append(columns, quoteIdent(col.Name)+" "+col.Type.String())
	}

	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (%s)`,
		quoteIdent(relation),
		strings.Join(columns, ", "),
	)
	_, err := tx.ExecContext(ctx, query)
	return err
}

func insertQuery(relation string, schema model.Schema) string {
	columns := make([]string, len(schema))
	placeholders := make([]string, len(schema))
	for i, col := range schema {
		columns[i] = quoteIdent(col.Name)
		placeholders[i] = "?"
	}

	return fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s)`,
		quoteIdent(relation),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

// declaredTypes returns the relation's declared type of every schema column.
// Values are checked against these, since column affinity decides how SQLite stores them.
func declaredTypes(relation, schema model.Schema) []model.ColumnType {
	types := make([]model.ColumnType, len(schema))
	for i, col := range schema {
		if idx := relation.Index(col.Name); idx >= 0 {
			types[i] = relation[idx].Type
		}
	}
	return types
}

// missingColumns lists schema columns the relation does not declare.
// SQLite compares identifiers case-insensitively.
func missingColumns(relation, schema model.Schema) []string {
	var missing []string
	for _, col := range schema {
		if relation.Index(col.Name) < 0 {
			missing = append(missing, col.Name)
		}
	}
	return missing
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

