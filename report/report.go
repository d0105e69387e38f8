// Package report runs the fixed aggregation queries over a loaded incident
// relation and returns each result as a self-describing Table.
//
// Every function takes the query handle explicitly. Callers open the store,
// pass its *sql.DB (or a *sql.Tx) and close it when they are done:
//
//	store, err := crimesql.OpenSQLite("crimes.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	table, err := report.TopCrimeTypes(ctx, store.DB(), model.DefaultRelation)
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingColumn is returned when the relation lacks a column a report reads.
	ErrMissingColumn = errors.New("report: missing column")
	// ErrRelationNotFound is returned when the relation does not exist.
	ErrRelationNotFound = errors.New("report: relation not found")
)

// Querier is the read capability every report needs. *sql.DB, *sql.Conn and
// *sql.Tx all satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Table is a tabular query result.
// Row values are nil, int64, float64 or string.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Values returns the values of the named column in row order.
func (t *Table) Values(name string) ([]any, error) {
	idx := t.Column(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s has no column %q", ErrMissingColumn, t.Name, name)
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Func is the signature shared by every report.
type Func func(ctx context.Context, q Querier, relation string) (*Table, error)

// Definition names a report and the function producing it.
type Definition struct {
	Name string
	Run  Func
}

// Definitions lists every report in presentation order.
func Definitions() []Definition {
	return []Definition{
		{NameIUCRSummary, IUCRSummary},
		{NameIUCRCounts, IUCRCounts},
		{NameIUCRCumulativeShare, IUCRCumulativeShare},
		{NameTopCrimeTypes, TopCrimeTypes},
		{NameCrimeTypeShare, CrimeTypeShare},
		{NameCrimesByYear, CrimesByYear},
		{NameYearOverYearChange, YearOverYearChange},
		{NameCrimesByYearAndType, CrimesByYearAndType},
		{NameTopLocations, TopLocations},
		{NameCrimeTypesByTopLocation, CrimeTypesByTopLocation},
		{NameCrimesByWeekday, CrimesByWeekday},
		{NameCrimesByMonth, CrimesByMonth},
		{NameMonthlyCountsByType, MonthlyCountsByType},
		{NameCrimesByCommunityArea, CrimesByCommunityArea},
	}
}

// All runs every report in presentation order.
//
// Reports whose columns the relation lacks are skipped; their errors are
// joined into the returned error, which then matches ErrMissingColumn. Any
// other failure stops the run.
func All(ctx context.Context, q Querier, relation string) ([]*Table, error) {
	var (
		tables  []*Table
		skipped []error
	)
	for _, def := range Definitions() {
		table, err := def.Run(ctx, q, relation)
		if errors.Is(err, ErrMissingColumn) {
			skipped = append(skipped, err)
			continue
		}
		if err != nil {
			return tables, err
		}
		tables = append(tables, table)
	}
	return tables, errors.Join(skipped...)
}

// requireColumns checks that relation declares every named column.
// SQLite compares identifiers case-insensitively.
func requireColumns(ctx context.Context, q Querier, report, relation string, names ...string) error {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, relation)
	if err != nil {
		return fmt.Errorf("%s: %w", report, err)
	}
	defer rows.Close()

	declared := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("%s: %w", report, err)
		}
		declared[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: %w", report, err)
	}

	if len(declared) == 0 {
		return fmt.Errorf("%w: %s: %q", ErrRelationNotFound, report, relation)
	}

	var missing []string
	for _, name := range names {
		if !declared[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: %s lacks %s", ErrMissingColumn, report, relation, strings.Join(missing, ", "))
	}
	return nil
}

// query runs a fixed query and collects every row.
func query(ctx context.Context, q Querier, name, text string) (*Table, error) {
	rows, err := q.QueryContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	table := &Table{Name: name, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return table, nil
}

// normalize maps driver values onto the set a Table holds.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.Format(time.DateTime)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// asInt64 reads a count column.
func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	default:
		return 0
	}
}
