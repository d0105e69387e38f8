package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/crimesql/domain/model"
)

// weekdays lists the days of the week starting on Monday.
var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// CrimesByWeekday returns the incident count per day of the week, Monday first.
// Dates that do not parse are skipped. Columns: Day of Week, Number of Crimes.
func CrimesByWeekday(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimesByWeekday, relation, model.ColumnDate); err != nil {
		return nil, err
	}

	var counts [7]int64
	err := scanDates(ctx, db, NameCrimesByWeekday, relation, false, func(t time.Time, _ string) {
		counts[t.Weekday()]++
	})
	if err != nil {
		return nil, err
	}

	table := &Table{Name: NameCrimesByWeekday, Columns: []string{"Day of Week", "Number of Crimes"}}
	for _, day := range weekdays {
		table.Rows = append(table.Rows, []any{day.String(), counts[day]})
	}
	return table, nil
}

// CrimesByMonth returns the incident count per calendar month across all years,
// January first. Dates that do not parse are skipped.
// Columns: Month, Number of Crimes.
func CrimesByMonth(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimesByMonth, relation, model.ColumnDate); err != nil {
		return nil, err
	}

	var counts [12]int64
	err := scanDates(ctx, db, NameCrimesByMonth, relation, false, func(t time.Time, _ string) {
		counts[t.Month()-1]++
	})
	if err != nil {
		return nil, err
	}

	table := &Table{Name: NameCrimesByMonth, Columns: []string{"Month", "Number of Crimes"}}
	for m := time.January; m <= time.December; m++ {
		table.Rows = append(table.Rows, []any{m.String(), counts[m-1]})
	}
	return table, nil
}

// MonthlyCountsByType returns the incident count of every primary type in every
// calendar month. Types are sorted by name; months run January to December and
// months without incidents hold zero. Columns: Primary Type, Month, Count.
func MonthlyCountsByType(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameMonthlyCountsByType, relation, model.ColumnDate, model.ColumnPrimaryType); err != nil {
		return nil, err
	}

	counts := make(map[string]*[12]int64)
	err := scanDates(ctx, db, NameMonthlyCountsByType, relation, true, func(t time.Time, crimeType string) {
		c, ok := counts[crimeType]
		if !ok {
			c = new([12]int64)
			counts[crimeType] = c
		}
		c[t.Month()-1]++
	})
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.Sort(types)

	table := &Table{Name: NameMonthlyCountsByType, Columns: []string{"Primary Type", "Month", "Count"}}
	for _, t := range types {
		for m := time.January; m <= time.December; m++ {
			table.Rows = append(table.Rows, []any{t, m.String(), counts[t][m-1]})
		}
	}
	return table, nil
}

// scanDates calls fn for every incident whose date parses. When withType is
// set the primary type is passed along, otherwise fn receives "".
func scanDates(ctx context.Context, db Querier, name, relation string, withType bool, fn func(time.Time, string)) error {
	text := fmt.Sprintf(`SELECT %s FROM %s`, cD, quoteIdent(relation))
	if withType {
		text = fmt.Sprintf(`SELECT %s, %s FROM %s`, cD, cT, quoteIdent(relation))
	}

	rows, err := db.QueryContext(ctx, text)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var date, crimeType any
		dest := []any{&date}
		if withType {
			dest = append(dest, &crimeType)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		t, ok := incidentTime(date)
		if !ok {
			continue
		}
		fn(t, label(normalize(crimeType)))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// incidentTime converts a stored Date value to a time.
func incidentTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := model.ParseTime(x)
		return t, err == nil
	case []byte:
		t, err := model.ParseTime(string(x))
		return t, err == nil
	default:
		return time.Time{}, false
	}
}
