package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/nao1215/crimesql/domain/model"
)

// Report table names.
const (
	NameIUCRSummary             = "iucr_summary"
	NameIUCRCounts              = "iucr_counts"
	NameIUCRCumulativeShare     = "iucr_cumulative_share"
	NameTopCrimeTypes           = "top_crime_types"
	NameCrimeTypeShare          = "crime_type_share"
	NameCrimesByYear            = "crimes_by_year"
	NameYearOverYearChange      = "year_over_year_change"
	NameCrimesByYearAndType     = "crimes_by_year_and_type"
	NameTopLocations            = "top_locations"
	NameCrimeTypesByTopLocation = "crime_types_by_top_location"
	NameCrimesByWeekday         = "crimes_by_weekday"
	NameCrimesByMonth           = "crimes_by_month"
	NameMonthlyCountsByType     = "monthly_counts_by_type"
	NameCrimesByCommunityArea   = "crimes_by_community_area"
)

const (
	summaryEdge        = 5
	cumulativeShareTop = 50
	topCrimeTypes      = 15
	topLocations       = 10
	topLocationTypes   = 5
	// minorShare is the fraction under which a crime type is folded into OTHER.
	minorShare = 0.01
	// OtherCrimeType labels the folded minor crime types.
	OtherCrimeType = "OTHER"
)

// Quoted column identifiers.
var (
	cI = quoteIdent(model.ColumnIUCR)
	cT = quoteIdent(model.ColumnPrimaryType)
	cY = quoteIdent(model.ColumnYear)
	cL = quoteIdent(model.ColumnLocationDescription)
	cD = quoteIdent(model.ColumnDate)
	cC = quoteIdent(model.ColumnCommunityArea)
)

// IUCRSummary returns the five most and five least frequent IUCR codes.
// Columns: Crime Type, IUCR Code, Count.
func IUCRSummary(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameIUCRSummary, relation, model.ColumnIUCR, model.ColumnPrimaryType); err != nil {
		return nil, err
	}

	const text = `SELECT MIN(%[2]s) AS "Crime Type", %[3]s AS "IUCR Code", COUNT(%[3]s) AS "Count"
FROM %[1]s GROUP BY %[3]s ORDER BY "Count" %[4]s, %[3]s LIMIT %[5]d`

	upper, err := query(ctx, db, NameIUCRSummary, fmt.Sprintf(text, quoteIdent(relation), cT, cI, "DESC", summaryEdge))
	if err != nil {
		return nil, err
	}
	lower, err := query(ctx, db, NameIUCRSummary, fmt.Sprintf(text, quoteIdent(relation), cT, cI, "ASC", summaryEdge))
	if err != nil {
		return nil, err
	}
	upper.Rows = append(upper.Rows, lower.Rows...)
	return upper, nil
}

// IUCRCounts returns the incident count of every IUCR code, most frequent first.
// Columns: IUCR, Count.
func IUCRCounts(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameIUCRCounts, relation, model.ColumnIUCR); err != nil {
		return nil, err
	}
	return query(ctx, db, NameIUCRCounts, fmt.Sprintf(
		`SELECT %[2]s AS "IUCR", COUNT(%[2]s) AS "Count" FROM %[1]s GROUP BY %[2]s ORDER BY "Count" DESC, %[2]s`,
		quoteIdent(relation), cI))
}

// IUCRCumulativeShare returns the running share of all incidents covered by
// the top 50 IUCR codes. Columns: Rank, IUCR, Cumulative Percentage.
func IUCRCumulativeShare(ctx context.Context, db Querier, relation string) (*Table, error) {
	counts, err := IUCRCounts(ctx, db, relation)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, row := range counts.Rows {
		total += asInt64(row[1])
	}

	table := &Table{
		Name:    NameIUCRCumulativeShare,
		Columns: []string{"Rank", "IUCR", "Cumulative Percentage"},
	}
	var running int64
	for i, row := range counts.Rows {
		if i == cumulativeShareTop || total == 0 {
			break
		}
		running += asInt64(row[1])
		table.Rows = append(table.Rows, []any{
			int64(i + 1),
			row[0],
			float64(running) / float64(total) * 100,
		})
	}
	return table, nil
}

// TopCrimeTypes returns the 15 most frequent primary types.
// Columns: Primary Type, Crime Count.
func TopCrimeTypes(ctx context.Context, db Querier, relation string) (*Table, error) {
	table, err := crimeTypeCounts(ctx, db, NameTopCrimeTypes, relation)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) > topCrimeTypes {
		table.Rows = table.Rows[:topCrimeTypes]
	}
	return table, nil
}

// CrimeTypeShare returns the count of every primary type holding at least one
// percent of all incidents, followed by an OTHER row summing the rest.
// Columns: Primary Type, Crime Count.
func CrimeTypeShare(ctx context.Context, db Querier, relation string) (*Table, error) {
	counts, err := crimeTypeCounts(ctx, db, NameCrimeTypeShare, relation)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, row := range counts.Rows {
		total += asInt64(row[1])
	}
	if total == 0 {
		return counts, nil
	}

	table := &Table{Name: NameCrimeTypeShare, Columns: counts.Columns}
	var other int64
	for _, row := range counts.Rows {
		n := asInt64(row[1])
		if float64(n)/float64(total) < minorShare {
			other += n
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	table.Rows = append(table.Rows, []any{OtherCrimeType, other})
	return table, nil
}

func crimeTypeCounts(ctx context.Context, db Querier, name, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, name, relation, model.ColumnPrimaryType); err != nil {
		return nil, err
	}
	return query(ctx, db, name, fmt.Sprintf(
		`SELECT %[2]s AS "Primary Type", COUNT(*) AS "Crime Count" FROM %[1]s GROUP BY %[2]s ORDER BY "Crime Count" DESC, %[2]s`,
		quoteIdent(relation), cT))
}

// CrimesByYear returns the incident count per year, oldest first.
// Columns: Year, Total Crimes.
func CrimesByYear(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimesByYear, relation, model.ColumnYear); err != nil {
		return nil, err
	}
	return query(ctx, db, NameCrimesByYear, fmt.Sprintf(
		`SELECT %[2]s AS "Year", COUNT(*) AS "Total Crimes" FROM %[1]s GROUP BY %[2]s ORDER BY %[2]s`,
		quoteIdent(relation), cY))
}

// YearOverYearChange returns the percentage change of the yearly count against
// the previous year. The first year has no previous year and holds nil.
// Columns: Year, YoY Change (%).
func YearOverYearChange(ctx context.Context, db Querier, relation string) (*Table, error) {
	yearly, err := CrimesByYear(ctx, db, relation)
	if err != nil {
		return nil, err
	}

	table := &Table{Name: NameYearOverYearChange, Columns: []string{"Year", "YoY Change (%)"}}
	for i, row := range yearly.Rows {
		if i == 0 {
			table.Rows = append(table.Rows, []any{row[0], nil})
			continue
		}
		prev := asInt64(yearly.Rows[i-1][1])
		cur := asInt64(row[1])
		table.Rows = append(table.Rows, []any{row[0], float64(cur-prev) / float64(prev) * 100})
	}
	return table, nil
}

// CrimesByYearAndType returns the incident count of every primary type in
// every year. Pairs with no incidents are filled with zero so each type has a
// value for each year. Columns: Year, Primary Type, Crime Count.
func CrimesByYearAndType(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimesByYearAndType, relation, model.ColumnYear, model.ColumnPrimaryType); err != nil {
		return nil, err
	}
	sparse, err := query(ctx, db, NameCrimesByYearAndType, fmt.Sprintf(
		`SELECT %[2]s AS "Year", %[3]s AS "Primary Type", COUNT(*) AS "Crime Count"
FROM %[1]s GROUP BY %[2]s, %[3]s ORDER BY %[2]s, %[3]s`,
		quoteIdent(relation), cY, cT))
	if err != nil {
		return nil, err
	}
	return densify(sparse), nil
}

// TopLocations returns the ten location descriptions with the most incidents.
// Columns: Location, Crime Count.
func TopLocations(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameTopLocations, relation, model.ColumnLocationDescription); err != nil {
		return nil, err
	}
	return query(ctx, db, NameTopLocations, fmt.Sprintf(
		`SELECT %[2]s AS "Location", COUNT(*) AS "Crime Count" FROM %[1]s GROUP BY %[2]s
ORDER BY "Crime Count" DESC, %[2]s LIMIT %[3]d`,
		quoteIdent(relation), cL, topLocations))
}

// CrimeTypesByTopLocation breaks the ten busiest locations down by the five
// primary types most frequent across them. Locations are ordered by the count
// of the leading type. Columns: Location Description, then one column per type.
func CrimeTypesByTopLocation(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimeTypesByTopLocation, relation,
		model.ColumnLocationDescription, model.ColumnPrimaryType); err != nil {
		return nil, err
	}
	pairs, err := query(ctx, db, NameCrimeTypesByTopLocation, fmt.Sprintf(
		`SELECT %[2]s, %[3]s, COUNT(*) FROM %[1]s
WHERE %[2]s IN (
	SELECT %[2]s FROM %[1]s GROUP BY %[2]s ORDER BY COUNT(*) DESC, %[2]s LIMIT %[4]d
)
GROUP BY %[2]s, %[3]s ORDER BY %[2]s, COUNT(*) DESC`,
		quoteIdent(relation), cL, cT, topLocations))
	if err != nil {
		return nil, err
	}

	type cell struct{ location, crimeType string }
	counts := make(map[cell]int64)
	totals := make(map[string]int64)
	var locations []string
	for _, row := range pairs.Rows {
		location, crimeType := label(row[0]), label(row[1])
		if len(locations) == 0 || locations[len(locations)-1] != location {
			locations = append(locations, location)
		}
		n := asInt64(row[2])
		counts[cell{location, crimeType}] += n
		totals[crimeType] += n
	}

	types := make([]string, 0, len(totals))
	for t := range totals {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b string) int {
		if c := cmp.Compare(totals[b], totals[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(types) > topLocationTypes {
		types = types[:topLocationTypes]
	}

	if len(types) > 0 {
		lead := types[0]
		slices.SortStableFunc(locations, func(a, b string) int {
			return cmp.Compare(counts[cell{b, lead}], counts[cell{a, lead}])
		})
	}

	table := &Table{
		Name:    NameCrimeTypesByTopLocation,
		Columns: append([]string{model.ColumnLocationDescription}, types...),
	}
	for _, location := range locations {
		row := make([]any, 0, len(types)+1)
		row = append(row, location)
		for _, t := range types {
			row = append(row, counts[cell{location, t}])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// CrimesByCommunityArea returns the incident count of every community area.
// Incidents without a community area are left out.
// Columns: Community Area, Community Count.
func CrimesByCommunityArea(ctx context.Context, db Querier, relation string) (*Table, error) {
	if err := requireColumns(ctx, db, NameCrimesByCommunityArea, relation, model.ColumnCommunityArea); err != nil {
		return nil, err
	}
	return query(ctx, db, NameCrimesByCommunityArea, fmt.Sprintf(
		`SELECT %[2]s AS "Community Area", COUNT(%[2]s) AS "Community Count" FROM %[1]s
WHERE %[2]s IS NOT NULL GROUP BY %[2]s ORDER BY %[2]s`,
		quoteIdent(relation), cC))
}

// densify fills a (key, group, count) table so every key has a row for every group.
// Keys keep their order; groups are sorted by label.
func densify(sparse *Table) *Table {
	type cell struct{ key, group string }
	counts := make(map[cell]int64)
	var (
		keys      []any
		groups    []string
		seenKey   = make(map[string]bool)
		seenGroup = make(map[string]bool)
	)
	for _, row := range sparse.Rows {
		k, g := label(row[0]), label(row[1])
		if !seenKey[k] {
			seenKey[k] = true
			keys = append(keys, row[0])
		}
		if !seenGroup[g] {
			seenGroup[g] = true
			groups = append(groups, g)
		}
		counts[cell{k, g}] += asInt64(row[2])
	}
	slices.Sort(groups)

	dense := &Table{Name: sparse.Name, Columns: sparse.Columns}
	for _, key := range keys {
		for _, g := range groups {
			dense.Rows = append(dense.Rows, []any{key, g, counts[cell{label(key), g}]})
		}
	}
	return dense
}

// label renders a grouping value as text; NULL becomes the empty string.
func label(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
