// Package chart turns report tables into renderer neutral chart descriptions
// and renders them into an XLSX workbook or a choropleth GeoJSON document.
//
// Builders only read the table they are given; no builder depends on another.
package chart

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/crimesql/report"
)

// ErrInvalidTable is returned when a table lacks the columns or values a chart needs.
var ErrInvalidTable = errors.New("chart: invalid table")

// Kind is the chart form.
type Kind int

const (
	// KindBar is a vertical bar chart
	KindBar Kind = iota
	// KindBarHorizontal is a horizontal bar chart
	KindBarHorizontal
	// KindBarStacked is a vertical bar chart with stacked series
	KindBarStacked
	// KindLine is a line chart
	KindLine
	// KindPie is a pie chart
	KindPie
	// KindHistogram is a frequency chart over equal width bins
	KindHistogram
	// KindTable renders the table itself
	KindTable
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindBar:
		return "bar"
	case KindBarHorizontal:
		return "bar_horizontal"
	case KindBarStacked:
		return "bar_stacked"
	case KindLine:
		return "line"
	case KindPie:
		return "pie"
	case KindHistogram:
		return "histogram"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// Series is one named sequence of values aligned with the chart categories.
// Missing values are NaN.
type Series struct {
	Name   string
	Values []float64
}

// Chart describes one chart.
type Chart struct {
	// Name identifies the chart; it is the source table name.
	Name       string
	Kind       Kind
	Title      string
	XTitle     string
	YTitle     string
	Categories []string
	Series     []Series
	// Table holds the source rows of a KindTable chart.
	Table *report.Table
}

// Bar builds a vertical bar chart of value per category.
func Bar(table *report.Table, title, category, value string) (*Chart, error) {
	return single(KindBar, table, title, category, value)
}

// HorizontalBar builds a horizontal bar chart of value per category.
func HorizontalBar(table *report.Table, title, category, value string) (*Chart, error) {
	return single(KindBarHorizontal, table, title, category, value)
}

// Line builds a line chart of value along x.
func Line(table *report.Table, title, x, value string) (*Chart, error) {
	return single(KindLine, table, title, x, value)
}

// Pie builds a pie chart of value per label.
func Pie(table *report.Table, title, label, value string) (*Chart, error) {
	return single(KindPie, table, title, label, value)
}

func single(kind Kind, table *report.Table, title, category, value string) (*Chart, error) {
	if err := checkTable(table, category, value); err != nil {
		return nil, err
	}

	labels, _ := table.Values(category)
	raw, _ := table.Values(value)
	values, err := numbers(table.Name, value, raw)
	if err != nil {
		return nil, err
	}

	return &Chart{
		Name:       table.Name,
		Kind:       kind,
		Title:      title,
		XTitle:     category,
		YTitle:     value,
		Categories: texts(labels),
		Series:     []Series{{Name: value, Values: values}},
	}, nil
}

// Histogram counts the values of column into bins of equal width.
func Histogram(table *report.Table, title, column string, bins int) (*Chart, error) {
	if bins < 1 {
		return nil, fmt.Errorf("%w: %d bins", ErrInvalidTable, bins)
	}
	if err := checkTable(table, column); err != nil {
		return nil, err
	}

	raw, _ := table.Values(column)
	all, err := numbers(table.Name, column, raw)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(all))
	for _, v := range all {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}

	c := &Chart{
		Name:   table.Name,
		Kind:   KindHistogram,
		Title:  title,
		XTitle: column,
		YTitle: "Frequency",
	}
	if len(values) == 0 {
		c.Series = []Series{{Name: "Frequency"}}
		return c, nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		bins = 1
	}
	width := (hi - lo) / float64(bins)

	counts := make([]float64, bins)
	for _, v := range values {
		idx := bins - 1
		if width > 0 {
			idx = min(int((v-lo)/width), bins-1)
		}
		counts[idx]++
	}

	c.Categories = make([]string, bins)
	for i := range bins {
		from := lo + float64(i)*width
		to := from + width
		c.Categories[i] = formatNumber(from) + "-" + formatNumber(to)
	}
	c.Series = []Series{{Name: "Frequency", Values: counts}}
	return c, nil
}

// MultiLine builds one line per distinct group value, each plotting value along x.
// Categories and series keep the order in which they first appear.
func MultiLine(table *report.Table, title, x, group, value string) (*Chart, error) {
	if err := checkTable(table, x, group, value); err != nil {
		return nil, err
	}

	xi, gi, vi := table.Column(x), table.Column(group), table.Column(value)

	c := &Chart{
		Name:   table.Name,
		Kind:   KindLine,
		Title:  title,
		XTitle: x,
		YTitle: value,
	}

	catIndex := make(map[string]int)
	seriesIndex := make(map[string]int)
	type point struct {
		series, cat int
		value       float64
	}
	points := make([]point, 0, len(table.Rows))

	for _, row := range table.Rows {
		cat := report.FormatValue(row[xi])
		ci, ok := catIndex[cat]
		if !ok {
			ci = len(c.Categories)
			catIndex[cat] = ci
			c.Categories = append(c.Categories, cat)
		}

		name := report.FormatValue(row[gi])
		si, ok := seriesIndex[name]
		if !ok {
			si = len(c.Series)
			seriesIndex[name] = si
			c.Series = append(c.Series, Series{Name: name})
		}

		v, err := number(row[vi])
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %w", ErrInvalidTable, table.Name, value, err)
		}
		points = append(points, point{si, ci, v})
	}

	for i := range c.Series {
		c.Series[i].Values = nanSlice(len(c.Categories))
	}
	for _, p := range points {
		c.Series[p.series].Values[p.cat] = p.value
	}
	return c, nil
}

// Stacked builds a stacked bar chart: the first column holds the categories and
// every other column is one series.
func Stacked(table *report.Table, title string) (*Chart, error) {
	if table == nil || len(table.Columns) < 2 {
		return nil, fmt.Errorf("%w: stacked chart needs a category column and a series column", ErrInvalidTable)
	}

	labels, _ := table.Values(table.Columns[0])
	c := &Chart{
		Name:       table.Name,
		Kind:       KindBarStacked,
		Title:      title,
		XTitle:     table.Columns[0],
		Categories: texts(labels),
	}
	for _, name := range table.Columns[1:] {
		raw, _ := table.Values(name)
		values, err := numbers(table.Name, name, raw)
		if err != nil {
			return nil, err
		}
		c.Series = append(c.Series, Series{Name: name, Values: values})
	}
	return c, nil
}

// Summary presents the table as it is.
func Summary(table *report.Table, title string) (*Chart, error) {
	if table == nil || len(table.Columns) == 0 {
		return nil, fmt.Errorf("%w: table has no columns", ErrInvalidTable)
	}
	return &Chart{
		Name:  table.Name,
		Kind:  KindTable,
		Title: title,
		Table: table,
	}, nil
}

// Default builds the standard chart of every known report table, in table
// order. Tables with an unknown name are skipped.
func Default(tables []*report.Table) ([]*Chart, error) {
	charts := make([]*Chart, 0, len(tables))
	for _, table := range tables {
		if table == nil {
			continue
		}
		build, ok := defaults[table.Name]
		if !ok {
			continue
		}
		c, err := build(table)
		if err != nil {
			return nil, err
		}
		charts = append(charts, c)
	}
	return charts, nil
}

// histogramBins is the bin count of the IUCR count distribution.
const histogramBins = 50

var defaults = map[string]func(*report.Table) (*Chart, error){
	report.NameIUCRSummary: func(t *report.Table) (*Chart, error) {
		return Summary(t, "IUCR Codes by Count")
	},
	report.NameIUCRCounts: func(t *report.Table) (*Chart, error) {
		return Histogram(t, "Distribution of IUCR Counts", "Count", histogramBins)
	},
	report.NameIUCRCumulativeShare: func(t *report.Table) (*Chart, error) {
		c, err := Line(t, "Cumulative Percentage of Counts by Top 50 IUCR's", "Rank", "Cumulative Percentage")
		if err == nil {
			c.XTitle = "IUCR Rank"
		}
		return c, err
	},
	report.NameTopCrimeTypes: func(t *report.Table) (*Chart, error) {
		c, err := HorizontalBar(t, "Top 15 Crime Types by Count", "Primary Type", "Crime Count")
		if err == nil {
			c.XTitle, c.YTitle = "Type of Crime", "Count of Crimes"
		}
		return c, err
	},
	report.NameCrimeTypeShare: func(t *report.Table) (*Chart, error) {
		return Pie(t, "Ratio of Crimes by Type", "Primary Type", "Crime Count")
	},
	report.NameCrimesByYear: func(t *report.Table) (*Chart, error) {
		c, err := Line(t, "Total Crimes Per Year", "Year", "Total Crimes")
		if err == nil {
			c.YTitle = "Count of Crimes"
		}
		return c, err
	},
	report.NameYearOverYearChange: func(t *report.Table) (*Chart, error) {
		return Line(t, "Year-over-Year Percentage Change in Crime", "Year", "YoY Change (%)")
	},
	report.NameCrimesByYearAndType: func(t *report.Table) (*Chart, error) {
		c, err := MultiLine(t, "Yearly Crime Count by Type", "Year", "Primary Type", "Crime Count")
		if err == nil {
			c.YTitle = "Count of Crimes"
		}
		return c, err
	},
	report.NameTopLocations: func(t *report.Table) (*Chart, error) {
		return HorizontalBar(t, "Top 10 Locations by Crime Count", "Location", "Crime Count")
	},
	report.NameCrimeTypesByTopLocation: func(t *report.Table) (*Chart, error) {
		c, err := Stacked(t, "Top 10 Crime Types by Location")
		if err == nil {
			c.XTitle, c.YTitle = "Location", "Crime Count"
		}
		return c, err
	},
	report.NameCrimesByWeekday: func(t *report.Table) (*Chart, error) {
		return Bar(t, "Crimes Distribution by Day of the Week", "Day of Week", "Number of Crimes")
	},
	report.NameCrimesByMonth: func(t *report.Table) (*Chart, error) {
		return Line(t, "Crimes Distribution by Month", "Month", "Number of Crimes")
	},
	report.NameMonthlyCountsByType: func(t *report.Table) (*Chart, error) {
		return MultiLine(t, "Monthly Crime Counts by Crime Type", "Month", "Primary Type", "Count")
	},
	report.NameCrimesByCommunityArea: func(t *report.Table) (*Chart, error) {
		return Bar(t, "Number of Crimes by Community Area", "Community Area", "Community Count")
	},
}

func checkTable(table *report.Table, columns ...string) error {
	if table == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidTable)
	}
	var missing []string
	for _, name := range columns {
		if table.Column(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %s", ErrInvalidTable, table.Name, strings.Join(missing, ", "))
	}
	return nil
}

func texts(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = report.FormatValue(v)
	}
	return out
}

func numbers(table, column string, values []any) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := number(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s row %d: %w", ErrInvalidTable, table, column, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// number converts a table value; nil becomes NaN.
func number(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("value %v of type %T is not numeric", v, v)
	}
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// formatNumber renders a bin edge with at most two decimals.
func formatNumber(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
