package chart

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/nao1215/crimesql/report"
	"github.com/xuri/excelize/v2"
)

const (
	chartWidth  = 720
	chartHeight = 432
)

// WriteWorkbook renders every chart onto its own sheet of a new workbook at path.
// Each sheet holds the chart data starting at A1 and, unless the chart is a
// table or has no categories, a native chart to the right of the data.
func WriteWorkbook(path string, charts []*Chart) (err error) {
	if len(charts) == 0 {
		return errors.New("chart: no charts to write")
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	used := make(map[string]bool)
	for i, c := range charts {
		if c == nil {
			return fmt.Errorf("%w: chart %d is nil", ErrInvalidTable, i)
		}

		sheet := uniqueSheet(c.Name, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		if err := renderSheet(f, sheet, c); err != nil {
			return fmt.Errorf("chart %s: %w", c.Name, err)
		}
	}

	return f.SaveAs(path)
}

func renderSheet(f *excelize.File, sheet string, c *Chart) error {
	if c.Kind == KindTable {
		if c.Table == nil {
			return fmt.Errorf("%w: table chart without table", ErrInvalidTable)
		}
		return report.WriteSheet(f, sheet, c.Table)
	}

	if err := writeData(f, sheet, c); err != nil {
		return err
	}
	if len(c.Categories) == 0 || len(c.Series) == 0 {
		return nil
	}

	anchor, err := excelize.CoordinatesToCellName(len(c.Series)+3, 2)
	if err != nil {
		return err
	}
	return f.AddChart(sheet, anchor, nativeChart(sheet, c))
}

// writeData lays the chart out as a category column followed by one column per series.
func writeData(f *excelize.File, sheet string, c *Chart) error {
	header := make([]any, 0, len(c.Series)+1)
	header = append(header, c.XTitle)
	for _, s := range c.Series {
		header = append(header, s.Name)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, category := range c.Categories {
		row := make([]any, 0, len(c.Series)+1)
		row = append(row, category)
		for _, s := range c.Series {
			if r >= len(s.Values) || math.IsNaN(s.Values[r]) {
				row = append(row, nil)
				continue
			}
			row = append(row, s.Values[r])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func nativeChart(sheet string, c *Chart) *excelize.Chart {
	last := len(c.Categories) + 1
	ref := func(col int, from, to int) string {
		name, _ := excelize.ColumnNumberToName(col)
		return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", sheet, name, from, name, to)
	}

	series := make([]excelize.ChartSeries, 0, len(c.Series))
	for i := range c.Series {
		col, _ := excelize.ColumnNumberToName(i + 2)
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheet, col),
			Categories: ref(1, 2, last),
			Values:     ref(i+2, 2, last),
		})
		if c.Kind == KindPie {
			break
		}
	}

	chart := &excelize.Chart{
		Type:      nativeType(c.Kind),
		Series:    series,
		Title:     []excelize.RichTextRun{{Text: c.Title}},
		Legend:    excelize.ChartLegend{Position: "bottom"},
		Dimension: excelize.ChartDimension{Width: chartWidth, Height: chartHeight},
	}
	if c.Kind != KindPie {
		chart.XAxis = excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: c.XTitle}}}
		chart.YAxis = excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: c.YTitle}}}
	}
	if c.Kind == KindLine {
		chart.ShowBlanksAs = "gap"
	}
	return chart
}

func nativeType(k Kind) excelize.ChartType {
	switch k {
	case KindBarHorizontal:
		return excelize.Bar
	case KindBarStacked:
		return excelize.ColStacked
	case KindLine:
		return excelize.Line
	case KindPie:
		return excelize.Pie
	default:
		return excelize.Col
	}
}

// uniqueSheet derives a valid sheet name from name that is not yet in used.
func uniqueSheet(name string, used map[string]bool) string {
	base := report.SheetName(name)
	sheet := base
	for n := 2; used[sheet]; n++ {
		suffix := "_" + strconv.Itoa(n)
		runes := []rune(base)
		if len(runes)+len(suffix) > 31 {
			runes = runes[:31-len(suffix)]
		}
		sheet = string(runes) + suffix
	}
	used[sheet] = true
	return sheet
}
