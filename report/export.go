package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/xuri/excelize/v2"
)

// Export writes table to path in the format and compression given by options.
// The file extension is not checked against options.
func Export(table *Table, path string, options model.ExportOptions) (err error) {
	if table == nil {
		return errors.New("report: nil table")
	}

	w, cleanup, err := crimesql.CreateCompressed(path, options.Compression)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	switch options.Format {
	case model.OutputFormatCSV:
		err = writeDelimited(w, table, ',')
	case model.OutputFormatTSV:
		err = writeDelimited(w, table, '\t')
	case model.OutputFormatLTSV:
		err = writeLTSV(w, table)
	case model.OutputFormatParquet:
		err = writeParquet(w, table)
	case model.OutputFormatXLSX:
		err = writeXLSX(w, table)
	default:
		err = fmt.Errorf("%w: output format %v", crimesql.ErrUnsupported, options.Format)
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", table.Name, err)
	}
	return nil
}

// ExportAll writes every table into dir as <name><extension> and returns the
// paths written.
func ExportAll(tables []*Table, dir string, options model.ExportOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", crimesql.ErrIOFailure, err)
	}

	paths := make([]string, 0, len(tables))
	for _, table := range tables {
		path := filepath.Join(dir, table.Name+options.FileExtension())
		if err := Export(table, path, options); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeDelimited(w io.Writer, table *Table, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	record := make([]string, len(table.Columns))
	for _, row := range table.Rows {
		for i, v := range row {
			record[i] = FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	ltsvLabelReplacer = strings.NewReplacer(":", "_", "\t", "_", "\n", "_", "\r", "_")
	ltsvValueReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
)

// writeLTSV writes one label:value line per row.
func writeLTSV(w io.Writer, table *Table) error {
	labels := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		labels[i] = ltsvLabelReplacer.Replace(c)
	}

	var sb strings.Builder
	for _, row := range table.Rows {
		sb.Reset()
		for i, v := range row {
			if i > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(labels[i])
			sb.WriteByte(':')
			sb.WriteString(ltsvValueReplacer.Replace(FormatValue(v)))
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// arrowSchema derives a nullable arrow field per column from the values it holds.
func arrowSchema(table *Table) *arrow.Schema {
	fields := make([]arrow.Field, len(table.Columns))
	for i, name := range table.Columns {
		fields[i] = arrow.Field{Name: name, Type: columnArrowType(table, i), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func columnArrowType(table *Table, col int) arrow.DataType {
	hasInt, hasFloat := false, false
	for _, row := range table.Rows {
		switch row[col].(type) {
		case nil:
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		default:
			return arrow.BinaryTypes.String
		}
	}
	if hasFloat {
		return arrow.PrimitiveTypes.Float64
	}
	if hasInt {
		return arrow.PrimitiveTypes.Int64
	}
	return arrow.BinaryTypes.String
}

func writeParquet(w io.Writer, table *Table) error {
	schema := arrowSchema(table)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for _, row := range table.Rows {
		for i, v := range row {
			switch b := builder.Field(i).(type) {
			case *array.Int64Builder:
				if v == nil {
					b.AppendNull()
					continue
				}
				b.Append(v.(int64))
			case *array.Float64Builder:
				switch x := v.(type) {
				case nil:
					b.AppendNull()
				case int64:
					b.Append(float64(x))
				case float64:
					b.Append(x)
				}
			case *array.StringBuilder:
				if v == nil {
					b.AppendNull()
					continue
				}
				b.Append(FormatValue(v))
			}
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	writer, err := pqarrow.NewFileWriter(schema, w, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return err
	}
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func writeXLSX(w io.Writer, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(table.Name)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := WriteSheet(f, sheet, table); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

// WriteSheet writes the header and rows of table starting at A1 of sheet.
func WriteSheet(f *excelize.File, sheet string, table *Table) error {
	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		copy(values, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// SheetName turns name into a valid worksheet name.
func SheetName(name string) string {
	const maxSheetName = 31
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Sheet1"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}

// FormatValue renders a table value as text; nil becomes the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
