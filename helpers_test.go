package crimesql

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// incidentCSV is a small export in the source layout, trimmed to a few columns.
const incidentCSV = `ID,Case Number,Date,Primary Type,IUCR,Community Area,Year
1001,JA100001,01/05/2015 10:30:00 AM,THEFT,0820,25,2015
1002,JA100002,01/06/2015 11:00:00 PM,BATTERY,0486,8,2015
1003,JA100003,02/10/2016 09:15:00 AM,THEFT,0820,25,2016
1004,JA100004,03/11/2016 01:45:00 PM,NARCOTICS,2027,,2016
1005,JA100005,07/04/2017 08:00:00 PM,ASSAULT,051A,43,2017
`

// writeFixture writes content to name inside a fresh temporary directory and returns the path.
func writeFixture(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// writeCompressedFixture writes content compressed according to the name suffix.
func writeCompressedFixture(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	_, compression := model.DetectFileType(name)
	writer, cleanup, err := CreateCompressed(path, compression)
	require.NoError(t, err)
	_, err = writer.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, cleanup())
	return path
}

// parseCSV splits a simple fixture without quoted fields.
func parseCSV(content string) (model.Header, []model.Record) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	header := model.NewHeader(strings.Split(lines[0], ","))
	records := make([]model.Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		records = append(records, model.NewRecord(strings.Split(line, ",")))
	}
	return header, records
}

// writeParquetFixture converts a CSV fixture into a Parquet file of string columns.
// Empty values become nulls.
func writeParquetFixture(t *testing.T, name, content string) string {
	t.Helper()

	header, records := parseCSV(content)
	fields := make([]arrow.Field, len(header))
	for i, col := range header {
		fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for _, record := range records {
		for i, value := range record {
			sb := builder.Field(i).(*array.StringBuilder)
			if value == "" {
				sb.AppendNull()
				continue
			}
			sb.Append(value)
		}
	}
	rec := builder.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, writer.Write(rec))
	require.NoError(t, writer.Close())

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// writeXLSXFixture converts a CSV fixture into the first sheet of a workbook.
func writeXLSXFixture(t *testing.T, name, content string) string {
	t.Helper()

	header, records := parseCSV(content)
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	row := make([]any, len(header))
	for i, v := range header {
		row[i] = v
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &row))
	for r, record := range records {
		values := make([]any, len(record))
		for i, v := range record {
			values[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// readAll drains a BatchReader.
func readAll(t *testing.T, r BatchReader) []*model.Batch {
	t.Helper()

	var batches []*model.Batch
	for batch, err := range Batches(r) {
		require.NoError(t, err)
		batches = append(batches, batch)
	}
	return batches
}

// openStore opens a SQLite store in a temporary directory.
func openStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "crimes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
