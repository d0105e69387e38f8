package report

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() *Table {
	return &Table{
		Name:    NameYearOverYearChange,
		Columns: []string{"Year", "YoY Change (%)"},
		Rows: [][]any{
			{int64(2015), nil},
			{int64(2016), 12.5},
			{int64(2017), -75.0},
		},
	}
}

func readExport(t *testing.T, path string) string {
	t.Helper()

	r, cleanup, err := crimesql.OpenDecompressed(path)
	require.NoError(t, err)
	defer cleanup()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestExport_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		options model.ExportOptions
		want    string
	}{
		{
			name:    "csv",
			options: model.NewExportOptions(),
			want:    "Year,YoY Change (%)\n2015,\n2016,12.5\n2017,-75\n",
		},
		{
			name:    "tsv gzip",
			options: model.NewExportOptions().WithFormat(model.OutputFormatTSV).WithCompression(model.CompressionGZ),
			want:    "Year\tYoY Change (%)\n2015\t\n2016\t12.5\n2017\t-75\n",
		},
		{
			name:    "ltsv zstd",
			options: model.NewExportOptions().WithFormat(model.OutputFormatLTSV).WithCompression(model.CompressionZSTD),
			want:    "Year:2015\tYoY Change (%):\nYear:2016\tYoY Change (%):12.5\nYear:2017\tYoY Change (%):-75\n",
		},
		{
			name:    "csv xz",
			options: model.NewExportOptions().WithCompression(model.CompressionXZ),
			want:    "Year,YoY Change (%)\n2015,\n2016,12.5\n2017,-75\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "yoy"+tt.options.FileExtension())
			require.NoError(t, Export(sampleTable(), path, tt.options))
			assert.Equal(t, tt.want, readExport(t, path))
		})
	}
}

func TestExport_Parquet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "yoy.parquet")
	require.NoError(t, Export(sampleTable(), path, model.NewExportOptions().WithFormat(model.OutputFormatParquet)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pf, err := pqfile.NewParquetReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	schema, err := fr.Schema()
	require.NoError(t, err)

	require.Equal(t, 2, schema.NumFields())
	assert.Equal(t, "Year", schema.Field(0).Name)
	assert.Equal(t, arrow.INT64, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(1).Type.ID())
	assert.Equal(t, int64(3), pf.NumRows())
}

func TestExport_XLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "yoy.xlsx")
	require.NoError(t, Export(sampleTable(), path, model.NewExportOptions().WithFormat(model.OutputFormatXLSX)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{NameYearOverYearChange}, f.GetSheetList())
	rows, err := f.GetRows(NameYearOverYearChange)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Year", "YoY Change (%)"},
		{"2015"},
		{"2016", "12.5"},
		{"2017", "-75"},
	}, rows)
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	t.Run("nil table", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, Export(nil, filepath.Join(t.TempDir(), "x.csv"), model.NewExportOptions()))
	})

	t.Run("bzip2 output is unsupported", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "x.csv.bz2")
		err := Export(sampleTable(), path, model.NewExportOptions().WithCompression(model.CompressionBZ2))
		assert.ErrorIs(t, err, crimesql.ErrUnsupported)
		assert.NoFileExists(t, path)
	})
}

func TestExportAll(t *testing.T) {
	t.Parallel()

	tables, err := All(context.Background(), openFixture(t), model.DefaultRelation)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "reports")
	options := model.NewExportOptions().WithCompression(model.CompressionGZ)
	paths, err := ExportAll(tables, dir, options)
	require.NoError(t, err)
	require.Len(t, paths, len(tables))

	assert.Equal(t, filepath.Join(dir, NameIUCRSummary+".csv.gz"), paths[0])
	for _, path := range paths {
		assert.FileExists(t, path)
	}
	assert.Equal(t,
		"Location,Crime Count\nSTREET,4\nRESIDENCE,2\nSIDEWALK,2\n",
		readExport(t, filepath.Join(dir, NameTopLocations+".csv.gz")))
}

func TestSheetName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "top_crime_types", SheetName("top_crime_types"))
	assert.Equal(t, "a_b_c", SheetName("a/b?c"))
	assert.Equal(t, "Sheet1", SheetName(""))
	assert.Len(t, []rune(SheetName("crime_types_by_top_location_and_more")), 31)
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "THEFT", FormatValue("THEFT"))
	assert.Equal(t, "2015", FormatValue(int64(2015)))
	assert.Equal(t, "87.5", FormatValue(87.5))
}
