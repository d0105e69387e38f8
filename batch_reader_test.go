package crimesql

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nao1215/crimesql/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBatchReader_Chunking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chunkSize int
		wantSizes []int
	}{
		{"single batch", 10, []int{5}},
		{"exact multiple", 5, []int{5}},
		{"remainder in last batch", 2, []int{2, 2, 1}},
		{"one row per batch", 1, []int{1, 1, 1, 1, 1}},
		{"invalid size falls back to default", 0, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFixture(t, "crimes.csv", incidentCSV)
			reader, err := OpenBatchReader(path, WithChunkSize(tt.chunkSize))
			require.NoError(t, err)
			defer reader.Close()

			batches := readAll(t, reader)
			sizes := make([]int, len(batches))
			for i, b := range batches {
				sizes[i] = b.Len()
				assert.Equal(t, i, b.Index)
			}
			assert.Equal(t, tt.wantSizes, sizes)

			// The sequence stays exhausted.
			_, err = reader.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestOpenBatchReader_RowsKeepSourceOrder(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "crimes.csv", incidentCSV)
	reader, err := OpenBatchReader(path, WithChunkSize(2))
	require.NoError(t, err)
	defer reader.Close()

	var caseNumbers []string
	for _, b := range readAll(t, reader) {
		for _, r := range b.Records {
			caseNumbers = append(caseNumbers, r[1])
		}
	}
	assert.Equal(t, []string{"JA100001", "JA100002", "JA100003", "JA100004", "JA100005"}, caseNumbers)
}

func TestOpenBatchReader_Projection(t *testing.T) {
	t.Parallel()

	t.Run("selected columns keep file order", func(t *testing.T) {
		t.Parallel()

		path := writeFixture(t, "crimes.csv", incidentCSV)
		reader, err := OpenBatchReader(path, WithColumns("Year", "Case Number", "Year"))
		require.NoError(t, err)
		defer reader.Close()

		assert.Equal(t, []string{"Case Number", "Year"}, reader.Schema().Names())

		batches := readAll(t, reader)
		require.Len(t, batches, 1)
		assert.Equal(t, model.NewRecord([]string{"JA100001", "2015"}), batches[0].Records[0])
	})

	t.Run("absent column fails before any batch", func(t *testing.T) {
		t.Parallel()

		path := writeFixture(t, "crimes.csv", incidentCSV)
		_, err := OpenBatchReader(path, WithColumns("Case Number", "Ward"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Contains(t, err.Error(), "Ward")
	})
}

func TestOpenBatchReader_TypeInference(t *testing.T) {
	t.Parallel()

	t.Run("every batch carries the inferred types", func(t *testing.T) {
		t.Parallel()

		path := writeFixture(t, "crimes.csv", incidentCSV)
		reader, err := OpenBatchReader(path, WithChunkSize(2))
		require.NoError(t, err)
		defer reader.Close()

		batches := readAll(t, reader)
		require.Len(t, batches, 3)

		want := model.Schema{
			{Name: "ID", Type: model.ColumnTypeInteger},
			{Name: "Case Number", Type: model.ColumnTypeText},
			{Name: "Date", Type: model.ColumnTypeDatetime},
			{Name: "Primary Type", Type: model.ColumnTypeText},
			{Name: "IUCR", Type: model.ColumnTypeText},
			{Name: "Community Area", Type: model.ColumnTypeInteger},
			{Name: "Year", Type: model.ColumnTypeInteger},
		}
		for _, b := range batches {
			assert.Equal(t, want, b.Schema, "batch %d", b.Index)
		}
	})

	t.Run("types do not depend on the chunk size", func(t *testing.T) {
		t.Parallel()

		// A one row batch of "1320" alone would make IUCR an INTEGER column.
		content := "Case Number,IUCR\nJA1,1320\nJA2,0486\nJA3,0820\n"
		var schemas []model.Schema
		for _, size := range []int{1, 2, model.DefaultChunkSize} {
			reader, err := NewBatchReader(strings.NewReader(content), model.FileTypeCSV, WithChunkSize(size))
			require.NoError(t, err)

			var iucr []string
			for _, b := range readAll(t, reader) {
				assert.Equal(t, reader.Schema(), b.Schema)
				for _, r := range b.Records {
					iucr = append(iucr, r[1])
				}
			}
			assert.Equal(t, []string{"1320", "0486", "0820"}, iucr)
			assert.Equal(t, model.ColumnTypeText, reader.Schema()[1].Type, "chunk size %d", size)
			schemas = append(schemas, reader.Schema())
			require.NoError(t, reader.Close())
		}
		assert.Equal(t, schemas[0], schemas[1])
		assert.Equal(t, schemas[0], schemas[2])
	})

	t.Run("value outside the sample that does not fit fails the load", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := openStore(t)
		reader, err := NewBatchReader(strings.NewReader("IUCR\n1320\n0486\n"), model.FileTypeCSV,
			WithChunkSize(1), WithInferenceSample(1))
		require.NoError(t, err)
		defer reader.Close()

		var appendErr error
		for batch, err := range Batches(reader) {
			require.NoError(t, err)
			require.Equal(t, model.ColumnTypeInteger, batch.Schema[0].Type)
			if appendErr = store.AppendBatch(ctx, "crime_data", batch.Schema, batch.Records); appendErr != nil {
				break
			}
		}
		require.ErrorIs(t, appendErr, ErrSchemaMismatch)
		assert.Contains(t, appendErr.Error(), "0486")

		count, err := store.Count(ctx, "crime_data")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("inference disabled", func(t *testing.T) {
		t.Parallel()

		path := writeFixture(t, "crimes.csv", incidentCSV)
		reader, err := OpenBatchReader(path, WithTypeInference(false))
		require.NoError(t, err)
		defer reader.Close()

		batches := readAll(t, reader)
		require.Len(t, batches, 1)
		for _, col := range batches[0].Schema {
			assert.Equal(t, model.ColumnTypeText, col.Type, col.Name)
		}
	})
}

func TestOpenBatchReader_HeaderOnly(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, "crimes.csv", "Case Number,Primary Type\n")
	reader, err := OpenBatchReader(path)
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, model.TextSchema(model.NewHeader([]string{"Case Number", "Primary Type"})), reader.Schema())
}

func TestOpenBatchReader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{"duplicate header", "dup.csv", "a,b,a\n1,2,3\n", ErrSchemaMismatch},
		{"empty file", "empty.csv", "", ErrSchemaMismatch},
		{"unsupported type", "crimes.txt", "a\n1\n", ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFixture(t, tt.file, tt.content)
			_, err := OpenBatchReader(path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()

		_, err := OpenBatchReader("/non/existent/crimes.csv")
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("row width differs from header", func(t *testing.T) {
		t.Parallel()

		path := writeFixture(t, "ragged.csv", "a,b\n1,2\n3,4,5\n")
		reader, err := OpenBatchReader(path)
		require.NoError(t, err)
		defer reader.Close()

		_, err = reader.Next()
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

func TestOpenBatchReader_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(t *testing.T) string
	}{
		{"csv", func(t *testing.T) string { return writeFixture(t, "crimes.csv", incidentCSV) }},
		{"tsv", func(t *testing.T) string {
			return writeFixture(t, "crimes.tsv", strings.ReplaceAll(incidentCSV, ",", "\t"))
		}},
		{"csv gzip", func(t *testing.T) string { return writeCompressedFixture(t, "crimes.csv.gz", incidentCSV) }},
		{"csv xz", func(t *testing.T) string { return writeCompressedFixture(t, "crimes.csv.xz", incidentCSV) }},
		{"csv zstd", func(t *testing.T) string { return writeCompressedFixture(t, "crimes.csv.zst", incidentCSV) }},
		{"parquet", func(t *testing.T) string { return writeParquetFixture(t, "crimes.parquet", incidentCSV) }},
		{"xlsx", func(t *testing.T) string { return writeXLSXFixture(t, "crimes.xlsx", incidentCSV) }},
	}

	_, want := parseCSV(incidentCSV)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reader, err := OpenBatchReader(tt.write(t), WithChunkSize(3))
			require.NoError(t, err)
			defer reader.Close()

			var got []model.Record
			for _, b := range readAll(t, reader) {
				got = append(got, b.Records...)
			}
			assert.Equal(t, want, got)
			assert.Equal(t, []string{"ID", "Case Number", "Date", "Primary Type", "IUCR", "Community Area", "Year"},
				reader.Schema().Names())
		})
	}
}

func TestBatchReader_Reset(t *testing.T) {
	t.Parallel()

	t.Run("path reader reopens the file", func(t *testing.T) {
		t.Parallel()

		path := writeCompressedFixture(t, "crimes.csv.gz", incidentCSV)
		reader, err := OpenBatchReader(path, WithChunkSize(2))
		require.NoError(t, err)
		defer reader.Close()

		first := readAll(t, reader)
		require.NoError(t, reader.Reset())
		second := readAll(t, reader)
		assert.Equal(t, first, second)
	})

	t.Run("seekable stream seeks back", func(t *testing.T) {
		t.Parallel()

		reader, err := NewBatchReader(strings.NewReader(incidentCSV), model.FileTypeCSV, WithChunkSize(4))
		require.NoError(t, err)
		defer reader.Close()

		first := readAll(t, reader)
		require.NoError(t, reader.Reset())
		second := readAll(t, reader)
		assert.Equal(t, first, second)
	})

	t.Run("plain stream is not restartable", func(t *testing.T) {
		t.Parallel()

		reader, err := NewBatchReader(io.MultiReader(strings.NewReader(incidentCSV)), model.FileTypeCSV)
		require.NoError(t, err)
		defer reader.Close()

		readAll(t, reader)
		assert.ErrorIs(t, reader.Reset(), ErrNotRestartable)
	})
}

func TestNewBatchReader_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewBatchReader(nil, model.FileTypeCSV)
	assert.Error(t, err)

	_, err = NewBatchReader(strings.NewReader("a\n1\n"), model.FileTypeUnsupported)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestBatches_StopsOnError(t *testing.T) {
	t.Parallel()

	reader, err := NewBatchReader(strings.NewReader("a,b\n1,2\n3\n4,5\n"), model.FileTypeCSV, WithChunkSize(1))
	require.NoError(t, err)
	defer reader.Close()

	var (
		seen    int
		lastErr error
	)
	for batch, err := range Batches(reader) {
		if err != nil {
			lastErr = err
			continue
		}
		seen += batch.Len()
	}
	assert.Equal(t, 1, seen)
	assert.True(t, errors.Is(lastErr, ErrSchemaMismatch), "error = %v", lastErr)
}
