package crimesql

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/xuri/excelize/v2"
)

// utf8BOM is stripped from the first header cell of delimited sources.
const utf8BOM = "\ufeff"

// rowSource yields the header and then the data rows of one source, in order.
type rowSource interface {
	// Header returns the column names. It returns io.EOF for a source without a header row.
	Header() (model.Header, error)
	// Next returns the next data row or io.EOF.
	Next() (model.Record, error)
	Close() error
}

// newRowSource builds the row source for fileType on top of an already decompressed reader.
// closer releases whatever the reader was opened from.
func newRowSource(fileType model.FileType, reader io.Reader, closer func() error) (rowSource, error) {
	switch {
	case fileType.IsDelimited():
		return newDelimitedSource(reader, fileType.Delimiter(), closer), nil
	case fileType == model.FileTypeParquet:
		src, err := newParquetSource(reader, closer)
		if err != nil {
			_ = closer()
			return nil, err
		}
		return src, nil
	case fileType == model.FileTypeXLSX:
		src, err := newXLSXSource(reader, closer)
		if err != nil {
			_ = closer()
			return nil, err
		}
		return src, nil
	default:
		_ = closer()
		return nil, fmt.Errorf("%w: file type %s", ErrUnsupported, fileType)
	}
}

// delimitedSource reads CSV or TSV with encoding/csv.
type delimitedSource struct {
	reader *csv.Reader
	closer func() error
}

func newDelimitedSource(reader io.Reader, delimiter rune, closer func() error) *delimitedSource {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = delimiter
	// Zero pins every row to the width of the header row.
	csvReader.FieldsPerRecord = 0
	return &delimitedSource{reader: csvReader, closer: closer}
}

func (s *delimitedSource) Header() (model.Header, error) {
	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrIOFailure, err)
	}
	if len(record) > 0 {
		record[0] = strings.TrimPrefix(record[0], utf8BOM)
	}
	return model.NewHeader(record), nil
}

func (s *delimitedSource) Next() (model.Record, error) {
	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return model.NewRecord(record), nil
}

func (s *delimitedSource) Close() error {
	return s.closer()
}

// parquetSource walks a Parquet file record batch by record batch.
type parquetSource struct {
	pqReader *pqfile.Reader
	records  pqarrow.RecordReader
	header   model.Header
	current  arrow.Record
	row      int
	closer   func() error
}

func newParquetSource(reader io.Reader, closer func() error) (*parquetSource, error) {
	input, size, err := parquetInput(reader)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return &parquetSource{closer: closer}, nil
	}

	pqReader, err := pqfile.NewParquetReader(input)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create parquet reader: %w", ErrIOFailure, err)
	}

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		_ = pqReader.Close()
		return nil, fmt.Errorf("%w: failed to create arrow reader: %w", ErrIOFailure, err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		_ = pqReader.Close()
		return nil, fmt.Errorf("%w: failed to read parquet schema: %w", ErrIOFailure, err)
	}
	header := make(model.Header, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	records, err := arrowReader.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		_ = pqReader.Close()
		return nil, fmt.Errorf("%w: failed to create record reader: %w", ErrIOFailure, err)
	}

	return &parquetSource{
		pqReader: pqReader,
		records:  records,
		header:   header,
		closer:   closer,
	}, nil
}

// parquetInput returns random access to the Parquet bytes and their size.
// The footer sits at the end of the file, so an uncompressed file positioned at
// its start is read in place; any other stream is buffered whole.
func parquetInput(reader io.Reader) (parquet.ReaderAtSeeker, int64, error) {
	if ras, ok := reader.(parquet.ReaderAtSeeker); ok {
		if pos, err := ras.Seek(0, io.SeekCurrent); err == nil && pos == 0 {
			size, err := ras.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: failed to size parquet data: %w", ErrIOFailure, err)
			}
			// The section hides Close; the source closer owns the file.
			return io.NewSectionReader(ras, 0, size), size, nil
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read parquet data: %w", ErrIOFailure, err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func (s *parquetSource) Header() (model.Header, error) {
	if s.pqReader == nil {
		return nil, io.EOF
	}
	return s.header, nil
}

func (s *parquetSource) Next() (model.Record, error) {
	if s.records == nil {
		return nil, io.EOF
	}
	for s.current == nil || int64(s.row) >= s.current.NumRows() {
		if !s.records.Next() {
			if err := s.records.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: failed to read parquet records: %w", ErrIOFailure, err)
			}
			return nil, io.EOF
		}
		s.current = s.records.Record()
		s.row = 0
	}

	row := make(model.Record, s.current.NumCols())
	for j, col := range s.current.Columns() {
		if col.IsNull(s.row) {
			continue
		}
		row[j] = col.ValueStr(s.row)
	}
	s.row++
	return row, nil
}

func (s *parquetSource) Close() error {
	if s.records != nil {
		s.records.Release()
	}
	var err error
	if s.pqReader != nil {
		err = s.pqReader.Close()
	}
	if closeErr := s.closer(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// xlsxSource reads the first sheet of a workbook through the excelize row iterator.
type xlsxSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	sheet  string
	width  int
	closer func() error
}

func newXLSXSource(reader io.Reader, closer func() error) (*xlsxSource, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open XLSX file: %w", ErrIOFailure, err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		_ = file.Close()
		return &xlsxSource{closer: closer}, nil
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: failed to open rows iterator for sheet %s: %w", ErrIOFailure, sheets[0], err)
	}

	return &xlsxSource{
		file:   file,
		rows:   rows,
		sheet:  sheets[0],
		closer: closer,
	}, nil
}

func (s *xlsxSource) Header() (model.Header, error) {
	if s.rows == nil {
		return nil, io.EOF
	}
	for s.rows.Next() {
		row, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row in sheet %s: %w", ErrIOFailure, s.sheet, err)
		}
		// Skip leading empty rows
		if len(row) == 0 {
			continue
		}
		s.width = len(row)
		return model.NewHeader(row), nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %w", ErrIOFailure, s.sheet, err)
	}
	return nil, io.EOF
}

func (s *xlsxSource) Next() (model.Record, error) {
	if s.rows == nil || !s.rows.Next() {
		if s.rows != nil {
			if err := s.rows.Error(); err != nil {
				return nil, fmt.Errorf("%w: failed to read sheet %s: %w", ErrIOFailure, s.sheet, err)
			}
		}
		return nil, io.EOF
	}

	row, err := s.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read row in sheet %s: %w", ErrIOFailure, s.sheet, err)
	}
	if len(row) > s.width {
		return nil, fmt.Errorf("%w: sheet %s row has %d cells, header has %d", ErrSchemaMismatch, s.sheet, len(row), s.width)
	}
	// excelize drops trailing empty cells
	record := make(model.Record, s.width)
	copy(record, row)
	return record, nil
}

func (s *xlsxSource) Close() error {
	var err error
	if s.rows != nil {
		err = s.rows.Close()
	}
	if s.file != nil {
		if closeErr := s.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	if closeErr := s.closer(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
