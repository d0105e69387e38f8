package model

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IncidentTimeLayout is the timestamp layout of the Date and Updated On columns.
const IncidentTimeLayout = "01/02/2006 03:04:05 PM"

// errNotDatetime is returned by ParseTime for values no known layout matches
var errNotDatetime = errors.New("value is not a recognised datetime")

// Common datetime patterns to detect
var datetimePatterns = []struct {
	pattern *regexp.Regexp
	formats []string // Multiple formats for the same pattern
}{
	// US formats, the incident export layout, most common first
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{IncidentTimeLayout, "1/2/2006 3:04:05 PM", "1/2/2006 15:04:05", "01/02/2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
	},
	// ISO8601 formats with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO8601 formats without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"},
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"},
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
	},
}

// ParseTime parses a timestamp in any layout recognised by column inference.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, dp := range datetimePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		for _, format := range dp.formats {
			if t, err := time.Parse(format, value); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, errNotDatetime
}

// isDatetime checks if a string value represents a datetime
func isDatetime(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	_, err := ParseTime(value)
	return err == nil
}

// isZeroPadded reports whether value starts with a zero followed by another digit.
func isZeroPadded(value string) bool {
	return len(value) > 1 && value[0] == '0' && value[1] >= '0' && value[1] <= '9'
}

// Accepts reports whether a column of this type stores value as written.
// INTEGER and REAL affinity would turn a zero padded code such as "0486" into
// 486 and "1.0" into 1, so such values only fit TEXT columns.
func (ct ColumnType) Accepts(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	switch ct {
	case ColumnTypeInteger:
		if isZeroPadded(value) {
			return false
		}
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case ColumnTypeReal:
		if isZeroPadded(value) {
			return false
		}
		_, err := strconv.ParseFloat(value, 64)
		return err == nil
	default:
		return true
	}
}

// InferColumnType infers the SQL column type from a slice of string values
func InferColumnType(values []string) ColumnType {
	if len(values) == 0 {
		return ColumnTypeText
	}

	hasDatetime := false
	hasReal := false
	hasInteger := false
	hasText := false

	for _, value := range values {
		// Skip empty values for type inference
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		// Check if it's a datetime first (before checking numbers)
		if isDatetime(value) {
			hasDatetime = true
			continue
		}

		// Zero padded codes such as IUCR "0486" or Beat "0924" keep their digits
		if isZeroPadded(value) {
			hasText = true
			break
		}

		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			hasInteger = true
			continue
		}

		if _, err := strconv.ParseFloat(value, 64); err == nil {
			hasReal = true
			continue
		}

		hasText = true
		break // If any value is text, the whole column is text
	}

	// Priority: TEXT > DATETIME > REAL > INTEGER
	if hasText {
		return ColumnTypeText
	}
	if hasDatetime {
		if hasInteger || hasReal {
			return ColumnTypeText
		}
		return ColumnTypeDatetime
	}
	if hasReal {
		return ColumnTypeReal
	}
	if hasInteger {
		return ColumnTypeInteger
	}

	// Default to TEXT if no values were found
	return ColumnTypeText
}

// InferSchema infers column information from header and data records
func InferSchema(header Header, records []Record) Schema {
	columnCount := len(header)
	if columnCount == 0 {
		return nil
	}

	schema := TextSchema(header)
	if len(records) == 0 {
		return schema
	}

	values := make([]string, 0, len(records))
	for i := range columnCount {
		values = values[:0]
		for _, record := range records {
			if i < len(record) {
				values = append(values, record[i])
			}
		}
		schema[i].Type = InferColumnType(values)
	}

	return schema
}
