package chart

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nao1215/crimesql/report"
)

// Feature properties set by Choropleth.
const (
	PropertyCrimeCount = "crime_count"
	PropertyFill       = "fill"
	PropertyTooltip    = "tooltip"
)

// reds is a sequential nine class red scale, lightest first.
var reds = []string{
	"#fff5f0", "#fee0d2", "#fcbba1", "#fc9272", "#fb6a4a",
	"#ef3b2c", "#cb181d", "#a50f15", "#67000d",
}

// Choropleth joins the per area counts of table onto the features of a GeoJSON
// FeatureCollection and returns the annotated collection.
//
// The first column of table holds the area key, the second the count. A
// feature matches a row when its keyProperty equals the key; numeric keys
// compare by value, so 8, 8.0 and "8" all match. Every feature gets a
// crime_count (zero when no row matches), a fill color scaled against the
// largest count, and a tooltip built from nameProperty. Every other member of
// the collection, its features and their properties is kept as it was.
func Choropleth(table *report.Table, geojson []byte, keyProperty, nameProperty string) ([]byte, error) {
	if table == nil || len(table.Columns) < 2 {
		return nil, fmt.Errorf("%w: choropleth needs a key column and a count column", ErrInvalidTable)
	}

	counts := make(map[string]int64, len(table.Rows))
	var highest int64
	for i, row := range table.Rows {
		n, err := number(row[1])
		if err != nil || math.IsNaN(n) {
			return nil, fmt.Errorf("%w: %s row %d: count %v", ErrInvalidTable, table.Name, i, row[1])
		}
		key := areaKey(row[0])
		counts[key] += int64(n)
		highest = max(highest, counts[key])
	}

	var fc map[string]json.RawMessage
	if err := json.Unmarshal(geojson, &fc); err != nil {
		return nil, fmt.Errorf("chart: decode geojson: %w", err)
	}
	var kind string
	if err := json.Unmarshal(fc["type"], &kind); err != nil || kind != "FeatureCollection" {
		return nil, fmt.Errorf("chart: geojson type %s is not FeatureCollection", fc["type"])
	}

	var features []map[string]json.RawMessage
	if raw, ok := fc["features"]; ok {
		if err := json.Unmarshal(raw, &features); err != nil {
			return nil, fmt.Errorf("chart: decode features: %w", err)
		}
	}

	for i, f := range features {
		if f == nil {
			return nil, fmt.Errorf("chart: feature %d is null", i)
		}
		var props map[string]json.RawMessage
		if raw, ok := f["properties"]; ok {
			if err := json.Unmarshal(raw, &props); err != nil {
				return nil, fmt.Errorf("chart: decode feature %d properties: %w", i, err)
			}
		}
		if props == nil {
			props = make(map[string]json.RawMessage)
		}

		key := areaKey(property(props, keyProperty))
		count := counts[key]

		name := key
		if v := property(props, nameProperty); v != nil {
			name = fmt.Sprint(v)
		}

		set := map[string]any{
			PropertyCrimeCount: count,
			PropertyFill:       fillColor(count, highest),
			PropertyTooltip:    fmt.Sprintf("%s<br>Total Crimes: %d", name, count),
		}
		for k, v := range set {
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("chart: encode %s: %w", k, err)
			}
			props[k] = raw
		}

		raw, err := json.Marshal(props)
		if err != nil {
			return nil, fmt.Errorf("chart: encode feature %d properties: %w", i, err)
		}
		f["properties"] = raw
	}

	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("chart: encode features: %w", err)
	}
	fc["features"] = raw
	return json.Marshal(fc)
}

// property decodes one feature property, nil when it is absent or not JSON.
func property(props map[string]json.RawMessage, name string) any {
	raw, ok := props[name]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// fillColor picks the scale class of count relative to highest.
func fillColor(count, highest int64) string {
	if highest <= 0 || count <= 0 {
		return reds[0]
	}
	idx := int(float64(count) / float64(highest) * float64(len(reds)-1))
	return reds[min(idx, len(reds)-1)]
}

// areaKey normalizes an area identifier so numeric forms compare equal.
func areaKey(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatKey(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		s = strings.TrimSpace(x)
	default:
		s = strings.TrimSpace(fmt.Sprint(x))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return formatKey(f)
	}
	return s
}

func formatKey(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
