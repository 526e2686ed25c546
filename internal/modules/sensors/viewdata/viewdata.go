// Package viewdata turns raw sensor fields and readings into the shapes each
// dashboard view consumes. All builders are pure: they never modify their
// input and return freshly allocated slices.
package viewdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"wotkit-dashboard/internal/modules/sensors/tally"
	"wotkit-dashboard/internal/modules/sensors/types"
)

var (
	ErrFieldNotFound   = errors.New("field not found")
	ErrFieldNotNumeric = errors.New("field is not numeric")
)

const histogramLabelPrefix = "Occurrences of Value "

// FieldLookup maps field names to their values for one fetch.
type FieldLookup map[string]any

// Get reports the value of name and whether the field exists.
func (l FieldLookup) Get(name string) (any, bool) {
	v, ok := l[name]
	return v, ok
}

// Float returns the value of name as a number. Numeric strings are accepted.
func (l FieldLookup) Float(name string) (float64, error) {
	v, ok := l[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrFieldNotFound)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q: %w: %v", name, ErrFieldNotNumeric, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w: %v", name, ErrFieldNotNumeric, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%q: %w: %T", name, ErrFieldNotNumeric, v)
	}
}

type TableRow struct {
	ID           int64   `json:"id"`
	TimestampISO string  `json:"timestamp_iso"`
	Value        float64 `json:"value"`
}

// Point is one trendline sample; X is the sample index, not its time.
type Point struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
}

type Bucket struct {
	Label     string  `json:"label"`
	Magnitude float64 `json:"magnitude"`
}

type MapPoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}

// BuildFieldLookup indexes fields by name. A later field with the same name
// overwrites an earlier one.
func BuildFieldLookup(fields []types.Field) FieldLookup {
	out := make(FieldLookup, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}

// BuildLineSeries returns the magnitude of every reading in input order.
// Signs are dropped on purpose: the line chart shows magnitudes only.
func BuildLineSeries(readings []types.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = math.Abs(r.Value)
	}
	return out
}

func BuildTrendlinePoints(readings []types.Reading) []Point {
	out := make([]Point, len(readings))
	for i, r := range readings {
		out[i] = Point{X: i, Y: math.Abs(r.Value)}
	}
	return out
}

func BuildHistogramBuckets(t tally.Tally) []Bucket {
	n := min(len(t.Values), len(t.Counts))
	out := make([]Bucket, n)
	for i := 0; i < n; i++ {
		out[i] = Bucket{
			Label:     histogramLabelPrefix + FormatValue(t.Values[i]),
			Magnitude: math.Abs(float64(t.Counts[i])),
		}
	}
	return out
}

func BuildTableRows(readings []types.Reading) []TableRow {
	out := make([]TableRow, len(readings))
	for i, r := range readings {
		out[i] = TableRow{ID: r.ID, TimestampISO: r.TimestampISO, Value: r.Value}
	}
	return out
}

// BuildMapPoint reads the sensor position from its lat and lng fields.
func BuildMapPoint(lookup FieldLookup, label string) (MapPoint, error) {
	lat, err := lookup.Float("lat")
	if err != nil {
		return MapPoint{}, err
	}
	lng, err := lookup.Float("lng")
	if err != nil {
		return MapPoint{}, err
	}
	return MapPoint{Lat: lat, Lng: lng, Label: label}, nil
}

// FormatValue prints a reading value without exponent and without trailing
// zeros (2, -2.5, 1000000).
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
