package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Source locates a field on the page it was read from
type Source struct {
	Page int        `json:"page"`
	BBox [4]float64 `json:"bbox"` // x1, y1, x2, y2
}

// DefaultSource is the placeholder used when the extractor cannot locate a field
func DefaultSource() Source {
	return Source{Page: 1, BBox: [4]float64{0, 0, 100, 20}}
}

// ConfidenceBreakdown records the sub-scores behind a field's confidence
type ConfidenceBreakdown struct {
	TextClarity     float64 `json:"text_clarity"`
	ContextStrength float64 `json:"context_strength"`
	PatternMatch    float64 `json:"pattern_match"`
	Consistency     float64 `json:"consistency"`
	BaseConfidence  float64 `json:"base_confidence"`  // confidence reported by the extractor
	FinalConfidence float64 `json:"final_confidence"` // blended and clamped
}

// FieldRecord is one extracted field
type FieldRecord struct {
	Name       string               `json:"name"`
	Value      any                  `json:"value"` // nil, string or float64
	Confidence float64              `json:"confidence"`
	Source     Source               `json:"source"`
	Breakdown  *ConfidenceBreakdown `json:"confidence_breakdown,omitempty"`
}

// UnmarshalJSON accepts records with a missing source and non-scalar values
func (f *FieldRecord) UnmarshalJSON(data []byte) error {
	type alias FieldRecord
	aux := struct {
		*alias
		Source *Source `json:"source"`
	}{alias: (*alias)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Source != nil {
		f.Source = *aux.Source
	} else {
		f.Source = DefaultSource()
	}
	f.Value = ScalarValue(f.Value)

	return nil
}

// IsEmpty reports whether the field has no usable value.
// Nil and blank strings are empty; numeric zero is a value.
func (f FieldRecord) IsEmpty() bool {
	switch v := f.Value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

// Text renders the value as text, empty for nil
func (f FieldRecord) Text() string {
	return FormatValue(f.Value)
}

// FormatValue renders a scalar value as text.
// Floats use the shortest representation: 100 rather than 100.0.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ScalarValue folds a decoded JSON value into nil, string or float64.
// Lists of scalars are joined with ", "; other structures are re-encoded as JSON.
func ScalarValue(v any) any {
	switch val := v.(type) {
	case nil, string, float64:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if n, err := val.Float64(); err == nil {
			return n
		}
		return val.String()
	case []any:
		if len(val) == 0 {
			return nil
		}
		parts := make([]string, 0, len(val))
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				return encodeJSON(val)
			}
			parts = append(parts, FormatValue(ScalarValue(item)))
		}
		return strings.Join(parts, ", ")
	default:
		return encodeJSON(val)
	}
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// ClampUnit clamps a score into [0, 1]; NaN becomes 0
func ClampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// IndexFields maps field names to records; the first occurrence of a name wins
func IndexFields(fields []FieldRecord) map[string]FieldRecord {
	index := make(map[string]FieldRecord, len(fields))
	for _, f := range fields {
		if _, exists := index[f.Name]; !exists {
			index[f.Name] = f
		}
	}
	return index
}
