package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFields_FirstOccurrenceWins(t *testing.T) {
	fields := []FieldRecord{
		{Name: "total_amount", Value: "108.00"},
		{Name: "vendor_name", Value: "Acme"},
		{Name: "total_amount", Value: "999.00"},
	}

	index := IndexFields(fields)

	require.Len(t, index, 2)
	assert.Equal(t, "108.00", index["total_amount"].Value)
}

func TestFieldRecord_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"blank string", "   ", true},
		{"text", "Acme", false},
		{"zero", 0.0, false},
		{"number", 12.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FieldRecord{Name: "x", Value: tt.value}
			assert.Equal(t, tt.want, f.IsEmpty())
		})
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "100", FormatValue(100.0))
	assert.Equal(t, "108.5", FormatValue(108.5))
	assert.Equal(t, "INV-1", FormatValue("INV-1"))
	assert.Equal(t, "3", FormatValue(3))
}

func TestFieldRecord_UnmarshalJSON(t *testing.T) {
	data := []byte(`{"name":"medications","value":["Amoxicillin 500mg","Ibuprofen"],"confidence":0.9}`)

	var f FieldRecord
	require.NoError(t, json.Unmarshal(data, &f))

	assert.Equal(t, "medications", f.Name)
	assert.Equal(t, "Amoxicillin 500mg, Ibuprofen", f.Value)
	assert.Equal(t, DefaultSource(), f.Source)
	assert.InDelta(t, 0.9, f.Confidence, 1e-9)
}

func TestFieldRecord_UnmarshalJSON_KeepsSource(t *testing.T) {
	data := []byte(`{"name":"total_amount","value":108,"confidence":0.8,"source":{"page":2,"bbox":[1,2,3,4]}}`)

	var f FieldRecord
	require.NoError(t, json.Unmarshal(data, &f))

	assert.Equal(t, 108.0, f.Value)
	assert.Equal(t, 2, f.Source.Page)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, f.Source.BBox)
}

func TestScalarValue_NestedList(t *testing.T) {
	v := ScalarValue([]any{map[string]any{"name": "Amoxicillin"}})
	assert.Equal(t, `[{"name":"Amoxicillin"}]`, v)
	assert.Nil(t, ScalarValue([]any{}))
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, ClampUnit(-0.3))
	assert.Equal(t, 1.0, ClampUnit(1.7))
	assert.Equal(t, 0.42, ClampUnit(0.42))
}

func TestParseDocType(t *testing.T) {
	assert.Equal(t, DocTypeMedicalBill, ParseDocType("medical_bill"))
	assert.Equal(t, DocTypePrescription, ParseDocType("prescription"))
	assert.Equal(t, DocTypeInvoice, ParseDocType("receipt"))
	assert.Equal(t, DocTypeInvoice, ParseDocType(""))
	assert.False(t, DocTypeError.IsKnown())
}

func TestErrorResult(t *testing.T) {
	r := ErrorResult(errors.New("boom"))

	assert.True(t, r.Failed())
	assert.Equal(t, DocTypeError, r.DocType)
	assert.Empty(t, r.Fields)
	assert.Equal(t, 0.0, r.OverallConfidence)
	assert.Equal(t, []string{"processing_failed"}, r.QA.FailedRules)
	assert.Empty(t, r.QA.PassedRules)
	assert.Equal(t, "Processing failed: boom", r.QA.Notes)
	assert.Equal(t, "boom", r.Error)
}
