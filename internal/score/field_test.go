package score

import (
	"strings"
	"testing"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestTextClarity(t *testing.T) {
	tests := []struct {
		name   string
		field  string
		value  string
		source string
		want   float64
	}{
		{"verbatim match is capped", "invoice_number", "INV-001", "Invoice Number: INV-001", 1.0},
		{"absent value", "vendor_name", "Acme Corp", "nothing here", 0.7},
		{"fuzzy match", "vendor_name", "Acme Corp", "corporate acme ltd", 1.0},
		{"pipe noise", "vendor_name", "||ACME", "||acme", 0.84},
		{"single character", "refills", "3", "Refills: 3", 0.6},
		{"embedded digits", "policy_number", "12AB34", "Policy 12AB34", 0.96},
		{"embedded digits in address", "vendor_address", "12B Main St", "12B Main St", 1.0},
		{"case insensitive", "vendor_name", "acme", "ACME", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, textClarity(tt.field, tt.value, tt.source), 1e-9)
		})
	}
}

func TestFuzzyMatch_CountsDistinctCharacters(t *testing.T) {
	// distinct characters {a, b}: both present even though "b" repeats
	assert.True(t, fuzzyMatch("abbbbb", "a b", 0.8))
	// distinct {a, b, c, d, e}: only a present
	assert.False(t, fuzzyMatch("abcde", "a", 0.8))
	assert.False(t, fuzzyMatch("---", "---", 0.8))
	assert.False(t, fuzzyMatch("abc", "", 0.8))
}

func TestContextStrength(t *testing.T) {
	tests := []struct {
		name    string
		docType model.DocType
		field   string
		value   string
		source  string
		want    float64
	}{
		{"all keywords nearby", model.DocTypeInvoice, "total_amount", "108.00", "Total Amount Due: $108.00", 1.0},
		{"name shape only", model.DocTypeInvoice, "vendor_name", "Acme", "Acme", 0.7},
		{"keywords outside window", model.DocTypeMedicalBill, "service_date", "2024-01-15",
			"Service " + strings.Repeat("x", 80) + " 2024-01-15", 0.6},
		{"unknown doc type has no keywords", model.DocType("receipt"), "total_amount", "9.99", "Total: 9.99", 0.7},
		{"capped at one", model.DocTypePrescription, "doctor_name", "Jane Smith", "Doctor physician prescriber MD: Jane Smith", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, contextStrength(tt.docType, tt.field, tt.value, tt.source), 1e-9)
		})
	}
}

func TestKeywordNearValue(t *testing.T) {
	assert.True(t, keywordNearValue("due", "108.00", "Amount due: 108.00", 50))
	assert.False(t, keywordNearValue("due", "108.00", "due"+strings.Repeat(" ", 60)+"108.00", 50))
	// second occurrence sits next to the keyword
	assert.True(t, keywordNearValue("balance", "5", "5"+strings.Repeat(".", 70)+"balance 5", 50))
	assert.False(t, keywordNearValue("due", "", "due", 50))
}

func TestShapeBonus(t *testing.T) {
	assert.Equal(t, 0.1, shapeBonus("patient_name", "Mary-Jane Watson"))
	assert.Equal(t, 0.0, shapeBonus("patient_name", "Mary J. Watson"))
	assert.Equal(t, 0.0, shapeBonus("filename", "scan"))
	assert.Equal(t, 0.1, shapeBonus("total_charges", "$1,250.00"))
	assert.Equal(t, 0.0, shapeBonus("total_charges", "$2,000,000.00"))
	assert.Equal(t, 0.0, shapeBonus("insurance_paid", "n/a"))
	assert.Equal(t, 0.1, shapeBonus("invoice_number", "INV-1"))
	assert.Equal(t, 0.0, shapeBonus("invoice_number", "#1"))
}

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		field string
		value string
		want  float64
	}{
		{"invoice_date", "2024-01-15", 0.9},
		{"service_date", "1/5/2024", 0.9},
		{"invoice_date", "Jan 15, 2024", 0.5},
		{"total_amount", "1,234.56", 0.85},
		{"total_amount", "$1,234.56", 0.85},
		{"tax_amount", "8", 0.85},
		{"subtotal", "12.5", 0.5},
		{"pharmacy_phone", "(555) 123-4567", 0.8},
		{"pharmacy_phone", "555-123-4567", 0.8},
		{"pharmacy_phone", "call us", 0.5},
		{"contact_email", "billing@acme.com", 0.9},
		{"invoice_number", "INV 001", 0.75},
		{"invoice_number", "INV-001", 0.5},
		{"member_id", "ABCDEF", 0.5},
		{"vendor_name", "Acme Corp.", 0.8},
		{"vendor_name", "Acme 2", 0.5},
		{"doctor_name", "Dr. O'Brien", 0.8},
		// "provider" contains "id", so provider names take the identifier branch
		{"provider_name", "City Clinic", 0.5},
		{"diagnosis", "Flu", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			assert.InDelta(t, tt.want, patternMatch(tt.field, tt.value), 1e-9)
		})
	}
}

func TestCrossFieldConsistency(t *testing.T) {
	index := func(fields ...model.FieldRecord) map[string]model.FieldRecord {
		return model.IndexFields(fields)
	}

	t.Run("due date after invoice date", func(t *testing.T) {
		siblings := index(model.FieldRecord{Name: "invoice_date", Value: "2024-01-15"})
		assert.InDelta(t, 0.8, crossFieldConsistency("due_date", "2024-02-15", siblings), 1e-9)
	})

	t.Run("due date before invoice date", func(t *testing.T) {
		siblings := index(model.FieldRecord{Name: "invoice_date", Value: "2024-01-15"})
		assert.InDelta(t, 0.5, crossFieldConsistency("due_date", "2023-12-31", siblings), 1e-9)
	})

	t.Run("due date without invoice date", func(t *testing.T) {
		assert.InDelta(t, 0.7, crossFieldConsistency("due_date", "2024-02-15", index()), 1e-9)
	})

	totals := []struct {
		name  string
		total string
		want  float64
	}{
		{"exact", "108.00", 0.9},
		{"within a cent", "108.01", 0.9},
		{"off by two cents", "108.02", 0.6},
		{"currency formatted", "$108.00", 0.9},
	}
	for _, tt := range totals {
		t.Run("total "+tt.name, func(t *testing.T) {
			siblings := index(
				model.FieldRecord{Name: "subtotal", Value: 100.0},
				model.FieldRecord{Name: "tax_amount", Value: "8.00"},
			)
			assert.InDelta(t, tt.want, crossFieldConsistency("total_amount", tt.total, siblings), 1e-9)
		})
	}

	t.Run("total without tax", func(t *testing.T) {
		siblings := index(model.FieldRecord{Name: "subtotal", Value: 100.0})
		assert.InDelta(t, 0.7, crossFieldConsistency("total_amount", "108", siblings), 1e-9)
	})

	t.Run("similar names penalised", func(t *testing.T) {
		siblings := index(
			model.FieldRecord{Name: "vendor_name", Value: "ACME Corp"},
			model.FieldRecord{Name: "customer_name", Value: "Acme Corp"},
		)
		assert.InDelta(t, 0.6, crossFieldConsistency("vendor_name", "ACME Corp", siblings), 1e-9)
	})

	t.Run("identical names not penalised", func(t *testing.T) {
		siblings := index(
			model.FieldRecord{Name: "vendor_name", Value: "Acme Corp"},
			model.FieldRecord{Name: "customer_name", Value: "Acme Corp"},
		)
		assert.InDelta(t, 0.7, crossFieldConsistency("vendor_name", "Acme Corp", siblings), 1e-9)
	})
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Acme", " acme "))
	assert.Equal(t, 0.0, similarity("", "acme"))
	// {a,b,c} vs {a,b,d}: 2 common of 4
	assert.InDelta(t, 0.5, similarity("abc", "abd"), 1e-9)
}
