// Package schema holds the per-document-type field catalogues.
package schema

import (
	"slices"

	"github.com/ppiankov/docverify/internal/model"
)

// DocumentSchema describes the fields expected for one document type.
// Values returned by For are copies; the catalogue itself never changes.
type DocumentSchema struct {
	Type            model.DocType
	Fields          []string            // canonical fields requested from the extractor, in order
	Critical        []string            // fields that drive the document-level bonus and penalty
	ContextKeywords map[string][]string // keywords expected near a field's value in the source text
}

var catalogue = map[model.DocType]DocumentSchema{
	model.DocTypeInvoice: {
		Type: model.DocTypeInvoice,
		Fields: []string{
			"invoice_number", "invoice_date", "due_date", "vendor_name",
			"vendor_address", "customer_name", "customer_address",
			"subtotal", "tax_amount", "total_amount", "line_items",
		},
		Critical: []string{"invoice_number", "total_amount", "vendor_name", "invoice_date"},
		ContextKeywords: map[string][]string{
			"invoice_number": {"invoice", "inv", "#", "number"},
			"total_amount":   {"total", "amount", "due", "$", "balance"},
			"vendor_name":    {"from:", "vendor", "company", "bill to"},
			"invoice_date":   {"date", "issued", "invoice date"},
			"due_date":       {"due", "payment due", "due date"},
		},
	},
	model.DocTypeMedicalBill: {
		Type: model.DocTypeMedicalBill,
		Fields: []string{
			"patient_name", "patient_id", "provider_name", "provider_address",
			"service_date", "diagnosis", "procedures", "insurance_company",
			"total_charges", "insurance_paid", "patient_responsibility",
		},
		Critical: []string{"patient_name", "provider_name", "total_charges", "service_date"},
		ContextKeywords: map[string][]string{
			"patient_name":      {"patient", "name", "member"},
			"provider_name":     {"provider", "hospital", "clinic", "doctor"},
			"total_charges":     {"total", "charges", "amount", "balance"},
			"service_date":      {"service", "date", "visit date"},
			"insurance_company": {"insurance", "plan", "coverage"},
		},
	},
	model.DocTypePrescription: {
		Type: model.DocTypePrescription,
		Fields: []string{
			"patient_name", "doctor_name", "pharmacy_name", "prescription_date",
			"medications", "dosage_instructions", "refills", "pharmacy_phone",
		},
		Critical: []string{"patient_name", "doctor_name", "medications", "prescription_date"},
		ContextKeywords: map[string][]string{
			"patient_name":      {"patient", "name"},
			"doctor_name":       {"doctor", "physician", "prescriber", "md"},
			"pharmacy_name":     {"pharmacy", "rx", "dispensed by"},
			"medications":       {"medication", "drug", "rx", "prescribed"},
			"prescription_date": {"date", "prescribed", "rx date"},
		},
	},
}

// For returns the schema for docType; unknown types get the invoice schema
func For(docType model.DocType) DocumentSchema {
	s, ok := catalogue[docType]
	if !ok {
		s = catalogue[model.DocTypeInvoice]
	}

	keywords := make(map[string][]string, len(s.ContextKeywords))
	for field, kw := range s.ContextKeywords {
		keywords[field] = slices.Clone(kw)
	}

	return DocumentSchema{
		Type:            s.Type,
		Fields:          slices.Clone(s.Fields),
		Critical:        slices.Clone(s.Critical),
		ContextKeywords: keywords,
	}
}

// CriticalFields returns the critical field names for docType
func CriticalFields(docType model.DocType) []string {
	return For(docType).Critical
}

// Keywords returns the context keywords for one field of docType
func Keywords(docType model.DocType, field string) []string {
	s, ok := catalogue[docType]
	if !ok {
		// unknown types have no keyword context
		return nil
	}
	return slices.Clone(s.ContextKeywords[field])
}

// FieldsWithCustom returns the canonical fields followed by custom fields not already listed
func (s DocumentSchema) FieldsWithCustom(custom []string) []string {
	fields := slices.Clone(s.Fields)
	for _, name := range custom {
		if name != "" && !slices.Contains(fields, name) {
			fields = append(fields, name)
		}
	}
	return fields
}
