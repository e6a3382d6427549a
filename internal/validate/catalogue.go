package validate

import (
	"regexp"
	"slices"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/shopspring/decimal"
)

// isoDate is the only date format accepted by the date_format rules
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var (
	centTolerance = decimal.RequireFromString("0.01")

	invoiceRules = []Rule{
		PatternRule{
			Meta:    Meta{ID: "date_format", Describe: "Date must be in YYYY-MM-DD format"},
			Fields:  []string{"invoice_date", "due_date"},
			Pattern: isoDate,
		},
		NumericPositiveRule{
			Meta:   Meta{ID: "amount_format", Describe: "Amounts must be positive numbers"},
			Fields: []string{"subtotal", "tax_amount", "total_amount"},
		},
		SumEqualsRule{
			Meta:      Meta{ID: "totals_match", Describe: "Subtotal plus tax should equal total amount"},
			Addends:   []string{"subtotal", "tax_amount"},
			Total:     "total_amount",
			Tolerance: centTolerance,
			Label:     "Total",
		},
		DateOrderRule{
			Meta:    Meta{ID: "due_date_logic", Describe: "Due date should be after or equal to invoice date"},
			Earlier: "invoice_date",
			Later:   "due_date",
		},
		NotEmptyRule{
			Meta:   Meta{ID: "required_fields", Describe: "Critical fields must not be empty"},
			Fields: []string{"invoice_number", "total_amount", "vendor_name"},
		},
	}

	medicalBillRules = []Rule{
		PatternRule{
			Meta:    Meta{ID: "date_format", Describe: "Dates must be in YYYY-MM-DD format"},
			Fields:  []string{"service_date", "patient_dob"},
			Pattern: isoDate,
		},
		NumericPositiveRule{
			Meta:   Meta{ID: "amount_format", Describe: "Amounts must be positive numbers"},
			Fields: []string{"total_charges", "insurance_paid", "patient_responsibility"},
		},
		SumEqualsRule{
			Meta:      Meta{ID: "charges_breakdown", Describe: "Insurance paid plus patient responsibility should equal total charges"},
			Addends:   []string{"insurance_paid", "patient_responsibility"},
			Total:     "total_charges",
			Tolerance: centTolerance,
			Label:     "Charges",
		},
		AgeBoundRule{
			Meta:     Meta{ID: "patient_age_logic", Describe: "Patient date of birth should be realistic"},
			Field:    "patient_dob",
			MinYears: 0,
			MaxYears: 120,
		},
		NotEmptyRule{
			Meta:   Meta{ID: "required_fields", Describe: "Critical fields must not be empty"},
			Fields: []string{"patient_name", "provider_name", "total_charges"},
		},
	}

	prescriptionRules = []Rule{
		PatternRule{
			Meta:    Meta{ID: "date_format", Describe: "Dates must be in YYYY-MM-DD format"},
			Fields:  []string{"prescription_date", "patient_dob"},
			Pattern: isoDate,
		},
		PatternRule{
			Meta:    Meta{ID: "phone_format", Describe: "Phone number must be in valid format"},
			Fields:  []string{"pharmacy_phone"},
			Pattern: regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$|^\d{10}$`),
		},
		NumericRangeRule{
			Meta:   Meta{ID: "refills_range", Describe: "Refills should be between 0 and 12"},
			Fields: []string{"refills"},
			Min:    0,
			Max:    12,
		},
		RecencyBoundRule{
			Meta:    Meta{ID: "prescription_age", Describe: "Prescription date should be recent", Warning: true},
			Field:   "prescription_date",
			MaxDays: 730,
			Label:   "Prescription",
		},
		NotEmptyRule{
			Meta:   Meta{ID: "required_fields", Describe: "Critical fields must not be empty"},
			Fields: []string{"patient_name", "doctor_name", "medications"},
		},
	}
)

// Catalogue returns the ordered rules for docType; unknown types get the invoice rules.
// The returned slice is a copy.
func Catalogue(docType model.DocType) []Rule {
	switch docType {
	case model.DocTypeMedicalBill:
		return slices.Clone(medicalBillRules)
	case model.DocTypePrescription:
		return slices.Clone(prescriptionRules)
	default:
		return slices.Clone(invoiceRules)
	}
}
