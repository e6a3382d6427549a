package extract

import (
	"context"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
)

// Classifier decides which document type a text belongs to.
// Implementations fall back to invoice rather than failing.
type Classifier interface {
	Classify(ctx context.Context, text string) model.DocType
}

// KeywordClassifier classifies offline by counting type-specific phrases
type KeywordClassifier struct {
	limit    int
	keywords map[model.DocType][]string
}

// NewKeywordClassifier creates a classifier that reads the first limit characters (0 = all)
func NewKeywordClassifier(limit int) *KeywordClassifier {
	return &KeywordClassifier{
		limit: limit,
		keywords: map[model.DocType][]string{
			model.DocTypeInvoice: {
				"invoice", "bill to", "due date", "subtotal", "payment terms", "remit to", "purchase order",
			},
			model.DocTypeMedicalBill: {
				"patient", "provider", "insurance", "diagnosis", "procedure", "total charges",
				"statement of services", "patient responsibility", "cpt",
			},
			model.DocTypePrescription: {
				"prescription", "rx", "refills", "pharmacy", "dispense", "prescriber", "medication", "dosage",
			},
		},
	}
}

// Classify returns the type with the most keyword hits; ties keep the earlier type
func (c *KeywordClassifier) Classify(_ context.Context, text string) model.DocType {
	lower := strings.ToLower(truncateRunes(text, c.limit))

	best := model.DocTypeInvoice
	bestHits := 0
	for _, docType := range model.DocTypes() {
		hits := 0
		for _, kw := range c.keywords[docType] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = docType, hits
		}
	}
	return best
}

// truncateRunes returns the first n runes of s; n <= 0 returns s unchanged
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
