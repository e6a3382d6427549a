package model

import (
	"fmt"
	"time"
)

// DocType is the document category a processing run is keyed on
type DocType string

const (
	DocTypeInvoice      DocType = "invoice"
	DocTypeMedicalBill  DocType = "medical_bill"
	DocTypePrescription DocType = "prescription"
	DocTypeError        DocType = "error" // sentinel for failed processing runs
)

// DocTypes lists the supported document types in classification order
func DocTypes() []DocType {
	return []DocType{DocTypeInvoice, DocTypeMedicalBill, DocTypePrescription}
}

// ParseDocType maps a label to a supported type, falling back to invoice
func ParseDocType(label string) DocType {
	switch DocType(label) {
	case DocTypeInvoice, DocTypeMedicalBill, DocTypePrescription:
		return DocType(label)
	default:
		return DocTypeInvoice
	}
}

// IsKnown reports whether t is one of the supported document types
func (t DocType) IsKnown() bool {
	switch t {
	case DocTypeInvoice, DocTypeMedicalBill, DocTypePrescription:
		return true
	}
	return false
}

// ValidationReport is the QA outcome for one document
type ValidationReport struct {
	PassedRules []string `json:"passed_rules"`
	FailedRules []string `json:"failed_rules"`
	Warnings    []string `json:"warnings"`
	Notes       string   `json:"notes"`

	// Messages explains each failed rule, keyed by the rule name in FailedRules
	Messages map[string]string `json:"messages,omitempty"`
}

// NewValidationReport returns a report with non-nil slices
func NewValidationReport() ValidationReport {
	return ValidationReport{
		PassedRules: []string{},
		FailedRules: []string{},
		Warnings:    []string{},
	}
}

// ScoreMetadata describes how a document's confidence was computed
type ScoreMetadata struct {
	Method            string             `json:"method"`
	SourceTextLength  int                `json:"source_text_length"`
	FieldCount        int                `json:"field_count"`
	AverageConfidence float64            `json:"average_confidence"`
	ConfidenceStd     float64            `json:"confidence_std"`
	Weights           map[string]float64 `json:"scoring_weights,omitempty"`
}

// ScoreResult is the scorer's output for one document
type ScoreResult struct {
	Fields            []FieldRecord `json:"fields"`
	OverallConfidence float64       `json:"overall_confidence"`
	Metadata          ScoreMetadata `json:"confidence_metadata"`
	Signals           []Signal      `json:"signals,omitempty"`
}

// Signal is a document-level diagnostic with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // formula and inputs
}

// SignalType classifies a diagnostic signal
type SignalType string

const (
	SignalMeanConfidence   SignalType = "mean_confidence"
	SignalVariancePenalty  SignalType = "variance_penalty"
	SignalCriticalBonus    SignalType = "critical_bonus"
	SignalMissingCritical  SignalType = "missing_critical"
	SignalFieldCount       SignalType = "field_count"
	SignalLowConfidence    SignalType = "low_confidence_fields"
	SignalExtractionFailed SignalType = "extraction_failed"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// ExtractionMeta describes the field-extraction step
type ExtractionMeta struct {
	Model        string   `json:"model,omitempty"`
	Attempts     int      `json:"attempts"`
	CustomFields []string `json:"custom_fields"`
	Cached       bool     `json:"cached,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// ProcessingMetadata describes one processing run
type ProcessingMetadata struct {
	RequestID           string         `json:"request_id"`
	Filename            string         `json:"filename"`
	TextLength          int            `json:"text_length"`
	TextMethod          string         `json:"text_method,omitempty"`
	OCREnabled          bool           `json:"ocr_enabled"`
	CustomFields        []string       `json:"custom_fields"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	Classifier          string         `json:"classifier,omitempty"`
	Extraction          ExtractionMeta `json:"extraction"`
	Scoring             ScoreMetadata  `json:"scoring"`
	Warnings            []string       `json:"warnings,omitempty"`
	ProcessedAt         time.Time      `json:"processed_at"`
	DurationMS          int64          `json:"duration_ms"`
}

// Result is the compiled record for one processed document
type Result struct {
	DocType            DocType             `json:"doc_type"`
	Fields             []FieldRecord       `json:"fields"`
	OverallConfidence  float64             `json:"overall_confidence"`
	QA                 ValidationReport    `json:"qa"`
	Signals            []Signal            `json:"signals,omitempty"`
	ProcessingMetadata *ProcessingMetadata `json:"processing_metadata,omitempty"`
	Error              string              `json:"error,omitempty"`
}

// Failed reports whether r is the error sentinel
func (r *Result) Failed() bool {
	return r.DocType == DocTypeError
}

// ErrorResult builds the sentinel record returned when processing cannot complete
func ErrorResult(err error) *Result {
	qa := NewValidationReport()
	qa.FailedRules = []string{"processing_failed"}
	qa.Notes = fmt.Sprintf("Processing failed: %v", err)

	return &Result{
		DocType:           DocTypeError,
		Fields:            []FieldRecord{},
		OverallConfidence: 0.0,
		QA:                qa,
		Error:             err.Error(),
	}
}
