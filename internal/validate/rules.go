package validate

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// Kind names a rule shape
type Kind string

const (
	KindPattern         Kind = "pattern"
	KindNumericPositive Kind = "numeric_positive"
	KindNumericRange    Kind = "numeric_range"
	KindNotEmpty        Kind = "not_empty"
	KindSumEquals       Kind = "sum_equals"
	KindDateOrder       Kind = "date_order"
	KindAgeBound        Kind = "age_bound"
	KindRecencyBound    Kind = "recency_bound"
)

// Rule is one entry of a validation catalogue.
// The set of implementations is closed; the validator switches on the concrete type.
type Rule interface {
	Name() string
	Kind() Kind
	Description() string
	// Soft rules copy their failure message into the report's warnings
	Soft() bool
	isRule()
}

// Meta carries the attributes every rule shares
type Meta struct {
	ID       string
	Describe string
	Warning  bool
}

func (m Meta) Name() string        { return m.ID }
func (m Meta) Description() string { return m.Describe }
func (m Meta) Soft() bool          { return m.Warning }
func (m Meta) isRule()             {}

// PatternRule requires each present field to fully match Pattern
type PatternRule struct {
	Meta
	Fields  []string
	Pattern *regexp.Regexp
}

func (PatternRule) Kind() Kind { return KindPattern }

// NumericPositiveRule requires each present field to parse as a number >= 0
type NumericPositiveRule struct {
	Meta
	Fields []string
}

func (NumericPositiveRule) Kind() Kind { return KindNumericPositive }

// NumericRangeRule requires each present field to parse as a number in [Min, Max]
type NumericRangeRule struct {
	Meta
	Fields []string
	Min    float64
	Max    float64
}

func (NumericRangeRule) Kind() Kind { return KindNumericRange }

// NotEmptyRule requires each field to be present and non-blank
type NotEmptyRule struct {
	Meta
	Fields []string
}

func (NotEmptyRule) Kind() Kind { return KindNotEmpty }

// SumEqualsRule requires Addends to sum to Total within Tolerance.
// Missing operands count as zero.
type SumEqualsRule struct {
	Meta
	Addends   []string
	Total     string
	Tolerance decimal.Decimal
	Label     string // prefix for the mismatch message, e.g. "Total"
}

func (SumEqualsRule) Kind() Kind { return KindSumEquals }

// DateOrderRule requires Later >= Earlier when both are present
type DateOrderRule struct {
	Meta
	Earlier string
	Later   string
}

func (DateOrderRule) Kind() Kind { return KindDateOrder }

// AgeBoundRule requires the age implied by Field, in 365.25-day years, to lie in [MinYears, MaxYears]
type AgeBoundRule struct {
	Meta
	Field    string
	MinYears float64
	MaxYears float64
}

func (AgeBoundRule) Kind() Kind { return KindAgeBound }

// RecencyBoundRule requires Field to be at most MaxDays old
type RecencyBoundRule struct {
	Meta
	Field   string
	MaxDays int
	Label   string // subject of the failure message, e.g. "Prescription"
}

func (RecencyBoundRule) Kind() Kind { return KindRecencyBound }
