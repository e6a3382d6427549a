package validate

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/shopspring/decimal"
)

// LowConfidenceThreshold marks fields counted as low-confidence in the report notes
const LowConfidenceThreshold = 0.6

// outcome is the result of evaluating one rule
type outcome struct {
	passed  bool
	message string
}

func pass() outcome { return outcome{passed: true} }

func fail(format string, args ...any) outcome {
	return outcome{passed: false, message: fmt.Sprintf(format, args...)}
}

// Validator applies the rule catalogue of a document type to scored fields
type Validator struct {
	logger    *slog.Logger
	now       func() time.Time
	catalogue func(model.DocType) []Rule
}

// NewValidator creates a new validator
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		logger:    logger,
		now:       time.Now,
		catalogue: Catalogue,
	}
}

// Validate runs every rule for docType and summarises the outcome.
// A rule that errors or panics is reported as "<rule>_error" and never stops the others.
func (v *Validator) Validate(docType model.DocType, fields []model.FieldRecord) model.ValidationReport {
	report := model.NewValidationReport()
	values := model.IndexFields(fields)
	now := v.now()

	for _, rule := range v.catalogue(docType) {
		out, err := v.apply(rule, values, now)
		if err != nil {
			v.logger.Warn("validate.rule.error", "rule", rule.Name(), "doc_type", docType, "error", err)
			report.FailedRules = append(report.FailedRules, rule.Name()+"_error")
			report.Warnings = append(report.Warnings, fmt.Sprintf("Validation error in %s: %v", rule.Name(), err))
			continue
		}

		if out.passed {
			report.PassedRules = append(report.PassedRules, rule.Name())
			continue
		}

		v.logger.Debug("validate.rule.failed", "rule", rule.Name(), "doc_type", docType, "message", out.message)
		report.FailedRules = append(report.FailedRules, rule.Name())
		if report.Messages == nil {
			report.Messages = make(map[string]string)
		}
		report.Messages[rule.Name()] = out.message
		if rule.Soft() {
			report.Warnings = append(report.Warnings, out.message)
		}
	}

	report.Notes = summarize(report, fields)
	return report
}

// apply dispatches on the concrete rule type; panics become errors
func (v *Validator) apply(rule Rule, values map[string]model.FieldRecord, now time.Time) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	switch r := rule.(type) {
	case PatternRule:
		return checkPattern(r, values), nil
	case NumericPositiveRule:
		return checkNumericPositive(r, values), nil
	case NumericRangeRule:
		return checkNumericRange(r, values), nil
	case NotEmptyRule:
		return checkNotEmpty(r, values), nil
	case SumEqualsRule:
		return checkSumEquals(r, values), nil
	case DateOrderRule:
		return checkDateOrder(r, values), nil
	case AgeBoundRule:
		return checkAgeBound(r, values, now), nil
	case RecencyBoundRule:
		return checkRecencyBound(r, values, now), nil
	default:
		return outcome{}, fmt.Errorf("unsupported rule kind %q", rule.Kind())
	}
}

func checkPattern(r PatternRule, values map[string]model.FieldRecord) outcome {
	for _, name := range r.Fields {
		f, ok := values[name]
		if !ok || f.IsEmpty() {
			continue
		}
		if !r.Pattern.MatchString(f.Text()) {
			return fail("%s: %s", name, r.Describe)
		}
	}
	return pass()
}

func checkNumericPositive(r NumericPositiveRule, values map[string]model.FieldRecord) outcome {
	for _, name := range r.Fields {
		f, ok := values[name]
		if !ok || f.Value == nil {
			continue
		}
		n, ok := parseNumber(f.Value)
		if !ok {
			return fail("%s is not a valid number: %s", name, f.Text())
		}
		if n < 0 {
			return fail("%s must be positive, got: %s", name, f.Text())
		}
	}
	return pass()
}

func checkNumericRange(r NumericRangeRule, values map[string]model.FieldRecord) outcome {
	for _, name := range r.Fields {
		f, ok := values[name]
		if !ok || f.Value == nil {
			continue
		}
		n, ok := parseNumber(f.Value)
		if !ok {
			return fail("%s is not a valid number: %s", name, f.Text())
		}
		if n < r.Min || n > r.Max {
			return fail("%s must be between %g and %g, got: %s", name, r.Min, r.Max, f.Text())
		}
	}
	return pass()
}

func checkNotEmpty(r NotEmptyRule, values map[string]model.FieldRecord) outcome {
	for _, name := range r.Fields {
		f, ok := values[name]
		if !ok || f.IsEmpty() {
			return fail("Required field %s is empty or missing", name)
		}
	}
	return pass()
}

func checkSumEquals(r SumEqualsRule, values map[string]model.FieldRecord) outcome {
	operand := func(name string) (decimal.Decimal, error) {
		f, ok := values[name]
		if !ok || f.IsEmpty() {
			return decimal.Zero, nil
		}
		d, ok := parseDecimal(f.Value)
		if !ok {
			return decimal.Zero, fmt.Errorf("%s is not a valid number: %s", name, f.Text())
		}
		return d, nil
	}

	sum := decimal.Zero
	parts := make([]string, 0, len(r.Addends))
	for _, name := range r.Addends {
		d, err := operand(name)
		if err != nil {
			return fail("Cross-field validation error: %v", err)
		}
		sum = sum.Add(d)
		parts = append(parts, d.String())
	}

	total, err := operand(r.Total)
	if err != nil {
		return fail("Cross-field validation error: %v", err)
	}

	if sum.Sub(total).Abs().GreaterThan(r.Tolerance) {
		return fail("%s mismatch: %s = %s, but %s is %s",
			r.Label, strings.Join(parts, " + "), sum.String(), humanize(r.Total), total.String())
	}
	return pass()
}

func checkDateOrder(r DateOrderRule, values map[string]model.FieldRecord) outcome {
	earlier, okEarlier := values[r.Earlier]
	later, okLater := values[r.Later]
	if !okEarlier || !okLater || earlier.IsEmpty() || later.IsEmpty() {
		return pass()
	}

	// ISO dates order lexically
	if later.Text() < earlier.Text() {
		return fail("%s %s is before %s %s",
			capitalize(humanize(r.Later)), later.Text(), humanize(r.Earlier), earlier.Text())
	}
	return pass()
}

func checkAgeBound(r AgeBoundRule, values map[string]model.FieldRecord, now time.Time) outcome {
	f, ok := values[r.Field]
	if !ok || f.IsEmpty() {
		return pass()
	}

	days, err := daysSince(f.Text(), now)
	if err != nil {
		return fail("Date logic validation error: %v", err)
	}

	age := float64(days) / 365.25
	if age < r.MinYears || age > r.MaxYears {
		return fail("Unrealistic %s age: %.1f years", subject(r.Field), age)
	}
	return pass()
}

func checkRecencyBound(r RecencyBoundRule, values map[string]model.FieldRecord, now time.Time) outcome {
	f, ok := values[r.Field]
	if !ok || f.IsEmpty() {
		return pass()
	}

	days, err := daysSince(f.Text(), now)
	if err != nil {
		return fail("Date logic validation error: %v", err)
	}

	if days > r.MaxDays {
		return fail("%s is %d days old (over %d days)", r.Label, days, r.MaxDays)
	}
	return pass()
}

// daysSince counts whole days from an ISO date to now, ignoring time zones
func daysSince(value string, now time.Time) (int, error) {
	d, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as YYYY-MM-DD", value)
	}

	wall := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
	return int(math.Floor(wall.Sub(d).Hours() / 24)), nil
}

// parseNumber parses a plain number; currency symbols and separators are not accepted
func parseNumber(v any) (float64, bool) {
	var n float64
	switch val := v.(type) {
	case float64:
		n = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		parsed, err := strconv.ParseFloat(model.FormatValue(val), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
	d, err := decimal.NewFromString(strings.TrimSpace(model.FormatValue(v)))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// summarize builds the one-line notes for a report
func summarize(report model.ValidationReport, fields []model.FieldRecord) string {
	lowConfidence := 0
	for _, f := range fields {
		if f.Confidence < LowConfidenceThreshold {
			lowConfidence++
		}
	}

	var parts []string
	if n := len(report.FailedRules); n > 0 {
		parts = append(parts, fmt.Sprintf("%d validation rules failed", n))
	}
	if lowConfidence > 0 {
		parts = append(parts, fmt.Sprintf("%d low-confidence fields", lowConfidence))
	}
	if n := len(report.Warnings); n > 0 {
		parts = append(parts, fmt.Sprintf("%d warnings", n))
	}

	if len(parts) == 0 {
		return "All validations passed successfully"
	}
	return strings.Join(parts, "; ")
}

// humanize turns a field name into words: "total_amount" -> "total amount"
func humanize(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// subject returns the leading word of a field name: "patient_dob" -> "patient"
func subject(field string) string {
	head, _, _ := strings.Cut(field, "_")
	return head
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
