package score

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/schema"
	"github.com/shopspring/decimal"
)

// Sub-score levels for recognised value shapes
const (
	patternBase   = 0.5
	patternDate   = 0.9
	patternAmount = 0.85
	patternPhone  = 0.8
	patternEmail  = 0.9
	patternID     = 0.75
	patternName   = 0.8

	contextBase   = 0.6
	contextWindow = 50

	consistencyBase = 0.7
)

var (
	ocrNoisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[|]{2,}`),
		regexp.MustCompile(`[0O]{3,}`),
		regexp.MustCompile(`[Il1]{3,}`),
		regexp.MustCompile(`[@#$%^&*]{2,}`),
		regexp.MustCompile(`\s{3,}`),
	}
	embeddedDigits = regexp.MustCompile(`\d+[A-Za-z]+\d+`)
	nonWordChars   = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	nonAmountChars = regexp.MustCompile(`[^\d.]`)
	currencyChars  = regexp.MustCompile(`[$,€£¥]`)
	anyDigit       = regexp.MustCompile(`\d`)
	nameOddChars   = regexp.MustCompile(`[^a-zA-Z\s\-.]`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`),
	}
	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d+\.\d{2}$`),
		regexp.MustCompile(`^\$?\d{1,3}(,\d{3})*(\.\d{2})?$`),
		regexp.MustCompile(`^\d+$`),
	}
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`),
		regexp.MustCompile(`^\d{10}$`),
		regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`),
	}
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	sumTolerance = decimal.RequireFromString("0.01")
)

// textClarity scores OCR quality signals and whether the value is present in the source
func textClarity(name, value, sourceText string) float64 {
	score := 1.0

	for _, re := range ocrNoisePatterns {
		if re.MatchString(value) {
			score *= 0.7
		}
	}

	length := utf8.RuneCountInString(strings.TrimSpace(value))
	if length < 2 {
		score *= 0.5
	} else if length > 200 {
		score *= 0.8
	}

	if embeddedDigits.MatchString(value) && !addressLike(name, value) {
		score *= 0.8
	}

	source := strings.ToLower(sourceText)
	switch {
	case source != "" && strings.Contains(source, strings.ToLower(value)):
		score *= 1.2
	case fuzzyMatch(value, source, 0.8):
		score *= 1.1
	default:
		score *= 0.7
	}

	return math.Min(1.0, score)
}

// addressLike reports whether digit-letter-digit runs are expected, as in "12B Main St"
func addressLike(name, value string) bool {
	return strings.Contains(strings.ToLower(name), "address") ||
		strings.Contains(strings.ToLower(value), "address")
}

// fuzzyMatch reports whether at least threshold of the value's distinct word characters
// occur anywhere in the lowercased source
func fuzzyMatch(value, lowerSource string, threshold float64) bool {
	if value == "" || lowerSource == "" {
		return false
	}

	cleaned := nonWordChars.ReplaceAllString(strings.ToLower(value), "")
	distinct := make(map[rune]struct{})
	for _, r := range cleaned {
		distinct[r] = struct{}{}
	}
	if len(distinct) == 0 {
		return false
	}

	matched := 0
	for r := range distinct {
		if strings.ContainsRune(lowerSource, r) {
			matched++
		}
	}

	return float64(matched)/float64(len(distinct)) >= threshold
}

// contextStrength scores keywords found around the value plus a bonus for a plausible shape
func contextStrength(docType model.DocType, name, value, sourceText string) float64 {
	score := contextBase

	for _, keyword := range schema.Keywords(docType, name) {
		if keywordNearValue(keyword, value, sourceText, contextWindow) {
			score += 0.1
		}
	}

	score += shapeBonus(name, value)

	return math.Min(1.0, score)
}

// keywordNearValue reports whether keyword occurs within window characters of any occurrence of value
func keywordNearValue(keyword, value, sourceText string, window int) bool {
	if keyword == "" || value == "" || sourceText == "" {
		return false
	}

	source := strings.ToLower(sourceText)
	needle := strings.ToLower(value)
	kw := strings.ToLower(keyword)

	for offset := 0; offset <= len(source); {
		idx := strings.Index(source[offset:], needle)
		if idx < 0 {
			break
		}
		pos := offset + idx

		start := pos
		for i := 0; i < window && start > 0; i++ {
			_, size := utf8.DecodeLastRuneInString(source[:start])
			start -= size
		}
		end := pos + len(needle)
		for i := 0; i < window && end < len(source); i++ {
			_, size := utf8.DecodeRuneInString(source[end:])
			end += size
		}

		if strings.Contains(source[start:end], kw) {
			return true
		}

		// overlapping occurrences are checked too
		_, size := utf8.DecodeRuneInString(source[pos:])
		offset = pos + max(size, 1)
	}

	return false
}

// shapeBonus adds 0.1 when the value looks like what the field name promises
func shapeBonus(name, value string) float64 {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "name") && !strings.Contains(lower, "file"):
		words := strings.Fields(value)
		if len(words) < 1 || len(words) > 5 {
			return 0
		}
		for _, w := range words {
			if !isAlpha(w) && !strings.Contains(w, "-") {
				return 0
			}
		}
		return 0.1

	case containsAny(lower, "amount", "total", "charge", "paid"):
		amount, err := strconv.ParseFloat(nonAmountChars.ReplaceAllString(value, ""), 64)
		if err == nil && amount >= 0.01 && amount <= 1_000_000 {
			return 0.1
		}
		return 0

	case containsAny(lower, "id", "number"):
		length := utf8.RuneCountInString(value)
		if length >= 3 && length <= 50 && strings.IndexFunc(value, isAlnumRune) >= 0 {
			return 0.1
		}
		return 0
	}

	return 0
}

// patternMatch scores how well the value fits the format implied by the field name
func patternMatch(name, value string) float64 {
	if value == "" {
		return 0
	}

	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "date"):
		if matchAny(datePatterns, value) {
			return patternDate
		}

	case containsAny(lower, "amount", "total", "subtotal", "tax", "charge", "paid"):
		if matchAny(amountPatterns, value) {
			return patternAmount
		}

	case strings.Contains(lower, "phone"):
		if matchAny(phonePatterns, value) {
			return patternPhone
		}

	case strings.Contains(lower, "email"):
		if emailPattern.MatchString(value) {
			return patternEmail
		}

	case containsAny(lower, "id", "number", "policy", "member"):
		compact := strings.ReplaceAll(value, " ", "")
		if anyDigit.MatchString(value) && compact != "" && strings.IndexFunc(compact, notAlnumRune) < 0 {
			return patternID
		}

	case strings.Contains(lower, "name") && !strings.Contains(lower, "file"):
		if !anyDigit.MatchString(value) && len(nameOddChars.FindAllString(value, -1)) < 3 {
			return patternName
		}
	}

	return patternBase
}

// crossFieldConsistency checks the value against sibling fields of the same document
func crossFieldConsistency(name, value string, siblings map[string]model.FieldRecord) float64 {
	score := consistencyBase
	lower := strings.ToLower(name)

	other := func(key string) (model.FieldRecord, bool) {
		if key == name {
			return model.FieldRecord{}, false
		}
		f, ok := siblings[key]
		return f, ok
	}

	// Due date should not precede the invoice date; ISO dates compare lexically
	if name == "due_date" {
		if invoiceDate, ok := other("invoice_date"); ok && !invoiceDate.IsEmpty() {
			if value >= invoiceDate.Text() {
				score += 0.1
			} else {
				score -= 0.2
			}
		}
	}

	// Totals should equal subtotal plus tax
	if strings.Contains(lower, "total") {
		subtotalField, _ := other("subtotal")
		taxField, _ := other("tax_amount")

		subtotal, okSub := lenientDecimal(subtotalField.Value)
		tax, okTax := lenientDecimal(taxField.Value)
		total, okTotal := lenientDecimal(value)

		if okSub && okTax && okTotal {
			if subtotal.Add(tax).Sub(total).Abs().LessThanOrEqual(sumTolerance) {
				score += 0.2
			} else {
				score -= 0.1
			}
		}
	}

	// Near-identical names in different fields suggest an OCR or extraction slip
	if strings.Contains(lower, "name") {
		for key, sibling := range siblings {
			if key == name || !strings.Contains(strings.ToLower(key), "name") || sibling.IsEmpty() {
				continue
			}
			otherValue := sibling.Text()
			if similarity(value, otherValue) > 0.8 && value != otherValue {
				score -= 0.1
			}
		}
	}

	return model.ClampUnit(score)
}

// lenientDecimal parses a value after stripping currency symbols and thousands separators
func lenientDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(val), true
	default:
		cleaned := strings.TrimSpace(currencyChars.ReplaceAllString(model.FormatValue(val), ""))
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	}
}

// similarity is the Jaccard index of the two strings' character sets, 1.0 when equal ignoring case
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == b {
		return 1.0
	}

	setA := make(map[rune]struct{})
	for _, r := range a {
		setA[r] = struct{}{}
	}
	union := make(map[rune]struct{}, len(setA))
	common := 0
	for r := range setA {
		union[r] = struct{}{}
	}
	seenB := make(map[rune]struct{})
	for _, r := range b {
		if _, dup := seenB[r]; dup {
			continue
		}
		seenB[r] = struct{}{}
		if _, ok := setA[r]; ok {
			common++
		}
		union[r] = struct{}{}
	}

	if len(union) == 0 {
		return 0
	}
	return float64(common) / float64(len(union))
}

func matchAny(patterns []*regexp.Regexp, value string) bool {
	for _, re := range patterns {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isAlnumRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func notAlnumRune(r rune) bool {
	return !isAlnumRune(r)
}
