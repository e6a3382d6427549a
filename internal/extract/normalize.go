package extract

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
)

// Confidence multipliers applied when a value cannot be normalised
const (
	badDatePenalty   = 0.7
	badAmountPenalty = 0.6
	panicPenalty     = 0.5
)

var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),   // YYYY-MM-DD
		regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`),   // MM/DD/YYYY
		regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`),   // MM-DD-YYYY
		regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`), // MM.DD.YYYY
	}
	currencyNoise = regexp.MustCompile(`[$€£¥,\s]`)
	nonDigit      = regexp.MustCompile(`\D`)

	amountKeywords = []string{"amount", "total", "subtotal", "tax", "paid", "charges"}
)

// NormalizeDate rewrites a date to YYYY-MM-DD; ok is false when no plausible date is found
func NormalizeDate(s string) (string, bool) {
	for _, re := range datePatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		var year, month, day string
		if len(m[1]) == 4 {
			year, month, day = m[1], m[2], m[3]
		} else {
			month, day, year = m[1], m[2], m[3]
		}

		y, _ := strconv.Atoi(year)
		mo, _ := strconv.Atoi(month)
		d, _ := strconv.Atoi(day)
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 && y >= 1900 && y <= 2100 {
			return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
		}
	}
	return "", false
}

// NormalizeAmount parses a currency amount; "(12.50)" is negative
func NormalizeAmount(s string) (float64, bool) {
	cleaned := currencyNoise.ReplaceAllString(s, "")
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") && len(cleaned) >= 2 {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// NormalizePhone formats ten-digit (or 1-prefixed eleven-digit) numbers as "(XXX) XXX-XXXX".
// Anything else is returned unchanged.
func NormalizePhone(s string) string {
	digits := nonDigit.ReplaceAllString(s, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("(%s) %s-%s", digits[1:4], digits[4:7], digits[7:])
	default:
		return s
	}
}

// NormalizeFields clamps confidences and canonicalises dates, amounts and phones in place.
// Values that cannot be normalised keep their text and lose confidence.
func NormalizeFields(fields []model.FieldRecord, logger *slog.Logger) {
	for i := range fields {
		fields[i].Confidence = model.ClampUnit(fields[i].Confidence)
		normalizeField(&fields[i], logger)
	}
}

func normalizeField(f *model.FieldRecord, logger *slog.Logger) {
	if f.IsEmpty() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Warn("extract.normalize.panic", "field", f.Name, "panic", r)
			}
			f.Confidence = model.ClampUnit(f.Confidence * panicPenalty)
		}
	}()

	name := strings.ToLower(f.Name)
	text := f.Text()

	switch {
	case strings.Contains(name, "date"):
		if d, ok := NormalizeDate(text); ok {
			f.Value = d
		} else {
			f.Confidence *= badDatePenalty
		}
	case containsAny(name, amountKeywords):
		if n, ok := NormalizeAmount(text); ok {
			f.Value = n
		} else {
			f.Confidence *= badAmountPenalty
		}
	case strings.Contains(name, "phone"):
		f.Value = NormalizePhone(text)
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
