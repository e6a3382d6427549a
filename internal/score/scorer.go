package score

import (
	"fmt"
	"log/slog"
	"math"
	"unicode/utf8"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/schema"
)

// MethodAdvanced identifies this scoring method in result metadata
const MethodAdvanced = "advanced_scoring"

const (
	weightTextClarity     = 0.30
	weightContextStrength = 0.25
	weightPatternMatch    = 0.25
	weightConsistency     = 0.20

	// share of the final confidence taken from the extractor's own estimate
	extractorBlend = 0.3
)

// Weights returns the sub-score weights used for every field
func Weights() map[string]float64 {
	return map[string]float64{
		"text_clarity":     weightTextClarity,
		"context_strength": weightContextStrength,
		"pattern_match":    weightPatternMatch,
		"consistency":      weightConsistency,
	}
}

// Scorer assigns per-field and document-level confidence
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a new scorer
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{logger: logger}
}

// Score rescores fields against the source text and computes the document confidence.
// Fields are updated in place and returned in the same order.
func (s *Scorer) Score(fields []model.FieldRecord, sourceText string, docType model.DocType) model.ScoreResult {
	textLength := utf8.RuneCountInString(sourceText)

	if len(fields) == 0 {
		return model.ScoreResult{
			Fields:            []model.FieldRecord{},
			OverallConfidence: 0.0,
			Metadata: model.ScoreMetadata{
				Method:           MethodAdvanced,
				SourceTextLength: textLength,
				FieldCount:       0,
			},
		}
	}

	// Sibling lookups read values only, which scoring never changes
	siblings := model.IndexFields(fields)

	scores := make([]float64, len(fields))
	for i := range fields {
		s.scoreField(&fields[i], sourceText, docType, siblings)
		scores[i] = fields[i].Confidence
	}

	overall, signals := s.calculateOverall(scores, fields, docType)
	mean, std := meanStd(scores)

	return model.ScoreResult{
		Fields:            fields,
		OverallConfidence: overall,
		Metadata: model.ScoreMetadata{
			Method:            MethodAdvanced,
			SourceTextLength:  textLength,
			FieldCount:        len(fields),
			AverageConfidence: mean,
			ConfidenceStd:     std,
			Weights:           Weights(),
		},
		Signals: signals,
	}
}

// scoreField computes the four sub-scores for one field and blends them
func (s *Scorer) scoreField(f *model.FieldRecord, sourceText string, docType model.DocType, siblings map[string]model.FieldRecord) {
	// Sub-scores are total over string input; reaching this recover is a scoring bug.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("score.field.error", "field", f.Name, "error", fmt.Sprint(r))
			f.Confidence = model.ClampUnit(f.Confidence * 0.5)
			f.Breakdown = nil
		}
	}()

	if f.IsEmpty() {
		f.Confidence = 0.0
		f.Breakdown = nil
		return
	}

	value := f.Text()
	base := f.Confidence

	clarity := textClarity(f.Name, value, sourceText)
	context := contextStrength(docType, f.Name, value, sourceText)
	pattern := patternMatch(f.Name, value)
	consistency := crossFieldConsistency(f.Name, value, siblings)

	final := clarity*weightTextClarity +
		context*weightContextStrength +
		pattern*weightPatternMatch +
		consistency*weightConsistency

	if base > 0 {
		final = final*(1-extractorBlend) + base*extractorBlend
	}
	final = model.ClampUnit(final)

	f.Confidence = final
	f.Breakdown = &model.ConfidenceBreakdown{
		TextClarity:     clarity,
		ContextStrength: context,
		PatternMatch:    pattern,
		Consistency:     consistency,
		BaseConfidence:  base,
		FinalConfidence: final,
	}

	s.logger.Debug("score.field",
		"field", f.Name,
		"clarity", clarity,
		"context", context,
		"pattern", pattern,
		"consistency", consistency,
		"confidence", final,
	)
}

// calculateOverall combines field confidences into the document confidence
func (s *Scorer) calculateOverall(scores []float64, fields []model.FieldRecord, docType model.DocType) (float64, []model.Signal) {
	var signals []model.Signal

	// 1. Mean confidence
	mean, std := meanStd(scores)
	signals = append(signals, model.Signal{
		Type:        model.SignalMeanConfidence,
		Severity:    severityFor(mean),
		Description: fmt.Sprintf("Mean field confidence: %.2f", mean),
		Data: map[string]interface{}{
			"mean":    mean,
			"fields":  len(scores),
			"formula": "sum(confidence) / field_count",
		},
	})

	// 2. Variance penalty
	variancePenalty := math.Min(0.2, std*0.5)
	varianceSeverity := model.SeverityInfo
	if variancePenalty >= 0.1 {
		varianceSeverity = model.SeverityWarning
	}
	signals = append(signals, model.Signal{
		Type:        model.SignalVariancePenalty,
		Severity:    varianceSeverity,
		Description: fmt.Sprintf("Confidence spread penalty: %.3f", variancePenalty),
		Data: map[string]interface{}{
			"std":     std,
			"penalty": variancePenalty,
			"formula": "min(0.2, population_std * 0.5)",
		},
	})

	// 3. Critical fields
	scored := model.IndexFields(fields)
	critical := schema.CriticalFields(docType)

	criticalBonus := 0.0
	var strong, missing []string
	for _, name := range critical {
		f, present := scored[name]
		if !present {
			missing = append(missing, name)
			continue
		}
		if f.Confidence > 0.8 {
			criticalBonus += 0.05
			strong = append(strong, name)
		}
	}
	missingPenalty := float64(len(missing)) * 0.1

	signals = append(signals, model.Signal{
		Type:        model.SignalCriticalBonus,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d of %d critical fields above 0.8", len(strong), len(critical)),
		Data: map[string]interface{}{
			"fields":  strong,
			"bonus":   criticalBonus,
			"formula": "0.05 * count(critical present with confidence > 0.8)",
		},
	})

	if len(missing) > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalMissingCritical,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("Missing %d critical fields", len(missing)),
			Data: map[string]interface{}{
				"fields":  missing,
				"penalty": missingPenalty,
				"formula": "0.1 * count(critical absent)",
			},
		})
	}

	// 4. Field count factor
	fieldCountFactor := math.Min(0.1, float64(len(fields))*0.01)
	signals = append(signals, model.Signal{
		Type:        model.SignalFieldCount,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d fields extracted", len(fields)),
		Data: map[string]interface{}{
			"fields":  len(fields),
			"bonus":   fieldCountFactor,
			"formula": "min(0.1, field_count * 0.01)",
		},
	})

	overall := mean - variancePenalty + criticalBonus - missingPenalty + fieldCountFactor

	return model.ClampUnit(overall), signals
}

// meanStd returns the mean and population standard deviation; std is 0 for fewer than two values
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

func severityFor(confidence float64) model.SignalSeverity {
	switch {
	case confidence >= 0.8:
		return model.SeverityInfo
	case confidence >= 0.6:
		return model.SeverityWarning
	default:
		return model.SeverityCritical
	}
}
