package extract

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/schema"
)

// Extraction is the field extractor's output for one document
type Extraction struct {
	Fields []model.FieldRecord
	Meta   model.ExtractionMeta
}

// FieldExtractor pulls named fields out of document text
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string, docType model.DocType, customFields []string) (*Extraction, error)
}

// LabelExtractorModel names the offline extractor in extraction metadata
const LabelExtractorModel = "label-heuristic"

var labelNoise = regexp.MustCompile(`[^a-z0-9]+`)

// LabelExtractor reads "Label: value" lines without a language model.
// It assigns no base confidence, so scoring relies on the text signals alone.
type LabelExtractor struct {
	limit  int
	logger *slog.Logger
}

// NewLabelExtractor creates an offline extractor reading the first limit characters (0 = all)
func NewLabelExtractor(limit int, logger *slog.Logger) *LabelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LabelExtractor{limit: limit, logger: logger}
}

// ExtractFields returns one record per requested field found on a labelled line, in schema order
func (e *LabelExtractor) ExtractFields(_ context.Context, text string, docType model.DocType, customFields []string) (*Extraction, error) {
	wanted := schema.For(docType).FieldsWithCustom(customFields)
	found := make(map[string]model.FieldRecord, len(wanted))

	page := 1
	for _, line := range strings.Split(truncateRunes(text, e.limit), "\n") {
		page += strings.Count(line, "\f")
		label, value, ok := strings.Cut(strings.ReplaceAll(line, "\f", ""), ":")
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}

		words := labelWords(label)
		for _, name := range wanted {
			if _, seen := found[name]; seen || !labelMatches(words, name) {
				continue
			}
			src := model.DefaultSource()
			src.Page = page
			found[name] = model.FieldRecord{Name: name, Value: value, Source: src}
			break
		}
	}

	fields := make([]model.FieldRecord, 0, len(found))
	for _, name := range wanted {
		if f, ok := found[name]; ok {
			fields = append(fields, f)
		}
	}
	NormalizeFields(fields, e.logger)

	e.logger.Debug("extract.labels.done", "doc_type", docType, "requested", len(wanted), "found", len(fields))
	return &Extraction{
		Fields: fields,
		Meta: model.ExtractionMeta{
			Model:        LabelExtractorModel,
			Attempts:     1,
			CustomFields: nonNil(customFields),
		},
	}, nil
}

// labelWords lowercases a label and splits it on anything that is not a letter or digit
func labelWords(label string) []string {
	return strings.Fields(labelNoise.ReplaceAllString(strings.ToLower(label), " "))
}

// labelMatches reports whether every word of a snake_case field name appears in the label
func labelMatches(words []string, field string) bool {
	if len(words) == 0 {
		return false
	}
	for _, part := range strings.Split(strings.ToLower(field), "_") {
		if part != "" && !slices.Contains(words, part) {
			return false
		}
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
