package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/docverify/internal/cache"
	"github.com/ppiankov/docverify/internal/extract"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// retrySleepFunc is the sleep function used between extraction attempts (replaceable in tests)
var retrySleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrMalformedResponse marks a model reply that is not a usable extraction
var ErrMalformedResponse = errors.New("malformed extraction response")

// responseSchema is the minimum shape accepted from the model
var responseSchema = map[string]any{
	"type":     "object",
	"required": []string{"fields"},
	"properties": map[string]any{
		"fields": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name"},
				"properties": map[string]any{
					"name":       map[string]any{"type": "string"},
					"confidence": map[string]any{"type": []string{"number", "null"}},
					"source": map[string]any{
						"type": []string{"object", "null"},
						"properties": map[string]any{
							"page": map[string]any{"type": "integer"},
							"bbox": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
						},
					},
				},
			},
		},
	},
}

// compileSchema compiles a JSON schema held as a generic map
func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("extraction.json")
}

// ExtractionAgent extracts fields with a language model, retrying malformed replies
type ExtractionAgent struct {
	provider Provider
	config   Config
	limit    int
	cache    cache.Cache
	cacheTTL time.Duration
	schema   *jsonschema.Schema
	logger   *slog.Logger
}

// NewExtractionAgent creates an agent that sends the first textLimit characters of a document.
// c may be nil to disable caching.
func NewExtractionAgent(provider Provider, config Config, textLimit int, c cache.Cache, cacheTTL time.Duration, logger *slog.Logger) (*ExtractionAgent, error) {
	if provider == nil {
		return nil, fmt.Errorf("extraction agent requires a provider")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	compiled, err := compileSchema(responseSchema)
	if err != nil {
		return nil, err
	}

	return &ExtractionAgent{
		provider: provider,
		config:   config,
		limit:    textLimit,
		cache:    c,
		cacheTTL: cacheTTL,
		schema:   compiled,
		logger:   logger,
	}, nil
}

// ExtractFields implements extract.FieldExtractor.
// Exhausted retries are not an error: the extraction is empty and Meta.Error says why.
func (a *ExtractionAgent) ExtractFields(ctx context.Context, text string, docType model.DocType, customFields []string) (*extract.Extraction, error) {
	fields := schema.For(docType).FieldsWithCustom(customFields)
	text = truncateRunes(text, a.limit)
	custom := nonNilStrings(customFields)

	key := cache.Key("extract", a.provider.Name(), a.config.Model, string(docType), strings.Join(fields, ","), text)
	if cached, ok := a.fromCache(key); ok {
		cached.Meta.Cached = true
		a.logger.Debug("llm.extract.cache_hit", "doc_type", docType)
		return cached, nil
	}

	system, user := BuildExtractionPrompt(docType, fields, text)
	req := CompletionRequest{
		System:      system,
		Prompt:      user,
		Model:       a.config.Model,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		JSON:        true,
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		attempts = attempt
		start := time.Now()
		a.logger.Debug("llm.extract.start", "doc_type", docType, "attempt", attempt, "provider", a.provider.Name())

		resp, err := a.provider.Complete(ctx, req)
		if err == nil {
			var records []model.FieldRecord
			records, err = a.parse(resp.Content)
			if err == nil {
				extract.NormalizeFields(records, a.logger)
				out := &extract.Extraction{
					Fields: records,
					Meta: model.ExtractionMeta{
						Model:        pick(resp.Model, a.config.Model),
						Attempts:     attempt,
						CustomFields: custom,
					},
				}
				a.logger.Info("llm.extract.ok",
					"doc_type", docType,
					"attempt", attempt,
					"fields", len(records),
					"tokens", resp.TokensUsed,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				a.toCache(key, out)
				return out, nil
			}
		}

		lastErr = err
		a.logger.Warn("llm.extract.attempt_failed", "doc_type", docType, "attempt", attempt, "error", err)

		if ctx.Err() != nil || errors.Is(err, ErrProviderUnavailable) {
			break
		}
		if attempt < a.config.MaxRetries {
			if err := retrySleepFunc(ctx, time.Duration(attempt)*500*time.Millisecond); err != nil {
				break
			}
		}
	}

	a.logger.Error("llm.extract.failed", "doc_type", docType, "attempts", attempts, "error", lastErr)
	return &extract.Extraction{
		Fields: []model.FieldRecord{},
		Meta: model.ExtractionMeta{
			Model:        a.config.Model,
			Attempts:     attempts,
			CustomFields: custom,
			Error:        lastErr.Error(),
		},
	}, nil
}

// parse strips code fences, checks the reply against the response schema and decodes the fields
func (a *ExtractionAgent) parse(content string) ([]model.FieldRecord, error) {
	content = stripFences(content)

	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: JSON parsing error: %v", ErrMalformedResponse, err)
	}
	if err := a.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var payload struct {
		Fields []model.FieldRecord `json:"fields"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Fields == nil {
		payload.Fields = []model.FieldRecord{}
	}
	return payload.Fields, nil
}

// stripFences removes a leading ```json (or ```) and a trailing ``` around the reply
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (a *ExtractionAgent) fromCache(key string) (*extract.Extraction, bool) {
	if a.cache == nil {
		return nil, false
	}
	data, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	var out extract.Extraction
	if err := json.Unmarshal(data, &out); err != nil {
		_ = a.cache.Delete(key)
		return nil, false
	}
	return &out, true
}

func (a *ExtractionAgent) toCache(key string, out *extract.Extraction) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := a.cache.Set(key, data, a.cacheTTL); err != nil {
		a.logger.Warn("llm.extract.cache_write_failed", "error", err)
	}
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

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
