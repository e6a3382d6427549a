package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/docverify/internal/extract"
	"github.com/ppiankov/docverify/internal/model"
)

// Classifier asks the model for the document type
type Classifier struct {
	provider Provider
	config   Config
	limit    int
	fallback extract.Classifier
	logger   *slog.Logger
}

// NewClassifier creates a classifier sending the first limit characters of a document.
// fallback answers when the provider fails; nil means invoice.
func NewClassifier(provider Provider, config Config, limit int, fallback extract.Classifier, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, config: config, limit: limit, fallback: fallback, logger: logger}
}

// Classify returns the model's answer; anything other than a known type means invoice
func (c *Classifier) Classify(ctx context.Context, text string) model.DocType {
	resp, err := c.provider.Complete(ctx, CompletionRequest{
		System:      classifySystemPrompt,
		Prompt:      BuildClassifyPrompt(truncateRunes(text, c.limit)),
		Model:       c.config.Model,
		MaxTokens:   20,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		c.logger.Warn("llm.classify.failed", "provider", c.provider.Name(), "error", err)
		if c.fallback != nil {
			return c.fallback.Classify(ctx, text)
		}
		return model.DocTypeInvoice
	}

	label := strings.ToLower(strings.Trim(strings.TrimSpace(resp.Content), "\"'`."))
	docType := model.DocType(label)
	if !docType.IsKnown() {
		c.logger.Debug("llm.classify.unknown_label", "label", label)
		return model.DocTypeInvoice
	}
	return docType
}
