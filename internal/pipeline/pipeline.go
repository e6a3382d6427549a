// Package pipeline runs documents through intake, text extraction, classification,
// field extraction, scoring and validation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/docverify/internal/cache"
	"github.com/ppiankov/docverify/internal/extract"
	"github.com/ppiankov/docverify/internal/llm"
	"github.com/ppiankov/docverify/internal/metrics"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/score"
	"github.com/ppiankov/docverify/internal/validate"
	"github.com/ppiankov/docverify/internal/worker"
)

// Components are the collaborators a Processor delegates to.
// Nil text, classifier and field extractors are replaced with the offline implementations.
type Components struct {
	Text       extract.TextExtractor
	Classifier extract.Classifier
	Fields     extract.FieldExtractor
	Fetcher    *Fetcher
	Metrics    *metrics.Metrics

	// names recorded in processing metadata and metrics
	ClassifierName string
	ExtractorName  string
}

// Processor compiles a result record for one document
type Processor struct {
	cfg       *model.Config
	c         Components
	scorer    *score.Scorer
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor creates a processor from explicit components
func NewProcessor(cfg *model.Config, c Components, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Text == nil {
		c.Text = extract.NewExtractor(cfg.OCR, cfg.Processing.MinTextLength, logger)
	}
	if c.Classifier == nil {
		c.Classifier = extract.NewKeywordClassifier(cfg.Processing.ClassifyTextLimit)
		c.ClassifierName = "keyword"
	}
	if c.Fields == nil {
		c.Fields = extract.NewLabelExtractor(cfg.Processing.ExtractTextLimit, logger)
		c.ExtractorName = extract.LabelExtractorModel
	}

	return &Processor{
		cfg:       cfg,
		c:         c,
		scorer:    score.NewScorer(logger),
		validator: validate.NewValidator(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Build wires a processor from configuration: the LLM provider behind a rate limiter and
// circuit breaker when one is configured, the extraction cache and the URL fetcher.
// A configured provider that cannot be created (for example a missing API key) is an error.
func Build(cfg *model.Config, m *metrics.Metrics, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	c := Components{
		Fetcher: NewFetcher(cfg.HTTP, limiter, logger),
		Metrics: m,
	}

	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.HTTP)
	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	if provider != nil {
		guarded := llm.NewGuardedProvider(provider, cfg.Breaker, limiter, logger)
		store := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.MemoryTTL, cfg.Cache.DiskTTL)

		agent, err := llm.NewExtractionAgent(guarded, llmCfg, cfg.Processing.ExtractTextLimit, store, cfg.Cache.DiskTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("create extraction agent: %w", err)
		}

		keywords := extract.NewKeywordClassifier(cfg.Processing.ClassifyTextLimit)
		c.Fields = agent
		c.ExtractorName = "llm:" + provider.Name()
		c.Classifier = llm.NewClassifier(guarded, llmCfg, cfg.Processing.ClassifyTextLimit, keywords, logger)
		c.ClassifierName = "llm:" + provider.Name()
	}

	logger.Debug("pipeline.build", "extractor", c.ExtractorName, "classifier", c.ClassifierName)
	return NewProcessor(cfg, c, logger), nil
}

// ProcessSource implements worker.Processor for a file path or http(s) URL
func (p *Processor) ProcessSource(ctx context.Context, source string) *model.Result {
	if IsURL(source) {
		if p.c.Fetcher == nil {
			return p.fail(source, uuid.NewString(), p.now(), errors.New("URL input requires a fetcher"))
		}
		doc, err := p.c.Fetcher.FetchWithRetry(ctx, source)
		if err != nil {
			return p.fail(source, uuid.NewString(), p.now(), fmt.Errorf("download %s: %w", source, err))
		}
		return p.Process(ctx, doc)
	}

	name := filepath.Base(source)
	info, err := os.Stat(source)
	if err != nil {
		return p.fail(name, uuid.NewString(), p.now(), fmt.Errorf("open document: %w", err))
	}
	if _, err := extract.CheckFile(name, info.Size(), p.limits()); err != nil {
		return p.fail(name, uuid.NewString(), p.now(), err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return p.fail(name, uuid.NewString(), p.now(), fmt.Errorf("read document: %w", err))
	}
	return p.Process(ctx, extract.Document{Name: name, Data: data})
}

// Process runs one in-memory document through the pipeline.
// Failures are returned as the error sentinel record.
func (p *Processor) Process(ctx context.Context, doc extract.Document) *model.Result {
	reqID := uuid.NewString()
	start := p.now()
	logger := p.logger.With("req_id", reqID, "file", doc.Name)

	p.c.Metrics.StartDocument()
	logger.Info("pipeline.process.start", "bytes", len(doc.Data))

	warnings, err := extract.CheckFile(doc.Name, int64(len(doc.Data)), p.limits())
	if err != nil {
		return p.finish(logger, p.fail(doc.Name, reqID, start, err), start)
	}

	text, err := p.c.Text.Extract(ctx, doc)
	if err != nil {
		return p.finish(logger, p.fail(doc.Name, reqID, start, fmt.Errorf("extract text: %w", err)), start)
	}
	warnings = append(warnings, text.Warnings...)

	if err := extract.CheckText(text.Content, p.cfg.Processing.MinTextLength); err != nil {
		return p.finish(logger, p.fail(doc.Name, reqID, start, err), start)
	}

	docType := p.c.Classifier.Classify(ctx, text.Content)
	logger.Debug("pipeline.classified", "doc_type", docType, "classifier", p.c.ClassifierName)

	custom := p.cfg.Processing.CustomFields
	extraction, err := p.c.Fields.ExtractFields(ctx, text.Content, docType, custom)
	if err != nil {
		return p.finish(logger, p.fail(doc.Name, reqID, start, fmt.Errorf("extract fields: %w", err)), start)
	}
	p.observeExtraction(extraction.Meta)

	scored := p.scorer.Score(extraction.Fields, text.Content, docType)
	qa := p.validator.Validate(docType, scored.Fields)

	signals := append(scored.Signals, p.pipelineSignals(scored.Fields, extraction.Meta)...)

	result := &model.Result{
		DocType:           docType,
		Fields:            scored.Fields,
		OverallConfidence: scored.OverallConfidence,
		QA:                qa,
		Signals:           signals,
		ProcessingMetadata: &model.ProcessingMetadata{
			RequestID:           reqID,
			Filename:            doc.Name,
			TextLength:          utf8.RuneCountInString(text.Content),
			TextMethod:          text.Method,
			OCREnabled:          p.cfg.OCR.Enabled,
			CustomFields:        nonNil(custom),
			ConfidenceThreshold: p.cfg.Processing.ConfidenceThreshold,
			Classifier:          p.c.ClassifierName,
			Extraction:          extraction.Meta,
			Scoring:             scored.Metadata,
			Warnings:            warnings,
			ProcessedAt:         start.UTC(),
			DurationMS:          p.now().Sub(start).Milliseconds(),
		},
	}

	confidences := make([]float64, len(result.Fields))
	for i, f := range result.Fields {
		confidences[i] = f.Confidence
	}
	p.c.Metrics.ObserveScores(string(docType), result.OverallConfidence, confidences)
	for _, rule := range qa.FailedRules {
		p.c.Metrics.RuleFailed(string(docType), rule)
	}

	logger.Info("pipeline.process.ok",
		"doc_type", docType,
		"fields", len(result.Fields),
		"overall_confidence", result.OverallConfidence,
		"failed_rules", len(qa.FailedRules),
	)
	return p.finish(logger, result, start)
}

// pipelineSignals flags fields under the confidence threshold and failed extractions
func (p *Processor) pipelineSignals(fields []model.FieldRecord, meta model.ExtractionMeta) []model.Signal {
	var signals []model.Signal

	threshold := p.cfg.Processing.ConfidenceThreshold
	var low []string
	for _, f := range fields {
		if f.Confidence < threshold {
			low = append(low, f.Name)
		}
	}
	if len(low) > 0 {
		signals = append(signals, model.Signal{
			Type:        model.SignalLowConfidence,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d fields below confidence threshold %.2f", len(low), threshold),
			Data: map[string]interface{}{
				"fields":    low,
				"threshold": threshold,
			},
		})
	}

	if meta.Error != "" {
		signals = append(signals, model.Signal{
			Type:        model.SignalExtractionFailed,
			Severity:    model.SeverityCritical,
			Description: "Field extraction failed: " + meta.Error,
			Data: map[string]interface{}{
				"attempts": meta.Attempts,
				"model":    meta.Model,
			},
		})
	}
	return signals
}

func (p *Processor) observeExtraction(meta model.ExtractionMeta) {
	outcome := "ok"
	switch {
	case meta.Cached:
		outcome = "cached"
	case meta.Error != "":
		outcome = "failed"
	}
	p.c.Metrics.ObserveExtraction(p.c.ExtractorName, outcome, meta.Attempts)
}

// fail builds the error sentinel with enough metadata to trace the run
func (p *Processor) fail(name, reqID string, start time.Time, err error) *model.Result {
	res := model.ErrorResult(err)
	res.ProcessingMetadata = &model.ProcessingMetadata{
		RequestID:           reqID,
		Filename:            name,
		OCREnabled:          p.cfg.OCR.Enabled,
		CustomFields:        nonNil(p.cfg.Processing.CustomFields),
		ConfidenceThreshold: p.cfg.Processing.ConfidenceThreshold,
		ProcessedAt:         start.UTC(),
		DurationMS:          p.now().Sub(start).Milliseconds(),
	}
	return res
}

func (p *Processor) finish(logger *slog.Logger, res *model.Result, start time.Time) *model.Result {
	if res.Failed() {
		logger.Warn("pipeline.process.failed", "error", res.Error)
	}
	p.c.Metrics.FinishDocument(string(res.DocType), p.now().Sub(start), res.Failed())
	return res
}

func (p *Processor) limits() extract.Limits {
	return extract.Limits{
		MaxBytes:  p.cfg.Processing.MaxFileBytes,
		WarnBytes: p.cfg.Processing.WarnFileBytes,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
