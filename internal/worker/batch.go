package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/docverify/internal/model"
)

// Processor turns one source (a file path or URL) into a result record.
// Failures come back as the error sentinel record, never as a nil result.
type Processor interface {
	ProcessSource(ctx context.Context, source string) *model.Result
}

// DocumentJob processes a single source
type DocumentJob struct {
	Source    string
	Processor Processor
}

// Execute implements Job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	start := time.Now()
	res := j.Processor.ProcessSource(ctx, j.Source)
	if res == nil {
		res = model.ErrorResult(errors.New("processor returned no result"))
	}
	return &DocumentResult{Source: j.Source, Result: res, Duration: time.Since(start)}
}

// DocumentResult pairs a source with its result record
type DocumentResult struct {
	Source   string
	Result   *model.Result
	Duration time.Duration
}

// Err returns the processing error carried by the sentinel record
func (r *DocumentResult) Err() error {
	if r.Result != nil && r.Result.Failed() {
		return errors.New(r.Result.Error)
	}
	return nil
}

// BatchProcessor processes many sources concurrently
type BatchProcessor struct {
	processor   Processor
	concurrency int
	logger      *slog.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(processor Processor, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{processor: processor, concurrency: concurrency, logger: logger}
}

// ProcessSources runs every source through the processor; results keep input order
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*DocumentResult {
	if len(sources) == 0 {
		return []*DocumentResult{}
	}

	b.logger.Info("batch.start", "sources", len(sources), "workers", b.concurrency)
	start := time.Now()

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, src := range sources {
		if !pool.Submit(&DocumentJob{Source: src, Processor: b.processor}) {
			break
		}
	}

	results := pool.Wait()

	out := make([]*DocumentResult, 0, len(results))
	for _, r := range results {
		if dr, ok := r.(*DocumentResult); ok {
			out = append(out, dr)
		}
	}

	summary := Summarize(out)
	b.logger.Info("batch.done",
		"processed", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// ProcessFile reads sources from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	sources, err := ReadSourcesFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads one path or URL per line, skipping blanks, # comments and duplicates
func ReadSourcesFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}

// Summary aggregates a batch run
type Summary struct {
	Total          int                   `json:"total"`
	Succeeded      int                   `json:"succeeded"`
	Failed         int                   `json:"failed"`
	ByDocType      map[model.DocType]int `json:"by_doc_type"`
	MeanConfidence float64               `json:"mean_confidence"`
	FailedSources  []string              `json:"failed_sources,omitempty"`
}

// Summarize counts outcomes; the mean confidence covers successful documents only
func Summarize(results []*DocumentResult) Summary {
	s := Summary{ByDocType: make(map[model.DocType]int)}
	var sum float64
	for _, r := range results {
		s.Total++
		if r.Err() != nil {
			s.Failed++
			s.FailedSources = append(s.FailedSources, r.Source)
			continue
		}
		s.Succeeded++
		s.ByDocType[r.Result.DocType]++
		sum += r.Result.OverallConfidence
	}
	if s.Succeeded > 0 {
		s.MeanConfidence = sum / float64(s.Succeeded)
	}
	return s
}
