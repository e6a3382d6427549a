package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/pipeline"
	"github.com/ppiankov/docverify/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var batchTimeout time.Duration

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Process many documents from a list file in parallel",
	Long: `Batch processes many documents concurrently:
- Read sources from the input file (one path or URL per line, # comments allowed)
- Process documents in parallel with a configurable worker count
- Write each document's result in the requested formats
- Write summary.json, and batch.xlsx with every document when xlsx is requested

Example:
  docverify batch documents.txt
  docverify batch documents.txt --workers 8 --output-dir ./results
  docverify batch documents.txt --format json,xlsx --timeout 30m`,
	Args:   cobra.ExactArgs(1),
	PreRun: bindBatchFlags,
	RunE:   runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addPipelineFlags(batchCmd)

	batchCmd.Flags().Int("workers", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func bindBatchFlags(cmd *cobra.Command, args []string) {
	bindPipelineFlags(cmd, args)
	_ = viper.BindPFlag("concurrency.workers", cmd.Flags().Lookup("workers"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyToggles(cmd, cfg)
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  docverify Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Formats:      %s\n", strings.Join(cfg.Output.Formats, ", "))
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Provider != "" {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.Build(cfg, nil, logger)
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers, logger)

	fmt.Fprintf(os.Stderr, "⚙️  Processing documents with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(logger)
	if err := writeBatchOutputs(renderer, results, cfg.Output); err != nil {
		return err
	}

	summary := worker.Summarize(results)
	for _, r := range results {
		renderer.Summary(os.Stderr, r.Result)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:           %d documents\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:         %d\n", summary.Succeeded)
	fmt.Fprintf(os.Stderr, "  Failures:        %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Mean confidence: %.2f\n", summary.MeanConfidence)
	fmt.Fprintf(os.Stderr, "  Output:          %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// writeBatchOutputs writes per-document results, the combined workbook and summary.json.
// Per-document xlsx files are skipped in favour of batch.xlsx.
func writeBatchOutputs(renderer *pipeline.Renderer, results []*worker.DocumentResult, out model.OutputConfig) error {
	perDoc := slices.DeleteFunc(slices.Clone(out.Formats), func(f string) bool {
		return strings.EqualFold(f, pipeline.FormatXLSX)
	})
	wantXLSX := len(perDoc) != len(out.Formats)

	all := make([]*model.Result, 0, len(results))
	for _, r := range results {
		all = append(all, r.Result)
		if _, err := renderer.Write(r.Result, out.Dir, perDoc); err != nil {
			return fmt.Errorf("write result for %s: %w", r.Source, err)
		}
	}

	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if wantXLSX {
		data, err := renderer.XLSX(all)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(out.Dir, "batch.xlsx"), data, 0o644); err != nil {
			return fmt.Errorf("write batch.xlsx: %w", err)
		}
	}

	data, err := json.MarshalIndent(worker.Summarize(results), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return os.WriteFile(filepath.Join(out.Dir, "summary.json"), append(data, '\n'), 0o644)
}
