package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	processTimeout time.Duration
	printJSON      bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file-or-url>...",
	Short: "Extract, score and validate one or more documents",
	Long: `Process runs each document through the full pipeline:
- Check the file type and size
- Read the text (PDF text layer, OCR for scans and images, HTML, plain text)
- Classify the document as invoice, medical_bill or prescription
- Extract the type's fields plus any custom fields
- Score every field and the document as a whole
- Validate formats, totals and date logic

Results are written to the output directory in each requested format.

Example:
  docverify process invoice.pdf
  docverify process scan.png --format json,md --output-dir ./results
  docverify process https://example.com/bills/march.pdf --provider openai --model gpt-4o
  docverify process rx.jpg --custom-field insurance_id --stdout`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	addPipelineFlags(processCmd)
	processCmd.PreRun = bindPipelineFlags

	processCmd.Flags().DurationVar(&processTimeout, "timeout", 5*time.Minute, "overall timeout")
	processCmd.Flags().BoolVar(&printJSON, "stdout", false, "print each result as JSON on stdout instead of writing files")
}

// addPipelineFlags registers the flags shared by process, batch and serve, bound to config keys
func addPipelineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("provider", "", "LLM provider: openai, anthropic, ollama (empty = offline)")
	f.String("model", "", "LLM model name")
	f.StringSlice("custom-field", nil, "extra field to extract (repeatable)")
	f.Float64("threshold", 0, "confidence threshold for low-confidence signals")
	f.Bool("no-ocr", false, "disable OCR for images and scanned PDFs")
	f.Bool("no-cache", false, "disable the extraction cache")
	f.StringSlice("format", nil, "output formats: json, md, xlsx")
	f.String("output-dir", "", "output directory")
}

// bindPipelineFlags maps the shared flags onto config keys. It runs as PreRun so the
// global viper binds the flags of the command actually executing.
func bindPipelineFlags(cmd *cobra.Command, _ []string) {
	f := cmd.Flags()
	_ = viper.BindPFlag("llm.provider", f.Lookup("provider"))
	_ = viper.BindPFlag("llm.model", f.Lookup("model"))
	_ = viper.BindPFlag("processing.custom_fields", f.Lookup("custom-field"))
	_ = viper.BindPFlag("processing.confidence_threshold", f.Lookup("threshold"))
	_ = viper.BindPFlag("output.formats", f.Lookup("format"))
	_ = viper.BindPFlag("output.dir", f.Lookup("output-dir"))
}

// applyToggles turns the negative flags off in the loaded config
func applyToggles(cmd *cobra.Command, cfg *model.Config) {
	if off, _ := cmd.Flags().GetBool("no-ocr"); off {
		cfg.OCR.Enabled = false
	}
	if off, _ := cmd.Flags().GetBool("no-cache"); off {
		cfg.Cache.Enabled = false
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyToggles(cmd, cfg)
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), processTimeout)
	defer cancel()

	p, err := pipeline.Build(cfg, nil, logger)
	if err != nil {
		return err
	}
	renderer := pipeline.NewRenderer(logger)

	failed := 0
	for _, source := range args {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "Processing: %s\n", source)
		}

		res := p.ProcessSource(ctx, source)
		if res.Failed() {
			failed++
		}

		if printJSON {
			data, err := renderer.JSON(res)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			continue
		}

		renderer.Summary(os.Stderr, res)
		paths, err := renderer.Write(res, cfg.Output.Dir, cfg.Output.Formats)
		if err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		for _, path := range paths {
			fmt.Fprintf(os.Stderr, "  ✓ Wrote %s\n", path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}
