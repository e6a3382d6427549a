package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/ppiankov/docverify/internal/llm"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the LLM provider and OCR tools",
	Long: `Check verifies the collaborators docverify depends on:
- the configured LLM provider answers and accepts the API key
- tesseract and pdftoppm are on PATH when OCR is enabled

Example:
  docverify check
  DOCVERIFY_LLM_PROVIDER=ollama docverify check`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if failed := runChecks(ctx, cmd.OutOrStdout(), cfg, exec.LookPath); failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runChecks prints one line per check and returns the number that failed
func runChecks(ctx context.Context, w io.Writer, cfg *model.Config, lookPath func(string) (string, error)) int {
	failed := 0
	report := func(ok bool, format string, a ...any) {
		mark := "✓"
		if !ok {
			mark = "✗"
			failed++
		}
		fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, a...))
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	switch {
	case err != nil:
		report(false, "LLM provider: %v", err)
	case provider == nil:
		report(true, "LLM provider: none (offline keyword classifier and label extractor)")
	default:
		report(provider.IsAvailable(ctx), "LLM provider: %s (model %s)", provider.Name(), cfg.LLM.Model)
	}

	if !cfg.OCR.Enabled {
		report(true, "OCR: disabled")
		return failed
	}
	for _, tool := range []string{cfg.OCR.Tesseract, cfg.OCR.Pdftoppm} {
		path, err := lookPath(tool)
		if err != nil {
			report(false, "OCR tool %s: not found", tool)
			continue
		}
		report(true, "OCR tool %s: %s", tool, path)
	}
	return failed
}
