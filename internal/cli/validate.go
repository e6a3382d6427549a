package cli

import (
	"errors"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/validate"
	"github.com/spf13/cobra"
)

var (
	validateDocType string
	validateStrict  bool
)

// errValidationFailed signals failed rules to the exit code without printing twice
var errValidationFailed = errors.New("validation failed")

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <fields.json>",
	Short: "Check extracted fields against the document type's rules",
	Long: `Validate runs the rule catalogue for a document type (formats, ranges, totals and
date logic) over already-extracted fields and prints the QA report as JSON.

Example:
  docverify validate fields.json --type medical_bill
  docverify validate - --type invoice --strict < fields.json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateDocType, "type", string(model.DocTypeInvoice), "document type: invoice, medical_bill, prescription")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "exit with an error when any rule fails")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	docType, err := parseDocTypeFlag(validateDocType)
	if err != nil {
		return err
	}
	fields, err := readFields(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	report := validate.NewValidator(logger).Validate(docType, fields)
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if validateStrict && len(report.FailedRules) > 0 {
		return errValidationFailed
	}
	return nil
}
