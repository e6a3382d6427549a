package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/score"
	"github.com/spf13/cobra"
)

var (
	scoreTextFile string
	scoreDocType  string
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <fields.json>",
	Short: "Score already-extracted fields against their source text",
	Long: `Score reads extracted fields and the document text, then prints each field's
confidence breakdown and the overall document confidence as JSON. No LLM is called.

The fields file holds a JSON array of {"name", "value", "confidence", "source"} records
or an object with a "fields" key. Use - to read it from stdin.

Example:
  docverify score fields.json --text invoice.txt
  cat fields.json | docverify score - --text rx.txt --type prescription`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreTextFile, "text", "", "file holding the document text the fields were read from")
	scoreCmd.Flags().StringVar(&scoreDocType, "type", string(model.DocTypeInvoice), "document type: invoice, medical_bill, prescription")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	docType, err := parseDocTypeFlag(scoreDocType)
	if err != nil {
		return err
	}
	fields, err := readFields(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	var text string
	if scoreTextFile != "" {
		data, err := os.ReadFile(scoreTextFile)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		text = string(data)
	}

	result := score.NewScorer(logger).Score(fields, text, docType)
	return writeJSON(cmd.OutOrStdout(), result)
}

// readFields loads field records from path, or from stdin when path is "-"
func readFields(stdin io.Reader, path string) ([]model.FieldRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read fields: %w", err)
	}
	return decodeFields(data)
}

// decodeFields accepts a bare array or an object with a "fields" key
func decodeFields(data []byte) ([]model.FieldRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("fields input is empty")
	}

	var fields []model.FieldRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
		return fields, nil
	}

	var wrapped struct {
		Fields *[]model.FieldRecord `json:"fields"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	if wrapped.Fields == nil {
		return nil, errors.New(`decode fields: expected an array or an object with a "fields" key`)
	}
	return *wrapped.Fields, nil
}

func parseDocTypeFlag(label string) (model.DocType, error) {
	t := model.DocType(label)
	if !t.IsKnown() {
		return "", fmt.Errorf("unknown document type %q (supported: invoice, medical_bill, prescription)", label)
	}
	return t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
