package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/xuri/excelize/v2"
)

// Output formats accepted by Renderer.Write
const (
	FormatJSON     = "json"
	FormatMarkdown = "md"
	FormatXLSX     = "xlsx"
)

// ConfidenceBand buckets a confidence for display: high >= 0.8, medium >= 0.6, else low
func ConfidenceBand(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

// Renderer writes result records as JSON, Markdown or XLSX
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a renderer
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// JSON encodes one result
func (r *Renderer) JSON(res *model.Result) ([]byte, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders one result as a human-readable report
func (r *Renderer) Markdown(res *model.Result) string {
	var b strings.Builder

	name := "document"
	if res.ProcessingMetadata != nil && res.ProcessingMetadata.Filename != "" {
		name = res.ProcessingMetadata.Filename
	}

	fmt.Fprintf(&b, "# Document Verification: %s\n\n", name)
	fmt.Fprintf(&b, "**Document type:** %s\n\n", res.DocType)
	fmt.Fprintf(&b, "**Overall confidence:** %.2f (%s)\n\n", res.OverallConfidence, ConfidenceBand(res.OverallConfidence))

	if res.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s\n\n", res.Error)
	}

	if len(res.Fields) > 0 {
		b.WriteString("## Fields\n\n")
		b.WriteString("| Field | Value | Confidence | Band | Page |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, f := range res.Fields {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %s | %d |\n",
				f.Name, escapeCell(f.Text()), f.Confidence, ConfidenceBand(f.Confidence), f.Source.Page)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Validation\n\n")
	fmt.Fprintf(&b, "**Passed (%d):** %s\n\n", len(res.QA.PassedRules), joinOrNone(res.QA.PassedRules))
	fmt.Fprintf(&b, "**Failed (%d):**", len(res.QA.FailedRules))
	if len(res.QA.FailedRules) == 0 {
		b.WriteString(" none\n\n")
	} else {
		b.WriteString("\n\n")
		for _, rule := range res.QA.FailedRules {
			if msg := res.QA.Messages[rule]; msg != "" {
				fmt.Fprintf(&b, "- `%s`: %s\n", rule, msg)
			} else {
				fmt.Fprintf(&b, "- `%s`\n", rule)
			}
		}
		b.WriteString("\n")
	}

	if len(res.QA.Warnings) > 0 {
		b.WriteString("**Warnings:**\n\n")
		for _, w := range res.QA.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if res.QA.Notes != "" {
		fmt.Fprintf(&b, "**Notes:** %s\n\n", res.QA.Notes)
	}

	if len(res.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, s := range res.Signals {
			fmt.Fprintf(&b, "- [%s] %s\n", s.Severity, s.Description)
		}
		b.WriteString("\n")
	}

	if meta := res.ProcessingMetadata; meta != nil {
		b.WriteString("## Processing\n\n")
		fmt.Fprintf(&b, "- Request: %s\n", meta.RequestID)
		if meta.TextMethod != "" {
			fmt.Fprintf(&b, "- Text: %d characters via %s\n", meta.TextLength, meta.TextMethod)
		}
		if meta.Extraction.Model != "" {
			fmt.Fprintf(&b, "- Extraction: %s, %d attempt(s)\n", meta.Extraction.Model, meta.Extraction.Attempts)
		}
		for _, w := range meta.Warnings {
			fmt.Fprintf(&b, "- Warning: %s\n", w)
		}
		fmt.Fprintf(&b, "- Duration: %d ms\n", meta.DurationMS)
	}

	return b.String()
}

// XLSX builds a workbook with a Fields sheet (one row per field) and a QA sheet (one row per document)
func (r *Renderer) XLSX(results []*model.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const fieldsSheet, qaSheet = "Fields", "QA"

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(qaSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	writeRow(f, fieldsSheet, 1, "Document", "Doc Type", "Field", "Value", "Confidence", "Band", "Page")
	writeRow(f, qaSheet, 1, "Document", "Doc Type", "Overall Confidence", "Passed", "Failed", "Warnings", "Notes", "Error")

	fieldRow := 2
	for i, res := range results {
		name := resultName(res, i)
		for _, fr := range res.Fields {
			writeRow(f, fieldsSheet, fieldRow,
				name, string(res.DocType), fr.Name, fr.Text(), fr.Confidence, ConfidenceBand(fr.Confidence), fr.Source.Page)
			fieldRow++
		}
		writeRow(f, qaSheet, i+2,
			name,
			string(res.DocType),
			res.OverallConfidence,
			strings.Join(res.QA.PassedRules, ", "),
			strings.Join(res.QA.FailedRules, ", "),
			strings.Join(res.QA.Warnings, "; "),
			res.QA.Notes,
			res.Error,
		)
	}

	_ = f.SetColWidth(fieldsSheet, "A", "A", 28)
	_ = f.SetColWidth(fieldsSheet, "C", "C", 24)
	_ = f.SetColWidth(fieldsSheet, "D", "D", 40)
	_ = f.SetColWidth(qaSheet, "A", "A", 28)
	_ = f.SetColWidth(qaSheet, "D", "H", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	r.logger.Debug("render.xlsx.ok", "documents", len(results), "field_rows", fieldRow-2)
	return buf.Bytes(), nil
}

// Write stores one result in dir in each requested format and returns the written paths.
// xlsx writes a single-document workbook.
func (r *Renderer) Write(res *model.Result, dir string, formats []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	base := strings.TrimSuffix(resultName(res, 0), filepath.Ext(resultName(res, 0))) + ".result"
	var written []string
	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch strings.ToLower(format) {
		case FormatJSON:
			data, err = r.JSON(res)
		case FormatMarkdown, "markdown":
			format = FormatMarkdown
			data = []byte(r.Markdown(res))
		case FormatXLSX:
			data, err = r.XLSX([]*model.Result{res})
		default:
			return written, fmt.Errorf("unknown output format %q (supported: json, md, xlsx)", format)
		}
		if err != nil {
			return written, err
		}

		path := filepath.Join(dir, base+"."+strings.ToLower(format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Summary prints a one-document digest
func (r *Renderer) Summary(w io.Writer, res *model.Result) {
	name := resultName(res, 0)
	if res.Failed() {
		fmt.Fprintf(w, "✗ %s: %s\n", name, res.Error)
		return
	}
	fmt.Fprintf(w, "✓ %s: %s, confidence %.2f (%s), %d fields, %d/%d rules passed\n",
		name, res.DocType, res.OverallConfidence, ConfidenceBand(res.OverallConfidence),
		len(res.Fields), len(res.QA.PassedRules), len(res.QA.PassedRules)+len(res.QA.FailedRules))
	for _, rule := range res.QA.FailedRules {
		if msg := res.QA.Messages[rule]; msg != "" {
			fmt.Fprintf(w, "    - %s: %s\n", rule, msg)
		} else {
			fmt.Fprintf(w, "    - %s\n", rule)
		}
	}
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func resultName(res *model.Result, i int) string {
	if res.ProcessingMetadata != nil && res.ProcessingMetadata.Filename != "" {
		return res.ProcessingMetadata.Filename
	}
	return fmt.Sprintf("document-%d", i+1)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
