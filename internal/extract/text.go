package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/ppiankov/docverify/internal/model"
	"golang.org/x/net/html"
)

// Text is the raw text read from a document
type Text struct {
	Content  string
	Method   string // pdf-text, pdf-ocr, image-ocr, html, text
	Pages    int
	Warnings []string
}

// TextExtractor reads the text of a document
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (*Text, error)
}

// Extractor reads PDFs natively and falls back to tesseract for images and scanned pages
type Extractor struct {
	cfg     model.OCRConfig
	minText int
	runner  Runner
	logger  *slog.Logger
}

// NewExtractor creates a new text extractor.
// PDFs with fewer than minText characters of embedded text are rasterised and OCR'd.
func NewExtractor(cfg model.OCRConfig, minText int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, minText: minText, runner: execRunner{logger: logger}, logger: logger}
}

// Extract picks a reader based on the document's extension
func (e *Extractor) Extract(ctx context.Context, doc Document) (*Text, error) {
	kind := KindOf(doc.Name)
	e.logger.Debug("extract.text.start", "file", doc.Name, "kind", kind, "bytes", len(doc.Data))

	switch kind {
	case KindPDF:
		return e.extractPDF(ctx, doc)
	case KindImage:
		if !e.cfg.Enabled {
			return nil, fmt.Errorf("image %s: %w", doc.Name, ErrOCRDisabled)
		}
		return e.withTempFile(doc, func(path string) (*Text, error) {
			content, err := e.tesseract(ctx, path)
			if err != nil {
				return nil, err
			}
			return &Text{Content: content, Method: "image-ocr", Pages: 1}, nil
		})
	case KindHTML:
		node, err := html.Parse(bytes.NewReader(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		return &Text{Content: extractVisibleText(node), Method: "html", Pages: 1}, nil
	case KindText:
		if !utf8.Valid(doc.Data) {
			return nil, fmt.Errorf("text file %s is not valid UTF-8", doc.Name)
		}
		return &Text{Content: string(doc.Data), Method: "text", Pages: 1}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(doc.Name))
	}
}

func (e *Extractor) extractPDF(ctx context.Context, doc Document) (*Text, error) {
	content, pages, err := pdfText(doc.Data)
	if err != nil {
		e.logger.Warn("extract.pdf.text_failed", "file", doc.Name, "error", err)
	}

	if err == nil && CheckText(content, e.minText) == nil {
		return &Text{Content: content, Method: "pdf-text", Pages: pages}, nil
	}

	if !e.cfg.Enabled {
		if err != nil {
			return nil, fmt.Errorf("read pdf: %w", err)
		}
		// scanned PDF without OCR; the caller decides whether this is enough
		return &Text{Content: content, Method: "pdf-text", Pages: pages,
			Warnings: []string{"PDF has little embedded text and OCR is disabled"}}, nil
	}

	e.logger.Info("extract.pdf.ocr_fallback", "file", doc.Name, "embedded_chars", len(content))
	return e.withTempFile(doc, func(path string) (*Text, error) {
		return e.pdfOCR(ctx, path)
	})
}

// pdfText reads the embedded text layer of a PDF
func pdfText(data []byte) (text string, pages int, err error) {
	// the PDF reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", r.NumPage(), err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", r.NumPage(), err
	}
	return buf.String(), r.NumPage(), nil
}

// pdfOCR rasterises every page with pdftoppm and OCRs the images
func (e *Extractor) pdfOCR(ctx context.Context, path string) (*Text, error) {
	prefix := filepath.Join(filepath.Dir(path), "page")

	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	var warnings []string
	for _, img := range matches {
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}

	return &Text{Content: b.String(), Method: "pdf-ocr", Pages: len(matches), Warnings: warnings}, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, path, "stdout", "-l", e.cfg.Language)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// withTempFile writes the document to a scratch directory for the external tools
func (e *Extractor) withTempFile(doc Document, fn func(path string) (*Text, error)) (*Text, error) {
	dir, err := os.MkdirTemp("", "docverify-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("extract.cleanup.failed", "dir", dir, "error", err)
		}
	}()

	path := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(doc.Name)))
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	return fn(path)
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles.
// Block elements end a line so "Label: value" pairs stay on their own line.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return normalizeLines(buf.String())
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// normalizeLines trims every line and drops empty ones
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
