// Package extract turns uploaded documents into text and fields.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file too large")
	ErrInsufficientText    = errors.New("insufficient text extracted from document")
	ErrOCRDisabled         = errors.New("ocr is disabled")
)

// Kind is the reader family selected by a document's extension
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindImage   Kind = "image"
	KindHTML    Kind = "html"
	KindText    Kind = "text"
	KindUnknown Kind = ""
)

var extensions = map[string]Kind{
	".pdf":  KindPDF,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tiff": KindImage,
	".tif":  KindImage,
	".html": KindHTML,
	".htm":  KindHTML,
	".txt":  KindText,
}

// Document is one uploaded file
type Document struct {
	Name string // original file name; its extension selects the reader
	Data []byte
}

// KindOf maps a file name to its reader family
func KindOf(name string) Kind {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// Limits bounds accepted uploads
type Limits struct {
	MaxBytes  int64 // larger files are rejected
	WarnBytes int64 // larger files are accepted with a warning
}

// CheckFile validates an upload before any text is read.
// It returns warnings for files that are accepted but unusual.
func CheckFile(name string, size int64, limits Limits) ([]string, error) {
	if KindOf(name) == KindUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, filepath.Ext(name))
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}
	if limits.MaxBytes > 0 && size > limits.MaxBytes {
		return nil, fmt.Errorf("%w: %.1f MB exceeds %.0f MB", ErrFileTooLarge, megabytes(size), megabytes(limits.MaxBytes))
	}

	var warnings []string
	if limits.WarnBytes > 0 && size > limits.WarnBytes {
		warnings = append(warnings, fmt.Sprintf("Large file (%.1f MB) may take longer to process", megabytes(size)))
	}
	return warnings, nil
}

// CheckText rejects text too short to extract fields from
func CheckText(text string, minLength int) error {
	if len([]rune(strings.TrimSpace(text))) < minLength {
		return ErrInsufficientText
	}
	return nil
}

func megabytes(n int64) float64 {
	return float64(n) / (1 << 20)
}
