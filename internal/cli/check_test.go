package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/stretchr/testify/assert"
)

func fakeLookPath(found ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, f := range found {
			if f == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestRunChecks_Offline(t *testing.T) {
	cfg := model.DefaultConfig()

	var out bytes.Buffer
	failed := runChecks(context.Background(), &out, cfg, fakeLookPath("tesseract", "pdftoppm"))

	assert.Zero(t, failed)
	assert.Contains(t, out.String(), "✓ LLM provider: none")
	assert.Contains(t, out.String(), "✓ OCR tool tesseract: /usr/bin/tesseract")
}

func TestRunChecks_MissingToolAndKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "openai"

	var out bytes.Buffer
	failed := runChecks(context.Background(), &out, cfg, fakeLookPath("tesseract"))

	assert.Equal(t, 2, failed)
	assert.Contains(t, out.String(), "✗ LLM provider: openai API key is required")
	assert.Contains(t, out.String(), "✗ OCR tool pdftoppm: not found")
}

func TestRunChecks_ReachableOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = server.URL
	cfg.OCR.Enabled = false

	var out bytes.Buffer
	failed := runChecks(context.Background(), &out, cfg, fakeLookPath())

	assert.Zero(t, failed)
	assert.Contains(t, out.String(), "✓ LLM provider: ollama (model gpt-4o)")
	assert.Contains(t, out.String(), "✓ OCR: disabled")
}
