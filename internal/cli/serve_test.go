package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/docverify/internal/metrics"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.DiscardHandler)

const invoiceUpload = `ACME SUPPLIES INVOICE
Invoice Number: INV-1001
Invoice Date: 01/15/2024
Due Date: 02/15/2024
Vendor Name: Acme Supplies
Subtotal: $100.00
Tax Amount: $8.00
Total Amount: $108.00
`

func newTestServer(t *testing.T, maxBytes int64) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.OCR.Enabled = false
	cfg.Cache.Enabled = false

	m := metrics.New()
	p := pipeline.NewProcessor(cfg, pipeline.Components{Metrics: m}, quietLogger)
	ts := httptest.NewServer(newServer(p, m, maxBytes, quietLogger).Handler())
	t.Cleanup(ts.Close)
	return ts, m
}

func decodeResult(t *testing.T, resp *http.Response) model.Result {
	t.Helper()
	defer resp.Body.Close()
	var res model.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestServer_MultipartUpload(t *testing.T) {
	ts, _ := newTestServer(t, 1<<20)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "invoice.txt")
	require.NoError(t, err)
	_, err = io.WriteString(part, invoiceUpload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/v1/documents", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	res := decodeResult(t, resp)
	assert.Equal(t, model.DocTypeInvoice, res.DocType)
	assert.NotEmpty(t, res.Fields)
	require.NotNil(t, res.ProcessingMetadata)
	assert.Equal(t, "invoice.txt", res.ProcessingMetadata.Filename)
}

func TestServer_RawBody(t *testing.T) {
	ts, _ := newTestServer(t, 1<<20)

	resp, err := http.Post(ts.URL+"/v1/documents?filename=invoice.txt", "text/plain", strings.NewReader(invoiceUpload))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.DocTypeInvoice, decodeResult(t, resp).DocType)
}

func TestServer_ProcessingFailure(t *testing.T) {
	ts, _ := newTestServer(t, 1<<20)

	resp, err := http.Post(ts.URL+"/v1/documents?filename=payload.exe", "application/octet-stream", strings.NewReader("MZ"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	res := decodeResult(t, resp)
	assert.True(t, res.Failed())
	assert.Equal(t, []string{"processing_failed"}, res.QA.FailedRules)
	assert.Contains(t, res.Error, "unsupported file type")
}

func TestServer_BadRequests(t *testing.T) {
	ts, _ := newTestServer(t, 10)

	resp, err := http.Post(ts.URL+"/v1/documents", "text/plain", strings.NewReader(invoiceUpload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/documents")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_BodyTooLarge(t *testing.T) {
	p := pipeline.NewProcessor(model.DefaultConfig(), pipeline.Components{}, quietLogger)
	handler := newServer(p, nil, 10, quietLogger).Handler()

	huge := strings.Repeat("x", 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents?filename=big.txt", strings.NewReader(huge))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts, _ := newTestServer(t, 1<<20)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	resp, err = http.Post(ts.URL+"/v1/documents?filename=invoice.txt", "text/plain", strings.NewReader(invoiceUpload))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `docverify_http_requests_total{code="200",route="/healthz"} 1`)
	assert.Contains(t, text, `docverify_http_requests_total{code="200",route="/v1/documents"} 1`)
	assert.Contains(t, text, `docverify_pipeline_documents_total{doc_type="invoice",status="success"} 1`)
}
