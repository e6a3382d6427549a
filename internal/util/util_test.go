package util

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proxyFor(t *testing.T, fn func(*http.Request) (*url.URL, error), rawURL string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	u, err := fn(req)
	require.NoError(t, err)
	if u == nil {
		return ""
	}
	return u.String()
}

func TestNewProxyFunc(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128", "internal.example, .corp.local,localhost:8080")

	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "http://docs.example.com/a.pdf"))
	assert.Equal(t, "http://secure-proxy:3128", proxyFor(t, fn, "https://docs.example.com/a.pdf"))
	assert.Empty(t, proxyFor(t, fn, "https://internal.example/a.pdf"))
	assert.Empty(t, proxyFor(t, fn, "https://files.internal.example/a.pdf"))
	assert.Empty(t, proxyFor(t, fn, "http://billing.corp.local/x"))
	assert.Empty(t, proxyFor(t, fn, "http://corp.local/x"))
	assert.Empty(t, proxyFor(t, fn, "http://localhost:9000/x"))
	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "http://notinternal.example/x"))

	all := NewProxyFunc("http://proxy:3128", "", "*")
	assert.Empty(t, proxyFor(t, all, "http://anything.example/x"))
}

func TestNewProxyFunc_HTTPSFallsBackToHTTPProxy(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "")
	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "https://docs.example.com/a.pdf"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "doc_type", "invoice")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"doc_type":"invoice"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestRobotsChecker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: docverify\nDisallow: /private/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	r := NewRobotsChecker("docverify/0.1 (+https://example.com)", srv.Client(), time.Minute)
	ctx := context.Background()

	allowed, delay, err := r.CanFetch(ctx, srv.URL+"/invoices/a.pdf")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	assert.False(t, r.IsAllowed(ctx, srv.URL+"/private/a.pdf"))
	assert.Equal(t, int32(1), hits.Load(), "robots.txt is cached per host")
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewRobotsChecker("docverify", srv.Client(), time.Minute)
	assert.True(t, r.IsAllowed(context.Background(), srv.URL+"/a.pdf"))
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	r := NewRobotsChecker("docverify", &http.Client{Timeout: 100 * time.Millisecond}, time.Minute)
	allowed, _, err := r.CanFetch(context.Background(), "http://127.0.0.1:1/a.pdf")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobotsChecker_RejectsBadScheme(t *testing.T) {
	r := NewRobotsChecker("docverify", nil, 0)
	_, _, err := r.CanFetch(context.Background(), "ftp://example.com/a.pdf")
	assert.Error(t, err)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "docverify", NormalizeUserAgent("docverify/0.1 (+https://example.com)"))
	assert.Equal(t, "bot", NormalizeUserAgent("bot"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}
