package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/docverify/internal/model"
)

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func testFetcher(robots bool) *Fetcher {
	return NewFetcher(model.HTTPConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "docverify/test",
		MaxBodyBytes:  1 << 20,
		RespectRobots: robots,
	}, nil, quietLogger)
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "docverify/test" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = fmt.Fprint(w, "%PDF-1.4")
	}))
	defer server.Close()

	doc, err := testFetcher(false).FetchWithRetry(context.Background(), server.URL+"/bills/march")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(doc.Data) != "%PDF-1.4" {
		t.Errorf("Unexpected body: %s", doc.Data)
	}
	if doc.Name != "march.pdf" {
		t.Errorf("Expected name march.pdf, got %s", doc.Name)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "Invoice Number: 1")
	}))
	defer server.Close()

	doc, err := testFetcher(false).FetchWithRetry(context.Background(), server.URL+"/a.txt")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if string(doc.Data) != "Invoice Number: 1" {
		t.Errorf("Unexpected body: %s", doc.Data)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(false).FetchWithRetry(context.Background(), server.URL+"/a.pdf")
	if err == nil {
		t.Fatal("Expected error for 404, got nil")
	}
	if got := err.Error(); got != "unexpected status: 404 Not Found" {
		t.Errorf("Unexpected error: %s", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testFetcher(false).FetchWithRetry(context.Background(), server.URL+"/a.pdf")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502 status error, got %v", err)
	}
	if attempts.Load() != fetchAttempts {
		t.Errorf("Expected %d attempts, got %d", fetchAttempts, attempts.Load())
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	if _, err := testFetcher(false).FetchWithRetry(context.Background(), server.URL+"/a.txt"); err != nil {
		t.Fatalf("Expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		_, _ = fmt.Fprint(w, "content")
	}))
	defer server.Close()

	f := testFetcher(true)
	if _, err := f.Fetch(context.Background(), server.URL+"/private/a.pdf"); !errors.Is(err, ErrRobotsDisallowed) {
		t.Errorf("Expected robots error, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), server.URL+"/public/a.pdf"); err != nil {
		t.Errorf("Expected public path to be fetched, got %v", err)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{Code: 503, Status: "503 Service Unavailable"}, true},
		{"500", &StatusError{Code: 500, Status: "500 Internal Server Error"}, true},
		{"429", &StatusError{Code: 429, Status: "429 Too Many Requests"}, true},
		{"404", &StatusError{Code: 404, Status: "404 Not Found"}, false},
		{"403", &StatusError{Code: 403, Status: "403 Forbidden"}, false},
		{"network", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}), true},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"robots", ErrRobotsDisallowed, false},
		{"read body", errors.New("read body: unexpected EOF"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		rawURL      string
		contentType string
		disposition string
		want        string
	}{
		{"https://x.example/files/bill.pdf", "application/octet-stream", "", "bill.pdf"},
		{"https://x.example/files/bill", "application/pdf", "", "bill.pdf"},
		{"https://x.example/files/scan", "image/jpeg", "", "scan.jpg"},
		{"https://x.example/", "text/html; charset=utf-8", "", "x.example.html"},
		{"https://x.example/download?id=7", "application/octet-stream", `attachment; filename="rx-0042.png"`, "rx-0042.png"},
		{"https://x.example/blob", "application/zip", "", "blob"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.rawURL)
		if err != nil {
			t.Fatal(err)
		}
		header := http.Header{}
		header.Set("Content-Type", tt.contentType)
		if tt.disposition != "" {
			header.Set("Content-Disposition", tt.disposition)
		}
		if got := documentName(u, header); got != tt.want {
			t.Errorf("documentName(%s) = %q, want %q", tt.rawURL, got, tt.want)
		}
	}
}
