package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/docverify/internal/extract"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/util"
	"github.com/ppiankov/docverify/internal/worker"
)

// fetchSleepFunc is the backoff sleep between download attempts (replaceable in tests)
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const fetchAttempts = 3

// ErrRobotsDisallowed is returned when robots.txt forbids the download
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

var contentTypeExt = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/bmp":       ".bmp",
	"image/tiff":      ".tiff",
	"text/html":       ".html",
	"text/plain":      ".txt",
}

// Fetcher downloads remote documents
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	robots    *util.RobotsChecker
	limiter   *worker.Limiter
	logger    *slog.Logger
}

// NewFetcher creates a fetcher from the http config; limiter may be nil
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &http.Transport{Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		client:    client,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		limiter:   limiter,
		logger:    logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client, time.Hour)
	}
	return f
}

// IsURL reports whether source should be downloaded rather than read from disk
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch downloads rawURL once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (extract.Document, error) {
	var delay time.Duration
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return extract.Document{}, err
		}
		if !allowed {
			return extract.Document{}, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
		}
		delay = crawlDelay
	}
	if err := f.limiter.WaitWithDelay(ctx, worker.KeyForURL(rawURL), delay); err != nil {
		return extract.Document{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return extract.Document{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,image/*,text/html;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return extract.Document{}, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return extract.Document{}, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		// one extra byte tells CheckFile the document was too large
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return extract.Document{}, fmt.Errorf("read body: %w", err)
	}

	name := documentName(resp.Request.URL, resp.Header)
	f.logger.Debug("pipeline.fetch.ok", "url", rawURL, "name", name, "bytes", len(data))
	return extract.Document{Name: name, Data: data}, nil
}

// FetchWithRetry retries network errors, 5xx and 429 with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (extract.Document, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			f.logger.Warn("pipeline.fetch.retry", "url", rawURL, "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return extract.Document{}, err
			}
		}

		doc, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return extract.Document{}, err
		}
	}
	return extract.Document{}, lastErr
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}

// documentName picks a file name whose extension selects the text reader:
// Content-Disposition first, then the URL path, then the content type
func documentName(u *url.URL, header http.Header) string {
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		if name := path.Base(params["filename"]); params["filename"] != "" && extract.KindOf(name) != extract.KindUnknown {
			return name
		}
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = u.Hostname()
	}
	if extract.KindOf(base) != extract.KindUnknown {
		return base
	}

	mediaType, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	if ext, ok := contentTypeExt[mediaType]; ok {
		return base + ext
	}
	return base
}
