package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/docverify/internal/extract"
	"github.com/ppiankov/docverify/internal/metrics"
	"github.com/ppiankov/docverify/internal/model"
	"github.com/ppiankov/docverify/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document pipeline over HTTP",
	Long: `Serve exposes the pipeline as a small JSON API:

  POST /v1/documents   multipart field "file", or a raw body with ?filename=
  GET  /healthz        liveness
  GET  /metrics        Prometheus metrics

Example:
  docverify serve --addr :8080
  curl -F file=@invoice.pdf http://localhost:8080/v1/documents`,
	Args: cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindPipelineFlags(cmd, args)
		_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyToggles(cmd, cfg)
	logger := newLogger(cfg)

	m := metrics.New()
	p, err := pipeline.Build(cfg, m, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(p, m, cfg.Processing.MaxFileBytes, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve.start", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("serve.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// documentProcessor runs the pipeline on an in-memory document
type documentProcessor interface {
	Process(ctx context.Context, doc extract.Document) *model.Result
}

type server struct {
	processor documentProcessor
	metrics   *metrics.Metrics
	maxBytes  int64
	logger    *slog.Logger
}

func newServer(p documentProcessor, m *metrics.Metrics, maxBytes int64, logger *slog.Logger) *server {
	return &server{processor: p, metrics: m, maxBytes: maxBytes, logger: logger}
}

// Handler routes the API and records request metrics per route
func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/documents", s.instrument("/v1/documents", http.HandlerFunc(s.processDocument)))
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(s.healthz)))
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) processDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readDocument(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSONResponse(w, status, map[string]string{"error": err.Error()})
		return
	}

	res := s.processor.Process(r.Context(), doc)
	status := http.StatusOK
	if res.Failed() {
		status = http.StatusUnprocessableEntity
	}
	writeJSONResponse(w, status, res)
}

// readDocument takes the multipart "file" field, or the raw body named by ?filename=
func (s *server) readDocument(w http.ResponseWriter, r *http.Request) (extract.Document, error) {
	if s.maxBytes > 0 {
		// room for multipart framing
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+1<<20)
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return extract.Document{}, fmt.Errorf("read upload: %w", err)
		}
		return extract.Document{Name: header.Filename, Data: data}, nil
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return extract.Document{}, fmt.Errorf("multipart field 'file' is required: %w", err)
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		return extract.Document{}, errors.New("multipart field 'file' or ?filename= is required")
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return extract.Document{}, fmt.Errorf("read body: %w", err)
	}
	return extract.Document{Name: name, Data: data}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		s.metrics.ObserveHTTP(route, rec.status, duration)
		s.logger.Debug("http.request", "method", r.Method, "route", route, "status", rec.status, "duration", duration)
	})
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
