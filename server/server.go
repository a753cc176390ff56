// Package server implements the pakstream file host: a small HTTP service
// that exposes a content directory to RemoteProvider clients.
//
// Routes:
//
//	GET      /healthz           liveness probe
//	GET|HEAD /files/{path}      file content with range and If-Match support
//	GET      /list?dir=&recursive=  JSON file listing (vfs.ListResponse)
//	GET      /metrics           Prometheus metrics, when a gatherer is set
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/vfs"
)

const shutdownTimeout = 5 * time.Second

// Server serves a content directory over HTTP.
type Server struct {
	provider *vfs.LocalProvider
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and lifecycle logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records request counts to m and exposes g on /metrics.
// Either may be nil.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// New returns a Server for the directory root.
func New(ctx context.Context, root string, opts ...Option) (*Server, error) {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	s.provider = vfs.NewLocalProvider(root, vfs.WithLocalLogger(s.logger))
	if err := s.provider.Initialize(ctx, ""); err != nil {
		return nil, fmt.Errorf("open content root: %w", err)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Root returns the served directory.
func (s *Server) Root() string {
	return s.provider.Dir()
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the content directory.
func (s *Server) Close() error {
	return s.provider.Close()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get(vfs.HealthPath, s.handleHealth)
	r.Get(vfs.ListPath, s.handleList)
	r.Get(vfs.FilesPath+"*", s.handleFile)
	r.Head(vfs.FilesPath+"*", s.handleFile)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// instrument logs each request and counts it by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.RecordHostRequest(route, status)
		s.log().Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	ctx := r.Context()

	info, err := s.provider.Stat(ctx, name)
	if err != nil {
		s.writeError(w, name, err)
		return
	}
	if info.IsDir() {
		http.Error(w, "not a file", http.StatusNotFound)
		return
	}

	src, err := s.provider.OpenSource(ctx, name)
	if err != nil {
		s.writeError(w, name, err)
		return
	}
	defer src.Close()

	// ServeContent evaluates If-Match against this header.
	w.Header().Set("ETag", etag(info))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, info.Name(), info.ModTime(), io.NewSectionReader(src, 0, src.Size()))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir := q.Get("dir")
	recursive := false
	if v := q.Get("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid recursive flag", http.StatusBadRequest)
			return
		}
		recursive = b
	}

	files, err := s.provider.FindFiles(r.Context(), dir, recursive)
	if err != nil {
		s.writeError(w, dir, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, vfs.ListResponse{
		Dir:       dir,
		Recursive: recursive,
		Files:     files,
	})
}

func (s *Server) writeError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, fs.ErrInvalid):
		http.Error(w, "invalid path", http.StatusBadRequest)
	case errors.Is(err, fs.ErrPermission):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		s.log().Error("file host error", "path", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // headers already sent
}

// etag derives a strong validator from size and modification time.
func etag(info fs.FileInfo) string {
	return `"` + strconv.FormatInt(info.Size(), 16) + "-" + strconv.FormatInt(info.ModTime().UnixNano(), 16) + `"`
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log().Info("file host listening", "addr", ln.Addr().String(), "root", s.Root())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log().Info("file host stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
