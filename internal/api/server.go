package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/elasticsearch"
	"github.com/JakeFAU/blog-search/internal/logging"
	"github.com/JakeFAU/blog-search/internal/metrics"
	"github.com/JakeFAU/blog-search/internal/search"
)

// Searcher runs hybrid queries.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
	Fusion() string
}

// ArticleCounter reports how many articles are stored.
type ArticleCounter interface {
	Count(ctx context.Context) (int64, error)
}

// IndexCounter reports how many documents an index holds.
type IndexCounter interface {
	Count(ctx context.Context, index string) (int64, error)
}

// ReadinessCheck reports whether a downstream dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Options tune request handling.
type Options struct {
	DefaultK       int
	MaxK           int
	Index          string
	APIKey         string
	RequestTimeout time.Duration
	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

// Server wires HTTP handlers to the search engine and stores.
type Server struct {
	router   chi.Router
	searcher Searcher
	articles ArticleCounter
	index    IndexCounter
	opts     Options
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, articles ArticleCounter, index IndexCounter, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxK <= 0 {
		opts.MaxK = 100
	}
	if opts.DefaultK <= 0 || opts.DefaultK > opts.MaxK {
		opts.DefaultK = min(10, opts.MaxK)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		searcher: searcher,
		articles: articles,
		index:    index,
		opts:     opts,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(logger))
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Get("/search", s.search)
		r.Get("/articles/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		logging.FromContext(r.Context(), s.logger).Warn("readiness check failed", zap.Any("failures", failures))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type searchResponse struct {
	Query   string          `json:"query"`
	Fusion  string          `json:"fusion"`
	K       int             `json:"k"`
	Results []search.Result `json:"results"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if !r.URL.Query().Has("q") {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	k := s.opts.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > s.opts.MaxK {
			writeError(w, http.StatusBadRequest, "k must be an integer between 1 and "+strconv.Itoa(s.opts.MaxK))
			return
		}
		k = parsed
	}

	results, err := s.searcher.Search(r.Context(), query, k)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, search.ErrInvalidK):
			status = http.StatusBadRequest
		case errors.Is(err, elasticsearch.ErrIndexNotFound):
			status = http.StatusNotFound
		case errors.Is(err, search.ErrEmbedding):
			status = http.StatusBadGateway
		case errors.Is(err, search.ErrSearchUnavailable):
			status = http.StatusServiceUnavailable
		}
		logging.FromContext(r.Context(), s.logger).Error("search failed", zap.String("query", query), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:   query,
		Fusion:  s.searcher.Fusion(),
		K:       k,
		Results: results,
	})
}

type statsResponse struct {
	Stored      int64  `json:"stored"`
	Index       string `json:"index"`
	IndexExists bool   `json:"index_exists"`
	Indexed     int64  `json:"indexed"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stored, err := s.articles.Count(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), s.logger).Error("count articles failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "article store unavailable")
		return
	}
	resp := statsResponse{Stored: stored, Index: s.opts.Index}
	indexed, err := s.index.Count(r.Context(), s.opts.Index)
	switch {
	case errors.Is(err, elasticsearch.ErrIndexNotFound):
	case err != nil:
		logging.FromContext(r.Context(), s.logger).Error("count documents failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "search engine unavailable")
		return
	default:
		resp.IndexExists = true
		resp.Indexed = indexed
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestIDMiddleware(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)
			ctx := logging.WithLogger(r.Context(), base.With(zap.String("request_id", reqID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context(), nil).Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.FromContext(r.Context(), nil).Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
