// Package search implements hybrid lexical and vector retrieval over the article index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/embedding"
	"github.com/JakeFAU/blog-search/internal/metrics"
	"github.com/JakeFAU/blog-search/internal/telemetry"
)

var (
	// ErrInvalidK is returned when the requested result count is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrEmbedding wraps query embedding failures.
	ErrEmbedding = errors.New("query embedding failed")
	// ErrSearchUnavailable wraps search engine failures.
	ErrSearchUnavailable = errors.New("search engine unavailable")
)

// SnippetRunes is the length of Result.Snippet.
const SnippetRunes = 200

// DefaultNumCandidates is the knn candidate pool used when none is configured.
const DefaultNumCandidates = 100

// Result is one ranked article.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Hit is one raw hit returned by a Searcher.
type Hit struct {
	ID           string
	Score        *float64
	Title        string
	URL          string
	CombinedText string
}

// Searcher executes a search body against an index.
type Searcher interface {
	Search(ctx context.Context, index string, body map[string]any) ([]Hit, error)
}

// Config controls an Engine.
type Config struct {
	Index         string
	NumCandidates int
}

// Engine embeds the query, builds the fused request and ranks the hits.
type Engine struct {
	searcher Searcher
	embedder embedding.Embedder
	fusion   Fusion
	cfg      Config
	logger   *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(searcher Searcher, embedder embedding.Embedder, fusion Fusion, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NumCandidates <= 0 {
		cfg.NumCandidates = DefaultNumCandidates
	}
	return &Engine{searcher: searcher, embedder: embedder, fusion: fusion, cfg: cfg, logger: logger}
}

// Fusion returns the configured strategy name.
func (e *Engine) Fusion() string { return e.fusion.Name() }

// Search returns at most k results ordered by descending fused score.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	start := time.Now()
	ctx, span := telemetry.Tracer("search").Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.fusion", e.fusion.Name()),
		attribute.Int("search.k", k),
	)

	vector, err := embedding.EmbedOne(ctx, e.embedder, query)
	if err != nil {
		metrics.ObserveSearch(e.fusion.Name(), "embedding_error", time.Since(start))
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	body := e.fusion.Body(Request{
		Text:          query,
		Vector:        vector,
		K:             k,
		NumCandidates: e.cfg.NumCandidates,
	})
	hits, err := e.searcher.Search(ctx, e.cfg.Index, body)
	if err != nil {
		metrics.ObserveSearch(e.fusion.Name(), "search_error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}

	results := Rank(hits, k)
	span.SetAttributes(attribute.Int("search.results", len(results)))
	metrics.ObserveSearch(e.fusion.Name(), "ok", time.Since(start))
	e.logger.Info("hybrid search",
		zap.String("query", query),
		zap.String("fusion", e.fusion.Name()),
		zap.Int("k", k),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("duration", time.Since(start)),
	)
	return results, nil
}

// Rank converts hits to results, stable-sorts them by descending score and keeps the top k.
// Hits without a score are dropped.
func Rank(hits []Hit, k int) []Result {
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if h.Score == nil {
			continue
		}
		results = append(results, Result{
			Title:   h.Title,
			URL:     h.URL,
			Score:   *h.Score,
			Snippet: Snippet(h.CombinedText),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Snippet returns the first SnippetRunes runes of text.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetRunes {
		return text
	}
	return string(runes[:SnippetRunes])
}
