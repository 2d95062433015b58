package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/blog-search/internal/metrics"
	"github.com/JakeFAU/blog-search/internal/telemetry"
)

// CoordinatorConfig controls the article stage of an ingestion run.
type CoordinatorConfig struct {
	// Workers bounds concurrent article fetches. Values below 1 mean sequential.
	Workers int
	// RequestTimeout is passed through to the fetcher.
	RequestTimeout time.Duration
	// BlobPrefix is prepended to archived raw HTML paths.
	BlobPrefix string
	// ContentType is attached to archived objects.
	ContentType string
	// Topic receives an IngestedEvent per stored article when a publisher is set.
	Topic string
}

// Coordinator drives the paginator, cleans the URL set, and extracts and stores each article.
type Coordinator struct {
	paginator *Paginator
	fetcher   Fetcher
	extractor Extractor
	store     ArticleStore
	cfg       CoordinatorConfig
	logger    *zap.Logger

	limiter   Limiter
	blobs     BlobStore
	hasher    Hasher
	publisher Publisher
	clock     Clock
}

// Option wires an optional collaborator into the Coordinator.
type Option func(*Coordinator)

// WithLimiter throttles article fetches.
func WithLimiter(l Limiter) Option { return func(c *Coordinator) { c.limiter = l } }

// WithArchive stores the raw HTML of each article before extraction.
func WithArchive(blobs BlobStore, hasher Hasher) Option {
	return func(c *Coordinator) {
		c.blobs = blobs
		c.hasher = hasher
	}
}

// WithPublisher emits an IngestedEvent for every persisted record.
func WithPublisher(p Publisher) Option { return func(c *Coordinator) { c.publisher = p } }

// WithClock overrides the time source used for event timestamps.
func WithClock(clock Clock) Option { return func(c *Coordinator) { c.clock = clock } }

// NewCoordinator constructs a Coordinator.
func NewCoordinator(
	paginator *Paginator,
	fetcher Fetcher,
	extractor Extractor,
	store ArticleStore,
	cfg CoordinatorConfig,
	logger *zap.Logger,
	opts ...Option,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	c := &Coordinator{
		paginator: paginator,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run walks the listing under root and persists every article it can fetch. Individual
// fetch failures are logged and skipped; a store failure aborts the run.
func (c *Coordinator) Run(ctx context.Context, root string) (IngestSummary, error) {
	var summary IngestSummary

	discovered, err := c.paginator.Collect(ctx, root)
	summary.Discovered = len(discovered)
	if err != nil {
		return summary, err
	}

	urls := CleanURLs(discovered, root)
	summary.Unique = len(urls)
	c.logger.Info("article urls ready",
		zap.Int("discovered", summary.Discovered),
		zap.Int("unique", summary.Unique),
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, url := range urls {
		g.Go(func() error {
			outcome, err := c.processURL(gctx, url)
			mu.Lock()
			switch outcome {
			case outcomeStored:
				summary.Processed++
			case outcomeFetchFailed:
				summary.FailedFetches++
			case outcomeSkipped:
				summary.Skipped++
			}
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	c.logger.Info("ingestion complete",
		zap.Int("processed", summary.Processed),
		zap.Int("failed_fetches", summary.FailedFetches),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// CleanURLs dedupes urls and drops numeric-suffix artifacts. The result is sorted.
func CleanURLs(urls []string, root string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if IsNumericSuffix(u, root) {
			continue
		}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

type outcome int

const (
	outcomeStored outcome = iota
	outcomeFetchFailed
	outcomeSkipped
)

func (c *Coordinator) processURL(ctx context.Context, url string) (outcome, error) {
	ctx, span := telemetry.Tracer("crawler").Start(ctx, "crawler.article")
	defer span.End()
	span.SetAttributes(attribute.String("article.url", url))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return outcomeSkipped, fmt.Errorf("wait for %s: %w", url, err)
		}
	}

	resp, err := c.fetcher.Fetch(ctx, FetchRequest{URL: url, Timeout: c.cfg.RequestTimeout})
	if err != nil {
		if ctx.Err() != nil {
			return outcomeSkipped, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		c.logger.Warn("failed to fetch article", zap.String("url", url), zap.Error(err))
		metrics.ObserveArticle(metrics.ArticleFetchFailed)
		return outcomeFetchFailed, nil
	}

	record, err := c.extractor.Extract(resp.Body, url)
	if err != nil {
		c.logger.Warn("article page unusable", zap.String("url", url), zap.Error(err))
		metrics.ObserveArticle(metrics.ArticleSkipped)
		return outcomeSkipped, nil
	}
	record.URL = url

	blobURI := c.archive(ctx, url, resp.Body)

	id, err := c.store.Insert(ctx, record)
	if err != nil {
		metrics.ObserveArticle(metrics.ArticleStoreFailed)
		if errors.Is(err, ErrStoreUnavailable) {
			return outcomeSkipped, fmt.Errorf("store %s: %w", url, err)
		}
		return outcomeSkipped, fmt.Errorf("store %s: %w: %w", url, ErrStoreUnavailable, err)
	}
	metrics.ObserveArticle(metrics.ArticleStored)
	c.logger.Info("article stored",
		zap.String("id", id),
		zap.String("url", url),
		zap.Int("paragraphs", len(record.Paragraphs)),
		zap.Int("key_takeaways", len(record.KeyTakeaways)),
	)

	c.publish(ctx, IngestedEvent{
		ID:        id,
		URL:       url,
		Title:     record.Title,
		BlobURI:   blobURI,
		Timestamp: c.clock.Now(),
	})
	return outcomeStored, nil
}

func (c *Coordinator) archive(ctx context.Context, url string, body []byte) string {
	if c.blobs == nil || c.hasher == nil {
		return ""
	}
	hash, err := c.hasher.Hash([]byte(url))
	if err != nil {
		c.logger.Warn("hash url failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	path := hash + ".html"
	if prefix := strings.Trim(c.cfg.BlobPrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := c.blobs.PutObject(ctx, path, c.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("archive raw html failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return uri
}

func (c *Coordinator) publish(ctx context.Context, evt IngestedEvent) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, evt); err != nil {
		c.logger.Warn("publish ingested event failed", zap.String("url", evt.URL), zap.Error(err))
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
