// Package app builds the long-lived services from configuration and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/api"
	"github.com/JakeFAU/blog-search/internal/clock/system"
	"github.com/JakeFAU/blog-search/internal/config"
	"github.com/JakeFAU/blog-search/internal/crawler"
	"github.com/JakeFAU/blog-search/internal/elasticsearch"
	"github.com/JakeFAU/blog-search/internal/embedding"
	"github.com/JakeFAU/blog-search/internal/extract"
	collyfetcher "github.com/JakeFAU/blog-search/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/blog-search/internal/fetcher/headless"
	"github.com/JakeFAU/blog-search/internal/hash/sha256"
	"github.com/JakeFAU/blog-search/internal/id/uuid"
	"github.com/JakeFAU/blog-search/internal/index"
	"github.com/JakeFAU/blog-search/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/blog-search/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/blog-search/internal/publisher/pubsub"
	"github.com/JakeFAU/blog-search/internal/search"
	gcsstorage "github.com/JakeFAU/blog-search/internal/storage/gcs"
	localstorage "github.com/JakeFAU/blog-search/internal/storage/local"
	memorystorage "github.com/JakeFAU/blog-search/internal/storage/memory"
	pgstore "github.com/JakeFAU/blog-search/internal/storage/postgres"
	"github.com/JakeFAU/blog-search/internal/telemetry"
)

// Version is reported in traces; overridden at build time.
var Version = "dev"

type closer struct {
	name string
	fn   func(context.Context) error
}

// App holds the services shared by every command. Components that are only needed by
// some commands (fetchers, archive, publisher) are built on demand.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    crawler.ArticleStore
	es       *elasticsearch.Client
	embedder embedding.Embedder
	hasher   crawler.Hasher
	clock    crawler.Clock
	closers  []closer
}

// Build creates the store, search client, embedder and tracer from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		hasher: sha256.New(),
		clock:  system.New(),
	}

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     Version,
		ProjectID:   cfg.Telemetry.ProjectID,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.onClose("tracer", tp.Shutdown)

	if err := a.setupStore(ctx); err != nil {
		a.closeQuietly()
		return nil, err
	}

	a.es, err = elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		APIKey:    cfg.Elasticsearch.APIKey,
	}, logger.Named("elasticsearch"))
	if err != nil {
		a.closeQuietly()
		return nil, fmt.Errorf("elasticsearch client init failed: %w", err)
	}

	a.embedder, err = newEmbedder(cfg.Embedding, logger)
	if err != nil {
		a.closeQuietly()
		return nil, err
	}

	logger.Info("application services built",
		zap.String("store", cfg.Store.Driver),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("index", cfg.Elasticsearch.Index),
	)
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Store returns the article store.
func (a *App) Store() crawler.ArticleStore { return a.store }

// Elasticsearch returns the search engine client.
func (a *App) Elasticsearch() *elasticsearch.Client { return a.es }

func (a *App) setupStore(ctx context.Context) error {
	ids := uuid.New()
	switch a.cfg.Store.Driver {
	case "postgres":
		pg := a.cfg.Store.Postgres
		store, err := pgstore.NewArticleStore(ctx, pgstore.ArticleStoreConfig{
			DSN:             pg.DSN,
			Table:           pg.Table,
			MaxConns:        pg.MaxConns,
			MinConns:        pg.MinConns,
			MaxConnLifetime: pg.MaxConnLifetime,
		}, ids, a.clock)
		if err != nil {
			return fmt.Errorf("article store init failed: %w", err)
		}
		a.onClose("postgres", func(context.Context) error {
			store.Close()
			return nil
		})
		if pg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("article store migrate failed: %w", err)
			}
		}
		a.logger.Info("using postgres article store", zap.String("table", pg.Table))
		a.store = store
	default:
		a.logger.Warn("using in-memory article store; records are lost on exit")
		a.store = memorystorage.NewArticleStore(ids, a.clock)
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "hash":
		logger.Warn("using feature-hashing embedder; vectors carry no semantics")
		return embedding.NewHashEmbedder(cfg.Dimensions), nil
	case "http":
		return embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}, nil, logger.Named("embedding")), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Fetcher builds the page fetcher selected by crawl.headless.
func (a *App) Fetcher() (crawler.Fetcher, error) {
	crawl := a.cfg.Crawl
	if crawl.Headless.Enabled {
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       crawl.Headless.MaxParallel,
			UserAgent:         crawl.UserAgent,
			NavigationTimeout: crawl.Headless.NavTimeout,
			ExecPath:          crawl.Headless.ExecPath,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.onClose("headless", func(context.Context) error {
			f.Close()
			return nil
		})
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", crawl.Headless.MaxParallel))
		return f, nil
	}
	a.logger.Info("using colly fetcher", zap.String("user_agent", crawl.UserAgent))
	return collyfetcher.New(collyfetcher.Config{
		UserAgent: crawl.UserAgent,
		Timeout:   crawl.RequestTimeout,
	}), nil
}

// BlobStore builds the raw HTML archive, or returns nil when archiving is disabled.
func (a *App) BlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Blob.Driver {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Blob.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.onClose("gcs", func(context.Context) error { return blobs.Close() })
		a.logger.Info("archiving pages to GCS", zap.String("bucket", a.cfg.Blob.GCSBucket))
		return blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Blob.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("archiving pages locally", zap.String("path", a.cfg.Blob.LocalDir))
		return blobs, nil
	case "memory":
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

// Publisher builds the ingestion event publisher, or returns nil when disabled.
func (a *App) Publisher(ctx context.Context) (crawler.Publisher, error) {
	ps := a.cfg.PubSub
	if !ps.Enabled {
		return nil, nil
	}
	if ps.ProjectID == "" {
		a.logger.Warn("pubsub enabled without project, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, ps.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub := gcppublisher.New(client)
	a.onClose("pubsub", func(context.Context) error { return pub.Close() })
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", ps.ProjectID),
		zap.String("topic", ps.Topic),
	)
	return pub, nil
}

// Coordinator wires the paginator, fetcher, extractor, store and optional archive,
// publisher and rate limiter into an ingestion Coordinator.
func (a *App) Coordinator(ctx context.Context) (*crawler.Coordinator, error) {
	crawl := a.cfg.Crawl
	fetcher, err := a.Fetcher()
	if err != nil {
		return nil, err
	}
	paginator := crawler.NewPaginator(fetcher, crawler.PaginatorConfig{
		Delay:          crawl.Delay,
		PageLimit:      crawl.PageLimit,
		RequestTimeout: crawl.RequestTimeout,
	}, a.logger.Named("paginator"))

	opts := []crawler.Option{crawler.WithClock(a.clock)}
	if crawl.RateLimit.RPS > 0 {
		opts = append(opts, crawler.WithLimiter(ratelimit.New(ratelimit.Config{
			RPS:   crawl.RateLimit.RPS,
			Burst: crawl.RateLimit.Burst,
		})))
	}
	blobs, err := a.BlobStore(ctx)
	if err != nil {
		return nil, err
	}
	if blobs != nil {
		opts = append(opts, crawler.WithArchive(blobs, a.hasher))
	}
	publisher, err := a.Publisher(ctx)
	if err != nil {
		return nil, err
	}
	if publisher != nil {
		opts = append(opts, crawler.WithPublisher(publisher))
	}

	return crawler.NewCoordinator(
		paginator,
		fetcher,
		extract.New(a.logger.Named("extract")),
		a.store,
		crawler.CoordinatorConfig{
			Workers:        crawl.Workers,
			RequestTimeout: crawl.RequestTimeout,
			BlobPrefix:     a.cfg.Blob.Prefix,
			ContentType:    a.cfg.Blob.ContentType,
			Topic:          a.cfg.PubSub.Topic,
		},
		a.logger.Named("coordinator"),
		opts...,
	), nil
}

// Indexer builds the store-to-index pipeline.
func (a *App) Indexer() *index.Indexer {
	return index.NewIndexer(a.store, a.embedder, a.es, a.hasher, index.Config{
		Index:      a.cfg.Elasticsearch.Index,
		Dimensions: a.cfg.Embedding.Dimensions,
		BatchSize:  a.cfg.Index.BatchSize,
	}, a.logger.Named("indexer"))
}

// SearchEngine builds the hybrid retrieval engine with the configured fusion.
func (a *App) SearchEngine() (*search.Engine, error) {
	s := a.cfg.Search
	fusion, err := search.NewFusion(s.Fusion, search.FusionConfig{
		LexicalBoost:   s.LexicalBoost,
		VectorBoost:    s.VectorBoost,
		RankConstant:   s.RankConstant,
		RankWindowSize: s.RankWindowSize,
	})
	if err != nil {
		return nil, fmt.Errorf("search fusion: %w", err)
	}
	return search.NewEngine(a.es, a.embedder, fusion, search.Config{
		Index:         a.cfg.Elasticsearch.Index,
		NumCandidates: s.NumCandidates,
	}, a.logger.Named("search")), nil
}

// APIServer builds the HTTP API.
func (a *App) APIServer() (*api.Server, error) {
	engine, err := a.SearchEngine()
	if err != nil {
		return nil, err
	}
	return api.NewServer(engine, a.store, a.es, api.Options{
		DefaultK:       a.cfg.Search.DefaultK,
		MaxK:           a.cfg.Server.MaxK,
		Index:          a.cfg.Elasticsearch.Index,
		APIKey:         a.cfg.Server.APIKey,
		RequestTimeout: a.cfg.Server.WriteTimeout,
		Checks: map[string]api.ReadinessCheck{
			"elasticsearch": a.es.Ping,
			"store": func(ctx context.Context) error {
				_, err := a.store.Count(ctx)
				return err
			},
		},
	}, a.logger.Named("api")), nil
}

// Serve runs the HTTP API until ctx is canceled or a termination signal arrives.
func (a *App) Serve(ctx context.Context) error {
	apiServer, err := a.APIServer()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of creation and flushes the logger.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) closeQuietly() {
	_ = a.Close(context.Background())
}
