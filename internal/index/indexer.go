package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/crawler"
	"github.com/JakeFAU/blog-search/internal/embedding"
	"github.com/JakeFAU/blog-search/internal/metrics"
)

const defaultBatchSize = 64

// Config controls an Indexer run.
type Config struct {
	Index      string
	Dimensions int
	BatchSize  int
}

// Summary reports the outcome of an Indexer run.
type Summary struct {
	Records int  `json:"records"`
	Indexed int  `json:"indexed"`
	Failed  int  `json:"failed"`
	Created bool `json:"index_created"`
}

// Indexer reads every stored article, embeds it and bulk-upserts it into the search index.
type Indexer struct {
	store    crawler.ArticleStore
	embedder embedding.Embedder
	target   DocumentIndex
	hasher   crawler.Hasher
	cfg      Config
	logger   *zap.Logger
}

// NewIndexer constructs an Indexer.
func NewIndexer(
	store crawler.ArticleStore,
	embedder embedding.Embedder,
	target DocumentIndex,
	hasher crawler.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		target:   target,
		hasher:   hasher,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run ensures the index exists and upserts one document per stored record. Document ids
// are the hash of the URL, so re-running replaces rather than duplicates.
func (ix *Indexer) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	start := time.Now()

	if ix.embedder.Dimensions() != ix.cfg.Dimensions {
		return summary, fmt.Errorf("%w: embedder produces %d, index expects %d",
			embedding.ErrDimensionMismatch, ix.embedder.Dimensions(), ix.cfg.Dimensions)
	}

	created, err := ix.target.EnsureIndex(ctx, ix.cfg.Index, Mapping(ix.cfg.Dimensions))
	if err != nil {
		return summary, fmt.Errorf("ensure index %s: %w", ix.cfg.Index, err)
	}
	summary.Created = created
	ix.logger.Info("search index ready", zap.String("index", ix.cfg.Index), zap.Bool("created", created))

	records, err := ix.store.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("list articles: %w", err)
	}
	summary.Records = len(records)

	for startIdx := 0; startIdx < len(records); startIdx += ix.cfg.BatchSize {
		end := min(startIdx+ix.cfg.BatchSize, len(records))
		docs, err := ix.buildBatch(ctx, records[startIdx:end])
		if err != nil {
			return summary, err
		}
		result, err := ix.target.BulkUpsert(ctx, ix.cfg.Index, docs)
		if err != nil {
			return summary, fmt.Errorf("bulk upsert: %w", err)
		}
		summary.Indexed += result.Indexed
		summary.Failed += result.Failed
		metrics.ObserveIndexed("indexed", result.Indexed)
		metrics.ObserveIndexed("failed", result.Failed)
		ix.logger.Info("batch indexed",
			zap.Int("batch_start", startIdx),
			zap.Int("indexed", result.Indexed),
			zap.Int("failed", result.Failed),
		)
	}

	ix.logger.Info("indexing complete",
		zap.Int("records", summary.Records),
		zap.Int("indexed", summary.Indexed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (ix *Indexer) buildBatch(ctx context.Context, records []crawler.ArticleRecord) ([]Document, error) {
	titles := make([]string, len(records))
	texts := make([]string, len(records))
	docs := make([]Document, len(records))
	for i, record := range records {
		id, err := ix.hasher.Hash([]byte(record.URL))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", record.URL, err)
		}
		docs[i] = BuildDocument(id, record)
		titles[i] = docs[i].Title
		texts[i] = docs[i].CombinedText
	}

	titleVectors, err := ix.embedder.Embed(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("embed titles: %w", err)
	}
	textVectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed combined text: %w", err)
	}
	if len(titleVectors) != len(docs) || len(textVectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d/%d vectors for %d documents", len(titleVectors), len(textVectors), len(docs))
	}
	if err := embedding.CheckDimensions(titleVectors, ix.cfg.Dimensions); err != nil {
		return nil, err
	}
	if err := embedding.CheckDimensions(textVectors, ix.cfg.Dimensions); err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].TitleVector = titleVectors[i]
		docs[i].CombinedTextVector = textVectors[i]
	}
	return docs, nil
}
