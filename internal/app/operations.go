package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/crawler"
	"github.com/JakeFAU/blog-search/internal/elasticsearch"
	"github.com/JakeFAU/blog-search/internal/index"
	"github.com/JakeFAU/blog-search/internal/search"
)

// ErrNoRootURL is returned by Ingest when neither the caller nor crawl.root_url names a listing.
var ErrNoRootURL = errors.New("no root url configured")

// Ingest crawls root (or crawl.root_url when root is empty) into the article store.
func (a *App) Ingest(ctx context.Context, root string) (crawler.IngestSummary, error) {
	if root == "" {
		root = a.cfg.Crawl.RootURL
	}
	if root == "" {
		return crawler.IngestSummary{}, ErrNoRootURL
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	coord, err := a.Coordinator(ctx)
	if err != nil {
		return crawler.IngestSummary{}, err
	}
	a.logger.Info("ingestion started", zap.String("root", root))
	return coord.Run(ctx, root)
}

// Index embeds every stored article into the configured index.
func (a *App) Index(ctx context.Context) (index.Summary, error) {
	return a.Indexer().Run(ctx)
}

// Search runs a hybrid query and reports the fusion that ranked it.
func (a *App) Search(ctx context.Context, query string, k int) ([]search.Result, string, error) {
	engine, err := a.SearchEngine()
	if err != nil {
		return nil, "", err
	}
	if k <= 0 {
		k = a.cfg.Search.DefaultK
	}
	results, err := engine.Search(ctx, query, k)
	return results, engine.Fusion(), err
}

// Report summarizes what the store and the index currently hold.
type Report struct {
	Stored       int64                  `json:"stored"`
	SampleRecord *crawler.ArticleRecord `json:"sample_record,omitempty"`
	Index        string                 `json:"index"`
	IndexExists  bool                   `json:"index_exists"`
	Indexed      int64                  `json:"indexed"`
	SampleDoc    map[string]any         `json:"sample_document,omitempty"`
}

// Check inspects the article store and the search index. A missing index is reported,
// not returned as an error.
func (a *App) Check(ctx context.Context) (Report, error) {
	report := Report{Index: a.cfg.Elasticsearch.Index}

	stored, err := a.store.Count(ctx)
	if err != nil {
		return report, fmt.Errorf("count stored articles: %w", err)
	}
	report.Stored = stored
	record, ok, err := a.store.SampleOne(ctx)
	if err != nil {
		return report, fmt.Errorf("sample stored article: %w", err)
	}
	if ok {
		record.Paragraphs = truncateParagraphs(record.Paragraphs, 3)
		report.SampleRecord = &record
	}

	exists, err := a.es.IndexExists(ctx, report.Index)
	if err != nil {
		return report, err
	}
	report.IndexExists = exists
	if !exists {
		return report, nil
	}
	report.Indexed, err = a.es.Count(ctx, report.Index)
	if err != nil && !errors.Is(err, elasticsearch.ErrIndexNotFound) {
		return report, err
	}
	doc, ok, err := a.es.Sample(ctx, report.Index)
	if err != nil && !errors.Is(err, elasticsearch.ErrIndexNotFound) {
		return report, err
	}
	if ok {
		delete(doc, "title_vector")
		delete(doc, "combined_text_vector")
		report.SampleDoc = doc
	}
	return report, nil
}

func truncateParagraphs(paragraphs []string, n int) []string {
	if len(paragraphs) <= n {
		return paragraphs
	}
	return paragraphs[:n]
}
