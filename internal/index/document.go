// Package index turns stored articles into searchable documents and loads them into the search index.
package index

import (
	"context"
	"strings"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

// DefaultDimensions matches the 768-dimensional sentence embedding model used for the corpus.
const DefaultDimensions = 768

// Document is the searchable projection of one ArticleRecord.
type Document struct {
	// ID is the search engine document id; it is not part of the source.
	ID                 string    `json:"-"`
	URL                string    `json:"url"`
	Title              string    `json:"title"`
	CombinedText       string    `json:"combined_text"`
	TitleVector        []float32 `json:"title_vector"`
	CombinedTextVector []float32 `json:"combined_text_vector"`
	BlogTags           string    `json:"blog_tags"`
	Category           string    `json:"category"`
	Created            *string   `json:"created"`
	Updated            *string   `json:"updated"`
}

// BulkResult counts the outcome of a bulk upsert.
type BulkResult struct {
	Indexed int
	Failed  int
}

// DocumentIndex is the search engine surface the Indexer writes to.
type DocumentIndex interface {
	// EnsureIndex creates name with mapping unless it exists and reports whether it was created.
	EnsureIndex(ctx context.Context, name string, mapping map[string]any) (bool, error)
	BulkUpsert(ctx context.Context, name string, docs []Document) (BulkResult, error)
}

// Mapping returns the index settings and mappings for vectors of length dims.
func Mapping(dims int) map[string]any {
	vector := map[string]any{
		"type":       "dense_vector",
		"dims":       dims,
		"index":      true,
		"similarity": "cosine",
	}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"url":                  map[string]any{"type": "keyword"},
				"title":                map[string]any{"type": "text"},
				"combined_text":        map[string]any{"type": "text"},
				"title_vector":         vector,
				"combined_text_vector": vector,
				"blog_tags":            map[string]any{"type": "keyword"},
				"category":             map[string]any{"type": "keyword"},
				"created":              map[string]any{"type": "date"},
				"updated":              map[string]any{"type": "date"},
			},
		},
	}
}

// FlattenTags renders tag part lists as "a b, c d".
func FlattenTags(tags [][]string) string {
	joined := make([]string, 0, len(tags))
	for _, parts := range tags {
		joined = append(joined, strings.Join(parts, " "))
	}
	return strings.Join(joined, ", ")
}

// BuildDocument projects record onto a Document. Vectors are attached by the caller.
func BuildDocument(id string, record crawler.ArticleRecord) Document {
	return Document{
		ID:           id,
		URL:          record.URL,
		Title:        record.Title,
		CombinedText: record.CombinedText(),
		BlogTags:     FlattenTags(record.BlogTags),
		Category:     strings.Join(record.Category, ", "),
		Created:      dateOrNil(record.Created),
		Updated:      dateOrNil(record.Updated),
	}
}

func dateOrNil(value string) *string {
	if value == "" || value == crawler.UnknownDate {
		return nil
	}
	return &value
}
