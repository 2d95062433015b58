package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

// ArticleStore keeps article records in insertion order for development and tests.
type ArticleStore struct {
	mu      sync.RWMutex
	records []crawler.ArticleRecord
	ids     crawler.IDGenerator
	clock   crawler.Clock
}

var _ crawler.ArticleStore = (*ArticleStore)(nil)

// NewArticleStore constructs an empty ArticleStore.
func NewArticleStore(ids crawler.IDGenerator, clock crawler.Clock) *ArticleStore {
	return &ArticleStore{ids: ids, clock: clock}
}

// Insert assigns an ID and insertion time, then appends a copy of record.
func (s *ArticleStore) Insert(_ context.Context, record crawler.ArticleRecord) (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("%w: %w", crawler.ErrStoreUnavailable, err)
	}
	record = cloneRecord(record)
	record.ID = id
	record.InsertedAt = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return id, nil
}

// Count returns the number of stored records.
func (s *ArticleStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// SampleOne returns the oldest record.
func (s *ArticleStore) SampleOne(context.Context) (crawler.ArticleRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return crawler.ArticleRecord{}, false, nil
	}
	return cloneRecord(s.records[0]), true, nil
}

// List returns copies of all records in insertion order.
func (s *ArticleStore) List(context.Context) ([]crawler.ArticleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.ArticleRecord, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out, nil
}

func cloneRecord(r crawler.ArticleRecord) crawler.ArticleRecord {
	r.Category = slices.Clone(r.Category)
	r.RawTags = slices.Clone(r.RawTags)
	r.Paragraphs = slices.Clone(r.Paragraphs)
	r.KeyTakeaways = slices.Clone(r.KeyTakeaways)
	if r.BlogTags != nil {
		tags := make([][]string, len(r.BlogTags))
		for i, t := range r.BlogTags {
			tags[i] = slices.Clone(t)
		}
		r.BlogTags = tags
	}
	return r
}
