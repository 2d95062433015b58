// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Sentinel values substituted when a field cannot be extracted.
const (
	UnknownTitle = "Unknown Title"
	UnknownDate  = "Unknown"
)

// ArticleRecord is the canonical unit produced by the extractor and persisted by the store.
type ArticleRecord struct {
	ID           string     `json:"id,omitempty"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Created      string     `json:"created"`
	Updated      string     `json:"updated"`
	Category     []string   `json:"category"`
	BlogTags     [][]string `json:"blog_tags"`
	RawTags      []string   `json:"raw_tags"`
	Paragraphs   []string   `json:"paragraphs"`
	KeyTakeaways []string   `json:"key_takeaways"`
	InsertedAt   time.Time  `json:"inserted_at,omitempty"`
}

// CombinedText joins paragraphs and key takeaways in reading order.
func (r ArticleRecord) CombinedText() string {
	parts := make([]string, 0, len(r.Paragraphs)+len(r.KeyTakeaways))
	parts = append(parts, r.Paragraphs...)
	parts = append(parts, r.KeyTakeaways...)
	return strings.Join(parts, " ")
}

// ListingPage is one fetched page of the paginated index.
type ListingPage struct {
	Number int
	URL    string
	Links  []string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// IngestSummary reports the outcome of one Coordinator run.
type IngestSummary struct {
	Discovered    int `json:"discovered"`
	Unique        int `json:"unique"`
	Processed     int `json:"processed"`
	FailedFetches int `json:"failed_fetches"`
	Skipped       int `json:"skipped"`
}

// IngestedEvent is published after an article has been persisted.
type IngestedEvent struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	BlobURI   string    `json:"blob_uri,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
