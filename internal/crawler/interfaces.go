package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Network errors, non-2xx
// statuses and timeouts are all reported as errors wrapping ErrFetchUnavailable.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns one fetched article page into a record.
type Extractor interface {
	Extract(body []byte, url string) (ArticleRecord, error)
}

// ArticleStore persists extracted articles.
type ArticleStore interface {
	Insert(ctx context.Context, record ArticleRecord) (string, error)
	Count(ctx context.Context) (int64, error)
	// SampleOne returns false when the store is empty.
	SampleOne(ctx context.Context) (ArticleRecord, bool, error)
	List(ctx context.Context) ([]ArticleRecord, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes ingestion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Limiter throttles article fetches.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for blob paths and document IDs.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
