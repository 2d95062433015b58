package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchesTotal == nil || articlesTotal == nil ||
		httpRequestsTotal == nil || searchDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveFetch("https://Blog.Example.com/post", "success", 512)
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("blog.example.com", "success")); val != 1 {
		t.Errorf("Expected fetchesTotal to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("blog.example.com")); val != 512 {
		t.Errorf("Expected fetchBytesTotal to be 512, got %f", val)
	}
}

func TestObserveArticleAndListing(t *testing.T) {
	ObserveArticle(ArticleStored)
	ObserveArticle(ArticleStored)
	ObserveArticle(ArticleFetchFailed)
	if val := testutil.ToFloat64(articlesTotal.WithLabelValues(ArticleStored)); val != 2 {
		t.Errorf("Expected 2 stored articles, got %f", val)
	}

	before := testutil.ToFloat64(listingPagesTotal)
	ObserveListingPage(12)
	if val := testutil.ToFloat64(listingPagesTotal); val != before+1 {
		t.Errorf("Expected listing page counter to increase by 1, got %f", val-before)
	}
}

func TestObserveSearch(t *testing.T) {
	ObserveSearch("rrf", "ok", 20*time.Millisecond)
	if val := testutil.ToFloat64(searchRequestsTotal.WithLabelValues("rrf", "ok")); val != 1 {
		t.Errorf("Expected 1 rrf search, got %f", val)
	}
	ObserveIndexed("indexed", 3)
	if val := testutil.ToFloat64(documentsIndexedTotal.WithLabelValues("indexed")); val != 3 {
		t.Errorf("Expected 3 indexed documents, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
