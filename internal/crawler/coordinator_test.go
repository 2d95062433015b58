package crawler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockArticleStore is a mock implementation of the ArticleStore interface.
type MockArticleStore struct {
	mock.Mock
}

func (m *MockArticleStore) Insert(ctx context.Context, record ArticleRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *MockArticleStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArticleStore) SampleOne(ctx context.Context) (ArticleRecord, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(ArticleRecord), args.Bool(1), args.Error(2)
}

func (m *MockArticleStore) List(ctx context.Context) ([]ArticleRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]ArticleRecord), args.Error(1)
}

// titleExtractor uses the body as the title and rejects empty bodies.
type titleExtractor struct{}

func (titleExtractor) Extract(body []byte, _ string) (ArticleRecord, error) {
	if len(body) == 0 {
		return ArticleRecord{}, errors.New("empty page")
	}
	return ArticleRecord{Title: string(body), Paragraphs: []string{"p"}}, nil
}

type fakeBlobs struct {
	mu    sync.Mutex
	paths []string
}

func (b *fakeBlobs) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.paths = append(b.paths, path)
	b.mu.Unlock()
	return "mem://" + path, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []IngestedEvent
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload.(IngestedEvent))
	return "msg", nil
}

type constHasher struct{}

func (constHasher) Hash(data []byte) (string, error) { return "h" + string(rune('a'+len(data)%26)), nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func scenarioSite() *siteFetcher {
	return &siteFetcher{pages: map[string]string{
		testRoot:             listingHTML(testRoot+"b/", testRoot+"a/", testRoot+"2023/", testRoot+"missing/"),
		testRoot + "page/2/": listingHTML(testRoot+"a/", testRoot+"c/"),
		testRoot + "a/":      "Article A",
		testRoot + "b/":      "Article B",
		testRoot + "c/":      "Article C",
		testRoot + "2023/":   "archive",
	}}
}

func TestCoordinatorRunEndToEnd(t *testing.T) {
	t.Parallel()

	site := scenarioSite()
	store := &MockArticleStore{}
	var mu sync.Mutex
	var stored []string
	store.On("Insert", mock.Anything, mock.AnythingOfType("crawler.ArticleRecord")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			stored = append(stored, args.Get(1).(ArticleRecord).URL)
			mu.Unlock()
		}).
		Return("id-1", nil)

	blobs := &fakeBlobs{}
	pub := &fakePublisher{}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	p, _ := newTestPaginator(site, PaginatorConfig{})
	c := NewCoordinator(p, site, titleExtractor{}, store,
		CoordinatorConfig{Workers: 1, BlobPrefix: "raw/", Topic: "articles"}, nil,
		WithArchive(blobs, constHasher{}),
		WithPublisher(pub),
		WithClock(fixedClock{t: now}),
	)

	summary, err := c.Run(context.Background(), testRoot)
	require.NoError(t, err)
	require.Equal(t, IngestSummary{Discovered: 6, Unique: 4, Processed: 3, FailedFetches: 1}, summary)
	require.Equal(t, []string{testRoot + "a/", testRoot + "b/", testRoot + "c/"}, stored)
	require.Len(t, blobs.paths, 3)
	require.Contains(t, blobs.paths[0], "raw/")
	require.Len(t, pub.events, 3)
	require.Equal(t, now, pub.events[0].Timestamp)
	require.Equal(t, "mem://"+blobs.paths[0], pub.events[0].BlobURI)
	require.NotContains(t, site.fetched(), testRoot+"2023/")
	store.AssertNumberOfCalls(t, "Insert", 3)
}

func TestCoordinatorStoreFailureAborts(t *testing.T) {
	t.Parallel()

	site := scenarioSite()
	store := &MockArticleStore{}
	store.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	p, _ := newTestPaginator(site, PaginatorConfig{})
	c := NewCoordinator(p, site, titleExtractor{}, store, CoordinatorConfig{Workers: 1}, nil)

	summary, err := c.Run(context.Background(), testRoot)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Zero(t, summary.Processed)
}

func TestCoordinatorSkipsUnusablePages(t *testing.T) {
	t.Parallel()

	site := &siteFetcher{pages: map[string]string{
		testRoot:        listingHTML(testRoot+"a/", testRoot+"b/"),
		testRoot + "a/": "",
		testRoot + "b/": "Article B",
	}}
	store := &MockArticleStore{}
	store.On("Insert", mock.Anything, mock.Anything).Return("id", nil)

	p, _ := newTestPaginator(site, PaginatorConfig{PageLimit: 1})
	c := NewCoordinator(p, site, titleExtractor{}, store, CoordinatorConfig{Workers: 4}, nil)

	summary, err := c.Run(context.Background(), testRoot)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)
	require.Equal(t, 1, summary.Skipped)
}

func TestCoordinatorEmptyListing(t *testing.T) {
	t.Parallel()

	site := &siteFetcher{pages: map[string]string{}}
	store := &MockArticleStore{}
	p, _ := newTestPaginator(site, PaginatorConfig{})
	c := NewCoordinator(p, site, titleExtractor{}, store, CoordinatorConfig{}, nil)

	summary, err := c.Run(context.Background(), testRoot)
	require.NoError(t, err)
	require.Equal(t, IngestSummary{}, summary)
	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestListingScenarioYieldsCleanArticleSet(t *testing.T) {
	t.Parallel()

	const root = "https://example.org/blog/"
	site := &siteFetcher{pages: map[string]string{
		root:             listingHTML(root+"a/", root+"page/2/", root+"b/"),
		root + "page/2/": listingHTML(root + "42/"),
	}}
	p, _ := newTestPaginator(site, PaginatorConfig{})

	discovered, err := p.Collect(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{root + "a/", root + "b/"}, CleanURLs(discovered, root))
	require.NotContains(t, site.fetched(), root+"page/3/")
}
