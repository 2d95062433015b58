package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/app"
	"github.com/JakeFAU/blog-search/internal/crawler"
	"github.com/JakeFAU/blog-search/internal/index"
	"github.com/JakeFAU/blog-search/internal/search"
)

type fakeApp struct {
	root    string
	query   string
	k       int
	indexed bool
	served  bool
	closed  bool
	err     error
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Ingest(_ context.Context, root string) (crawler.IngestSummary, error) {
	f.root = root
	return crawler.IngestSummary{Discovered: 3, Unique: 2, Processed: 2}, f.err
}

func (f *fakeApp) Index(context.Context) (index.Summary, error) {
	f.indexed = true
	return index.Summary{Records: 2, Indexed: 2}, f.err
}

func (f *fakeApp) Search(_ context.Context, query string, k int) ([]search.Result, string, error) {
	f.query, f.k = query, k
	score := 1.5
	return []search.Result{{Title: "Salt Substitutes Reviewed", Score: score}}, "rrf", f.err
}

func (f *fakeApp) Check(context.Context) (app.Report, error) {
	return app.Report{Stored: 2, Index: "blog", IndexExists: true, Indexed: 2}, f.err
}

func (f *fakeApp) Serve(context.Context) error {
	f.served = true
	return f.err
}

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return nil
}

func runRoot(t *testing.T, fake *fakeApp, args ...string) (string, error) {
	t.Helper()
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, string) (App, error) { return fake, nil }

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIngestCommand(t *testing.T) {
	fake := &fakeApp{}
	out, err := runRoot(t, fake, "ingest", "--root", "https://example.org/blog/", "--index")
	require.NoError(t, err)
	require.Equal(t, "https://example.org/blog/", fake.root)
	require.True(t, fake.indexed)
	require.True(t, fake.closed)

	var decoded struct {
		Ingest crawler.IngestSummary `json:"ingest"`
		Index  index.Summary         `json:"index"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, 2, decoded.Ingest.Processed)
	require.Equal(t, 2, decoded.Index.Indexed)
}

func TestIngestCommandError(t *testing.T) {
	fake := &fakeApp{err: errors.New("store down")}
	_, err := runRoot(t, fake, "ingest")
	require.ErrorContains(t, err, "store down")
	require.False(t, fake.indexed)
}

func TestSearchCommand(t *testing.T) {
	fake := &fakeApp{}
	out, err := runRoot(t, fake, "search", "healthier", "salt", "substitutes", "-k", "3")
	require.NoError(t, err)
	require.Equal(t, "healthier salt substitutes", fake.query)
	require.Equal(t, 3, fake.k)
	require.Contains(t, out, `"fusion": "rrf"`)
	require.Contains(t, out, "Salt Substitutes Reviewed")
}

func TestSearchCommandRequiresQuery(t *testing.T) {
	_, err := runRoot(t, &fakeApp{}, "search")
	require.Error(t, err)
}

func TestIndexCheckAndServeCommands(t *testing.T) {
	fake := &fakeApp{}
	out, err := runRoot(t, fake, "index")
	require.NoError(t, err)
	require.True(t, fake.indexed)
	require.Contains(t, out, `"indexed": 2`)

	out, err = runRoot(t, fake, "check")
	require.NoError(t, err)
	require.Contains(t, out, `"index_exists": true`)

	_, err = runRoot(t, fake, "serve")
	require.NoError(t, err)
	require.True(t, fake.served)
}

func TestAppInitFailure(t *testing.T) {
	orig := newApp
	t.Cleanup(func() { newApp = orig })
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("boom") }

	root := newRootCmd()
	root.SetArgs([]string{"check"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "failed to initialize application services")
}

func TestResolveAppMissing(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
