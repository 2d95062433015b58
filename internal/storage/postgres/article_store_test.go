package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Unix(1700000000, 0).UTC()

func newMockStore(t *testing.T) (*ArticleStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewArticleStoreWithPool(mock, "blog_posts", fixedIDs{id: "0190a5b2-0000-7000-8000-000000000001"}, fixedClock{t: testNow})
	require.NoError(t, err)
	return store, mock
}

func articleColumns() []string {
	return []string{"id", "url", "title", "created", "updated", "category", "blog_tags", "raw_tags", "paragraphs", "key_takeaways", "inserted_at"}
}

func TestInsertArticle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rec := crawler.ArticleRecord{
		URL:          "https://blog.example.com/salt/",
		Title:        "Salt Substitutes Reviewed",
		Created:      "2024-03-01",
		Updated:      crawler.UnknownDate,
		Category:     []string{"heart"},
		BlogTags:     [][]string{{"potassium", "chloride"}},
		RawTags:      []string{"category-heart", "tag-potassium-chloride"},
		Paragraphs:   []string{"Salt substitutes swap sodium for potassium."},
		KeyTakeaways: nil,
	}

	mock.ExpectExec("INSERT INTO blog_posts").
		WithArgs(
			"0190a5b2-0000-7000-8000-000000000001",
			rec.URL,
			rec.Title,
			rec.Created,
			rec.Updated,
			rec.Category,
			[]byte(`[["potassium","chloride"]]`),
			rec.RawTags,
			rec.Paragraphs,
			[]string{},
			testNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.Insert(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "0190a5b2-0000-7000-8000-000000000001", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticleFailureIsStoreUnavailable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO blog_posts").WillReturnError(errors.New("connection reset"))

	_, err := store.Insert(context.Background(), crawler.ArticleRecord{URL: "u", Title: "t"})
	require.ErrorIs(t, err, crawler.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountArticles(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT count").WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSampleOne(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, url").
		WillReturnRows(mock.NewRows(articleColumns()).AddRow(
			"id-1", "https://blog.example.com/salt/", "Salt", "2024-03-01", "Unknown",
			[]string{"heart"}, []byte(`[["salt"]]`), []string{"tag-salt"}, []string{"p"}, []string{}, testNow,
		))

	rec, ok, err := store.SampleOne(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Salt", rec.Title)
	require.Equal(t, [][]string{{"salt"}}, rec.BlogTags)
	require.Equal(t, testNow, rec.InsertedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSampleOneEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, url").WillReturnRows(mock.NewRows(articleColumns()))

	_, ok, err := store.SampleOne(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListArticles(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, url").
		WillReturnRows(mock.NewRows(articleColumns()).
			AddRow("id-1", "u1", "One", "Unknown", "Unknown", []string{}, []byte(`[]`), []string{}, []string{"a"}, []string{}, testNow).
			AddRow("id-2", "u2", "Two", "Unknown", "Unknown", []string{}, []byte(`[]`), []string{}, []string{"b"}, []string{"k"}, testNow.Add(time.Second)))

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "u2", records[1].URL)
	require.Equal(t, []string{"k"}, records[1].KeyTakeaways)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS blog_posts").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewArticleStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewArticleStoreWithPool(mock, "posts; DROP TABLE x", fixedIDs{}, fixedClock{})
	require.Error(t, err)

	store, err := NewArticleStoreWithPool(mock, "", fixedIDs{}, fixedClock{})
	require.NoError(t, err)
	require.Equal(t, defaultTable, store.table)
}
