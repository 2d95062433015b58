package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

const articleHTML = `<!doctype html>
<html>
<head><title>Salt Substitutes Reviewed | Blog</title></head>
<body>
<article class="post-1 post type-post category-heart-health category-heart-rhythm tag-potassium-chloride tag-salt">
  <h1 class="entry-title">Salt Substitutes Reviewed</h1>
  <time class="entry-date published" datetime="2024-03-01T08:00:00+00:00">March 1</time>
  <time class="updated" datetime="2024-03-05T09:30:00+00:00">March 5</time>
  <p class="p1">  Salt substitutes swap sodium for potassium…  </p>
  <p class="p1">Written By Someone</p>
  <p class="p1"> </p>
  <p class="p1">The “taste” is close — most people can’t tell.</p>
  <p>KEY TAKEAWAYS</p>
  <div><ul>
    <li> Potassium lowers blood pressure… </li>
    <li>Check with your doctor</li>
  </ul></div>
  <ul><li>unrelated</li></ul>
</article>
</body>
</html>`

func TestExtractFullArticle(t *testing.T) {
	t.Parallel()

	record, err := New(nil).Extract([]byte(articleHTML), "https://blog.example.com/salt/")
	require.NoError(t, err)

	require.Equal(t, "https://blog.example.com/salt/", record.URL)
	require.Equal(t, "Salt Substitutes Reviewed", record.Title)
	require.Equal(t, "2024-03-01T08:00:00+00:00", record.Created)
	require.Equal(t, "2024-03-05T09:30:00+00:00", record.Updated)
	require.Equal(t, []string{"heart"}, record.Category)
	require.Equal(t, [][]string{{"potassium", "chloride"}, {"salt"}}, record.BlogTags)
	require.Len(t, record.RawTags, 7)
	require.Equal(t, []string{
		"Salt substitutes swap sodium for potassium...",
		"The 'taste' is close - most people can't tell.",
	}, record.Paragraphs)
	require.Equal(t, []string{"Potassium lowers blood pressure...", "Check with your doctor"}, record.KeyTakeaways)
}

func TestExtractTitleFallsBackToDocumentTitle(t *testing.T) {
	t.Parallel()

	body := `<html><head><title>Plain Title</title></head><body><h1>Heading</h1><p>text</p></body></html>`
	record, err := New(nil).Extract([]byte(body), "u")
	require.NoError(t, err)
	require.Equal(t, "Plain Title", record.Title)
}

func TestExtractTitleFallsBackToHeadingThenSentinel(t *testing.T) {
	t.Parallel()

	record, err := New(nil).Extract([]byte(`<html><body><h1> Heading </h1></body></html>`), "u")
	require.NoError(t, err)
	require.Equal(t, "Heading", record.Title)

	record, err = New(nil).Extract([]byte(`<html><body><div>nothing</div></body></html>`), "u")
	require.NoError(t, err)
	require.Equal(t, crawler.UnknownTitle, record.Title)
}

func TestExtractDatesArePositional(t *testing.T) {
	t.Parallel()

	one := `<html><body><time datetime="2023-01-01">x</time></body></html>`
	record, err := New(nil).Extract([]byte(one), "u")
	require.NoError(t, err)
	require.Equal(t, "2023-01-01", record.Created)
	require.Equal(t, crawler.UnknownDate, record.Updated)

	noAttr := `<html><body><time>x</time><time datetime="2023-02-02">y</time></body></html>`
	record, err = New(nil).Extract([]byte(noAttr), "u")
	require.NoError(t, err)
	require.Equal(t, crawler.UnknownDate, record.Created)
	require.Equal(t, "2023-02-02", record.Updated)

	none := `<html><body><p>x</p></body></html>`
	record, err = New(nil).Extract([]byte(none), "u")
	require.NoError(t, err)
	require.Equal(t, crawler.UnknownDate, record.Created)
	require.Equal(t, crawler.UnknownDate, record.Updated)
}

func TestExtractWithoutArticleElement(t *testing.T) {
	t.Parallel()

	record, err := New(nil).Extract([]byte(`<html><body><p>Only text</p></body></html>`), "u")
	require.NoError(t, err)
	require.Empty(t, record.Category)
	require.Empty(t, record.BlogTags)
	require.Empty(t, record.RawTags)
	require.NotNil(t, record.Category)
	require.Equal(t, []string{"Only text"}, record.Paragraphs)
}

func TestExtractWithoutKeyTakeaways(t *testing.T) {
	t.Parallel()

	record, err := New(nil).Extract([]byte(`<html><body><p>Body</p><ul><li>x</li></ul></body></html>`), "u")
	require.NoError(t, err)
	require.NotNil(t, record.KeyTakeaways)
	require.Empty(t, record.KeyTakeaways)
}

func TestExtractKeyTakeawaysMarkerWithoutList(t *testing.T) {
	t.Parallel()

	record, err := New(nil).Extract([]byte(`<html><body><ul><li>before</li></ul><p>KEY TAKEAWAYS</p></body></html>`), "u")
	require.NoError(t, err)
	require.Empty(t, record.KeyTakeaways)
}

func TestExtractFallsBackToAllParagraphs(t *testing.T) {
	t.Parallel()

	body := `<html><body><p>First</p><p>Subscribe to our list</p><p>Second</p></body></html>`
	record, err := New(nil).Extract([]byte(body), "u")
	require.NoError(t, err)
	require.Equal(t, []string{"First", "Second"}, record.Paragraphs)
}

func TestExtractEmptyBody(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Extract([]byte("  \n"), "u")
	require.ErrorIs(t, err, ErrEmptyPage)
}
