package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JakeFAU/blog-search/internal/crawler"
)

// ErrEmptyPage is returned when the body is empty or cannot be parsed as HTML.
var ErrEmptyPage = errors.New("empty or unparsable page")

// KeyTakeawaysMarker is the paragraph text that introduces the key takeaways list.
const KeyTakeawaysMarker = "KEY TAKEAWAYS"

// TitleStrategy is one selector tried when looking for an article title.
type TitleStrategy struct {
	Name     string
	Selector string
}

// TitleStrategies is the ordered title lookup policy. The first selector whose first match
// has non-blank text wins; when none do the title is crawler.UnknownTitle.
var TitleStrategies = []TitleStrategy{
	{Name: "entry-title heading", Selector: "h1.entry-title"},
	{Name: "document title", Selector: "title"},
	{Name: "first heading", Selector: "h1"},
}

// Extractor implements crawler.Extractor over goquery.
type Extractor struct {
	logger *zap.Logger
}

var _ crawler.Extractor = (*Extractor)(nil)

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract parses body and returns the record for url. Missing fields fall back to their
// sentinels; only an empty or unparsable body is an error.
func (e *Extractor) Extract(body []byte, url string) (crawler.ArticleRecord, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return crawler.ArticleRecord{}, ErrEmptyPage
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.ArticleRecord{}, fmt.Errorf("%w: %w", ErrEmptyPage, err)
	}

	created, updated := Dates(doc)
	record := crawler.ArticleRecord{
		URL:          url,
		Title:        Title(doc),
		Created:      created,
		Updated:      updated,
		Paragraphs:   Paragraphs(doc),
		KeyTakeaways: KeyTakeaways(doc),
	}

	article := doc.Find("article").First()
	if article.Length() == 0 {
		e.logger.Warn("no article element, taxonomy left empty", zap.String("url", url))
		record.Category = []string{}
		record.BlogTags = [][]string{}
		record.RawTags = []string{}
	} else {
		class, _ := article.Attr("class")
		tax := ClassifyTokens(strings.Fields(class))
		record.Category = tax.Categories
		record.BlogTags = tax.Tags
		record.RawTags = tax.RawTags
	}

	e.logger.Debug("article extracted",
		zap.String("url", url),
		zap.String("title", record.Title),
		zap.Int("paragraphs", len(record.Paragraphs)),
		zap.Int("key_takeaways", len(record.KeyTakeaways)),
	)
	return record, nil
}

// Title applies TitleStrategies in order.
func Title(doc *goquery.Document) string {
	for _, strategy := range TitleStrategies {
		if text := strings.TrimSpace(doc.Find(strategy.Selector).First().Text()); text != "" {
			return text
		}
	}
	return crawler.UnknownTitle
}

// Dates reads the datetime attribute of the first two time elements, positionally.
func Dates(doc *goquery.Document) (created, updated string) {
	created, updated = crawler.UnknownDate, crawler.UnknownDate
	times := doc.Find("time")
	if times.Length() > 0 {
		created = datetimeAttr(times.Eq(0))
	}
	if times.Length() > 1 {
		updated = datetimeAttr(times.Eq(1))
	}
	return created, updated
}

func datetimeAttr(s *goquery.Selection) string {
	if v, ok := s.Attr("datetime"); ok && v != "" {
		return v
	}
	return crawler.UnknownDate
}

// Paragraphs returns cleaned paragraph text, preferring p.p1 when the page has any.
func Paragraphs(doc *goquery.Document) []string {
	nodes := doc.Find("p.p1")
	if nodes.Length() == 0 {
		nodes = doc.Find("p")
	}
	out := make([]string, 0, nodes.Length())
	nodes.Each(func(_ int, s *goquery.Selection) {
		text := Normalize(strings.TrimSpace(s.Text()))
		if text == "" || HasExcludedPrefix(text) {
			return
		}
		out = append(out, text)
	})
	return out
}

// KeyTakeaways returns the items of the first ul following the KEY TAKEAWAYS paragraph.
func KeyTakeaways(doc *goquery.Document) []string {
	out := []string{}
	marker := doc.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Text() == KeyTakeawaysMarker
	}).First()
	if marker.Length() == 0 {
		return out
	}
	list := nextElement(marker.Get(0), atom.Ul)
	if list == nil {
		return out
	}
	goquery.NewDocumentFromNode(list).Find("li").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(Normalize(s.Text())))
	})
	return out
}

// nextElement returns the first element of type a after start in document order,
// including start's own descendants.
func nextElement(start *html.Node, a atom.Atom) *html.Node {
	for n := following(start); n != nil; n = following(n) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			return n
		}
	}
	return nil
}

func following(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for ; n != nil; n = n.Parent {
		if n.NextSibling != nil {
			return n.NextSibling
		}
	}
	return nil
}
