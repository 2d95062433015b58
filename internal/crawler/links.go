package crawler

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PaginationMarker is the path segment that identifies listing pages.
const PaginationMarker = "page"

// FilterLinks keeps links that start with root and whose remainder is a non-empty,
// non-pagination path. The input is sorted first so the output order is stable
// regardless of how the anchors appeared in the HTML.
func FilterLinks(links []string, root string) []string {
	sorted := append([]string(nil), links...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for _, link := range sorted {
		if !strings.HasPrefix(link, root) {
			continue
		}
		suffix := link[len(root):]
		if suffix == "" || strings.HasPrefix(suffix, PaginationMarker) {
			continue
		}
		out = append(out, link)
	}
	return out
}

// PageURL returns the listing URL for a 1-based page number.
func PageURL(root string, page int) string {
	if page <= 1 {
		return root
	}
	return root + PaginationMarker + "/" + strconv.Itoa(page) + "/"
}

// ExtractLinks returns the distinct href values of every anchor in body, sorted.
func ExtractLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			seen[href] = struct{}{}
		}
	})
	links := make([]string, 0, len(seen))
	for href := range seen {
		links = append(links, href)
	}
	sort.Strings(links)
	return links, nil
}

// IsNumericSuffix reports whether url, after removing root and every '/', is made only
// of digits. Such URLs are archive or pagination artifacts rather than articles.
func IsNumericSuffix(url, root string) bool {
	rest := strings.ReplaceAll(strings.ReplaceAll(url, root, ""), "/", "")
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
