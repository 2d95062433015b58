package extract

import "strings"

// TokenKind identifies what an article class token encodes.
type TokenKind int

const (
	// Unrecognized tokens are neither categories nor tags.
	Unrecognized TokenKind = iota
	// Category tokens look like "category-<name>".
	Category
	// Tag tokens look like "tag-<part>-<part>...".
	Tag
)

// String implements fmt.Stringer.
func (k TokenKind) String() string {
	switch k {
	case Category:
		return "category"
	case Tag:
		return "tag"
	default:
		return "unrecognized"
	}
}

// Token is one classified class token.
type Token struct {
	Kind TokenKind
	// Name is the category name. Set only for Category.
	Name string
	// Parts are the hyphen-separated tag segments. Set only for Tag.
	Parts []string
	// Raw is the original class token.
	Raw string
}

// ClassifyToken maps a class token onto Category, Tag or Unrecognized. A category keeps only
// the segment right after the "category" prefix, so "category-heart-health" yields "heart".
func ClassifyToken(token string) Token {
	parts := strings.Split(token, "-")
	switch {
	case strings.HasPrefix(token, "category-"):
		return Token{Kind: Category, Name: parts[1], Raw: token}
	case strings.HasPrefix(token, "tag-"):
		return Token{Kind: Tag, Parts: parts[1:], Raw: token}
	default:
		return Token{Kind: Unrecognized, Raw: token}
	}
}

// Taxonomy is the classification of every class token on an article element.
type Taxonomy struct {
	Categories []string
	Tags       [][]string
	// RawTags holds every token, classified or not.
	RawTags []string
}

// ClassifyTokens classifies tokens in order. Categories are deduplicated, keeping first
// occurrence; blank category names are dropped.
func ClassifyTokens(tokens []string) Taxonomy {
	tax := Taxonomy{
		Categories: []string{},
		Tags:       [][]string{},
		RawTags:    []string{},
	}
	seen := make(map[string]struct{})
	for _, raw := range tokens {
		tax.RawTags = append(tax.RawTags, raw)
		tok := ClassifyToken(raw)
		switch tok.Kind {
		case Category:
			if tok.Name == "" {
				continue
			}
			if _, dup := seen[tok.Name]; dup {
				continue
			}
			seen[tok.Name] = struct{}{}
			tax.Categories = append(tax.Categories, tok.Name)
		case Tag:
			tax.Tags = append(tax.Tags, tok.Parts)
		}
	}
	return tax
}
