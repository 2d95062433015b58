// Package extract turns article HTML into crawler.ArticleRecord values.
package extract

import "strings"

// replacer maps typographic characters onto their ASCII forms. No replacement contains a
// source character, so Normalize is idempotent.
var replacer = strings.NewReplacer(
	"“", "'",
	"”", "'",
	"‘", "'",
	"’", "'",
	"…", "...",
	"—", "-",
	"\u00a0", " ",
)

// Normalize applies the fixed character substitution table and nothing else.
func Normalize(text string) string {
	return replacer.Replace(text)
}

// ExcludedPrefixes lists the paragraph openers that mark boilerplate (bylines, credits,
// newsletter prompts) rather than article content.
var ExcludedPrefixes = []string{
	"Written By",
	"Image Credit",
	"In health",
	"Michael Greger",
	"-Michael Greger",
	"PS:",
	"A founding member",
	"Subscribe",
	"Catch up",
	"Charity ID",
	"We  our volunteers!",
	"Interested in learning more about",
	"Check out",
	"For more on",
}

// HasExcludedPrefix reports whether text starts with any entry of ExcludedPrefixes.
func HasExcludedPrefix(text string) bool {
	for _, prefix := range ExcludedPrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}
