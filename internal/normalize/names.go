package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpace = regexp.MustCompile(`\s+`)

// Name collapses whitespace and trims the input, keeping its case and
// accents. Returns "" for blank input.
func Name(s string) string {
	return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Fold returns a comparison key: whitespace collapsed, lower case, accents
// removed. "  JOSÉ  da Silva" and "jose da silva" fold to the same key.
func Fold(s string) string {
	s = strings.ToLower(Name(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
