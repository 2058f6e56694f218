package render

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9_]+`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// Slug turns a label into an @id fragment: accents are folded to ASCII,
// runs of anything outside [a-z0-9_] become "_", and leading digits and
// underscores are trimmed ("Blog Post #2" -> "blog_post_2").
func Slug(label string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, label)
	if err != nil {
		s = label
	}
	s = strings.ToLower(s)
	s = nonSlugRe.ReplaceAllString(s, "_")
	s = underscoreRe.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, "0123456789_")
	return strings.TrimRight(s, "_")
}

// NodeID builds "<page-url>#<slug>". An existing fragment on the URL is
// replaced.
func NodeID(pageURL, label string) string {
	base, _, _ := strings.Cut(pageURL, "#")
	return base + "#" + Slug(label)
}
