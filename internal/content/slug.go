package content

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Slugify lowercases s, strips diacritics and collapses every run of
// characters that are not letters or digits into a single dash.
func Slugify(s string) string {
	decomposed := lower.String(norm.NFKD.String(s))

	var b strings.Builder
	dash := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}

	// Recompose scripts such as Hangul that NFKD split into jamo
	return norm.NFC.String(strings.TrimSuffix(b.String(), "-"))
}
