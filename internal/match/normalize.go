package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes text and removes combining marks, so "café" and
// "cafe" normalize identically.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// punctuation holds the characters replaced by spaces during normalization.
const punctuation = `,.;:!?"'()[]{}`

// Normalize canonicalizes text for phrase comparison: lowercase, accents
// stripped, punctuation replaced by spaces, and runs of whitespace collapsed
// to single spaces. Normalize is idempotent.
func Normalize(text string) string {
	text = strings.ToLower(text)
	if stripped, _, err := transform.String(stripMarks, text); err == nil {
		text = stripped
	}
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
