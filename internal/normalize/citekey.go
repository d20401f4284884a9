package normalize

import (
	"strings"
	"unicode"

	"github.com/refsweep/refsweep/internal/record"
)

// stopWords are short function words skipped when picking the citekey's
// title word.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true,
	"in": true, "of": true, "for": true, "to": true,
}

// CiteKey derives the human-readable entry key {Author}{Year}{TitleWord}
// used by the bracket-field output formats. It never fails: missing parts
// degrade to Unknown, unknown, and Untitled respectively.
func CiteKey(r *record.Record) string {
	return capitalize(familyKey(r)) + yearString(r) + titleWord(r.Title)
}

// titleWord is the first title word, lowercased and stripped of
// non-letters, that is not a stop word; capitalized. "Untitled" when the
// title is empty or entirely stopped.
func titleWord(title string) string {
	for _, word := range strings.Fields(title) {
		w := nonLetter.ReplaceAllString(strings.ToLower(word), "")
		if w == "" || stopWords[w] {
			continue
		}
		return capitalize(w)
	}
	return "Untitled"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
