package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey turns a deck display name into its catalog key: case-folded,
// punctuation other than '-' and '_' dropped, whitespace runs joined by '_'.
func NormalizeKey(name string) string {
	s := cases.Fold().String(norm.NFKC.String(name))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), "_")
}
