package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text into the form keywords are matched against:
// NFKC (full-width to half-width), lowercase, invisible and control
// characters removed, whitespace runs collapsed to one space.
// Punctuation is kept so terms like "c++" or "5g" survive.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// Transformers keep state, so the chain is built per call.
	t := transform.Chain(
		norm.NFKC,
		runes.Map(foldRune),
		runes.Remove(runes.Predicate(isInvisible)),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}

	return strings.Join(strings.Fields(out), " ")
}

func foldRune(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return unicode.ToLower(r)
}

// isInvisible matches format characters (zero-width space, joiners, BOM)
// and control characters that are not whitespace.
func isInvisible(r rune) bool {
	if r == ' ' {
		return false
	}
	return unicode.Is(unicode.Cf, r) || unicode.IsControl(r)
}
