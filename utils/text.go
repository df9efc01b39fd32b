package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText folds case and strips combining marks so "Hôtel Čapek" matches "hotel capek".
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(strings.TrimSpace(stripped))
}

// ContainsNormalized reports whether needle occurs in haystack after NormalizeText.
// An empty needle matches everything.
func ContainsNormalized(haystack, needle string) bool {
	n := NormalizeText(needle)
	if n == "" {
		return true
	}
	return strings.Contains(NormalizeText(haystack), n)
}
