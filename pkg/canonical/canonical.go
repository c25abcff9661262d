// Package canonical normalizes free-text names into stable comparison keys.
package canonical

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name returns the canonical key for an organization name: diacritics stripped
// (NFKD + combining-mark removal), whitespace trimmed and collapsed, lowercased.
// Two names with the same key refer to the same organization.
func Name(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	// transform chains carry state, so build one per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return Token(stripped)
}

// Token trims, collapses internal whitespace and lowercases s. Unlike Name it
// keeps diacritics; it is meant for short filter values such as year or block.
func Token(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Equal reports whether a and b canonicalize to the same non-empty key.
func Equal(a, b string) bool {
	ka := Name(a)
	return ka != "" && ka == Name(b)
}
