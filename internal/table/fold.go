package table

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldMatcher matches with Unicode case folding on NFC-normalized text and
// treats Bengali digits as their ASCII equivalents, so "১২" finds "12".
// It is opt-in; LowerMatcher stays the default.
func FoldMatcher(value, query string) bool {
	return strings.Contains(foldKey(value), foldKey(query))
}

func foldKey(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Map(asciiDigit, s)
}

// asciiDigit maps Bengali digits (U+09E6..U+09EF) to 0-9.
func asciiDigit(r rune) rune {
	if r >= '০' && r <= '৯' {
		return '0' + (r - '০')
	}
	return r
}
