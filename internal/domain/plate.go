package domain

import (
	"strings"
	"unicode"
)

// NormalizePlate canonicalises a licence plate for matching: all whitespace is
// removed and letters are upper-cased, so "123 abc" and "123ABC" compare equal.
func NormalizePlate(plate string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, plate)
}
