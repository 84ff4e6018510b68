// Package normalize holds the canonical digit-form rules shared by every
// engine: identifiers, phones, client names, and header matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Digits strips every non-digit rune. Idempotent; empty in, empty out.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Identifier returns the digit form of a company identifier and whether it
// is usable for history and cleaning (at least 8 digits).
func Identifier(raw string) (string, bool) {
	d := Digits(raw)
	return d, len(d) >= 8
}

// RootIdentifier returns the digit form and whether it is a valid root-set
// entry. Root entries must be complete documents: exactly 11 or 14 digits.
func RootIdentifier(raw string) (string, bool) {
	d := Digits(raw)
	return d, len(d) == 11 || len(d) == 14
}

// Phone returns the digit form of a phone cell and whether it is worth
// keeping (at least 8 digits).
func Phone(raw string) (string, bool) {
	d := Digits(raw)
	return d, len(d) >= 8
}

// Pad14 left-pads the digit form with zeros to 14 characters, the wire
// shape the eligibility API expects. Inputs longer than 14 digits are
// returned as-is.
func Pad14(raw string) string {
	d := Digits(raw)
	if len(d) >= 14 {
		return d
	}
	return strings.Repeat("0", 14-len(d)) + d
}

// CleanName trims leading and trailing digits, dots, dashes and spaces
// from a client name. Interior characters are untouched.
func CleanName(s string) string {
	trim := func(r rune) bool {
		return unicode.IsDigit(r) || r == '.' || r == '-' || r == ' '
	}
	return strings.TrimFunc(s, trim)
}

var headerFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldHeader lowercases, trims and strips accents from a header cell so
// that "Razão Social" and "razao social" match the same column.
func FoldHeader(s string) string {
	folded, _, err := transform.String(headerFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
