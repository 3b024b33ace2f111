// Package email holds address normalization, masking, and derivation helpers.
//
// Mask exists to satisfy a privacy invariant, not a UI nicety: a caller who has
// only proven knowledge of a distributor id must never see the full address on
// file, on any response or error path.
package email

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes an address for identity comparison: trimmed and
// lowercased. All (eventID, email) uniqueness checks go through this.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether the address has the minimal user@domain.tld shape.
// Full RFC validation is deliberately out of scope; delivery is the real test.
func Valid(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// Mask redacts an address for display to an unverified caller. The first and
// last rune of the local part and of the leftmost domain label stay visible,
// interior runes become '*', and the remaining domain labels are kept.
//
//	maria.lopez@example.com -> m*********z@e*****e.com
//
// Short segments degrade safely: a one or two rune segment is fully starred so
// nothing useful survives.
func Mask(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return maskSegment(email)
	}
	local := email[:at]
	domain := email[at+1:]

	firstLabel := domain
	rest := ""
	if dot := strings.IndexByte(domain, '.'); dot >= 0 {
		firstLabel = domain[:dot]
		rest = domain[dot:]
	}

	return maskSegment(local) + "@" + maskSegment(firstLabel) + rest
}

func maskSegment(s string) string {
	runes := []rune(s)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	masked := make([]rune, len(runes))
	masked[0] = runes[0]
	masked[len(runes)-1] = runes[len(runes)-1]
	for i := 1; i < len(runes)-1; i++ {
		masked[i] = '*'
	}
	return string(masked)
}

// DeriveNameFromEmail guesses a first/last name pair from the local part, for
// open-mode profiles where the registrant has not typed a name yet.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Guest", "Guest"
	}

	first := capitalize(parts[0])
	last := "Guest"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
