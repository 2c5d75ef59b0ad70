package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// ShortenString cuts s to l runes and marks the cut with "...".
func ShortenString(s string, l int) string {
	r := []rune(s)
	if len(r) > l && l != 0 {
		return fmt.Sprintf("%s...", string(r[:l]))
	}
	return s
}

// RandomString appends a random hex suffix to base.
func RandomString(base string) (string, error) {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(randBytes)), nil
}

// NormalizeSpace collapses runs of whitespace into a single space and trims
// the result.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Slugify makes s safe to use as a file name or object key. Letters, digits,
// dots, dashes and underscores are kept, whitespace becomes a dash and
// everything else is dropped.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			dash = r == '-'
		case unicode.IsSpace(r):
			if !dash {
				b.WriteRune('-')
				dash = true
			}
		}
	}
	return b.String()
}

// FileName is Slugify(s) with a short hash of s appended whenever slugging
// changed it, so that different inputs never map to the same name.
func FileName(s string) string {
	slug := Slugify(s)
	if slug == s {
		return slug
	}
	sum := sha256.Sum256([]byte(s))
	return slug + "~" + hex.EncodeToString(sum[:4])
}
