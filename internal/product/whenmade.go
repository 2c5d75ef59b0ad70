package product

import (
	"fmt"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// WhenMadeOrder is the order in which the "When was it made?" dropdown
// lists its options. The keyboard selection path counts ArrowDown presses
// from the top of this list, so it has to match the UI exactly.
var WhenMadeOrder = []string{
	"Made To Order",
	"2020 - 2025",
	"2010 - 2019",
	"2006 - 2009",
	"Before 2006",
	"2000 - 2005",
	"1990s",
	"1980s",
	"1970s",
	"1960s",
	"1950s",
	"1940s",
	"1930s",
	"1920s",
	"1910s",
	"1900s",
}

var whenMadeBuckets = map[string]string{
	"made_to_order": "Made To Order",
	"2020_2025":     "2020 - 2025",
	"2010_2019":     "2010 - 2019",
	"2006_2009":     "2006 - 2009",
	"before_2006":   "Before 2006",
	"2000_2005":     "2000 - 2005",
	"1990s":         "1990s",
	"1980s":         "1980s",
	"1970s":         "1970s",
	"1960s":         "1960s",
	"1950s":         "1950s",
	"1940s":         "1940s",
	"1930s":         "1930s",
	"1920s":         "1920s",
	"1910s":         "1910s",
	"1900s":         "1900s",
}

func normalizeBucket(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " - ", "_")
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// WhenMadeLabel maps a bucket name like "2020_2025" to its UI label. UI labels
// are accepted as-is (case-insensitive). Unknown values are returned unchanged
// so the visual match can still try them.
func WhenMadeLabel(bucket string) string {
	if l, ok := whenMadeBuckets[normalizeBucket(bucket)]; ok {
		return l
	}
	for _, l := range WhenMadeOrder {
		if strings.EqualFold(l, strings.TrimSpace(bucket)) {
			return l
		}
	}
	return bucket
}

// WhenMadeIndex returns the position of bucket's label in WhenMadeOrder.
// Unknown values resolve to 0, the first entry.
func WhenMadeIndex(bucket string) int {
	if i := slices.Index(WhenMadeOrder, WhenMadeLabel(bucket)); i >= 0 {
		return i
	}
	return 0
}

// KnownWhenMade reports whether bucket maps to one of the dropdown entries.
func KnownWhenMade(bucket string) bool {
	return slices.Contains(WhenMadeOrder, WhenMadeLabel(bucket))
}

// SuggestWhenMade returns the closest known bucket name for an unknown value.
func SuggestWhenMade(bucket string) (string, bool) {
	if KnownWhenMade(bucket) {
		return "", false
	}
	names := make([]string, 0, len(whenMadeBuckets))
	for k := range whenMadeBuckets {
		names = append(names, k)
	}
	slices.Sort(names)
	s := closest(normalizeBucket(bucket), names)
	return s, s != ""
}

// closest returns the candidate with the smallest edit distance to s, as long
// as that distance is at most half of s's length.
func closest(s string, candidates []string) string {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(1, len(s)/2) {
		return ""
	}
	return best
}

func didYouMean(s string, candidates []string) string {
	if c := closest(s, candidates); c != "" {
		return fmt.Sprintf(", did you mean %q?", c)
	}
	return ""
}
