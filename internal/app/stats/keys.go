// internal/app/stats/keys.go
package stats

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CanonicalKey folds a categorical value (region, category, …) into the
// lookup key used for grouping, filter options and filter comparisons.
//
// The value is trimmed, NFKC-normalized, lower-cased and its inner runs of
// whitespace collapsed to a single space. Every aggregator, options list
// and selection goes through this one function so near-identical source
// spellings ("KOTA  Ternate", "Kota Ternate") land in the same group.
func CanonicalKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = cases.Lower(language.Indonesian).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// regionPrefixes are shortened on chart axes; tooltips keep the full name.
var regionPrefixes = []struct{ long, short string }{
	{"Kabupaten ", "Kab. "},
	{"KABUPATEN ", "Kab. "},
}

// ShortLabel returns the abbreviated axis label for a display label.
// It returns the input unchanged when no abbreviation applies.
func ShortLabel(label string) string {
	for _, p := range regionPrefixes {
		if strings.HasPrefix(label, p.long) {
			return p.short + strings.TrimPrefix(label, p.long)
		}
	}
	return label
}
