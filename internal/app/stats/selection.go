// internal/app/stats/selection.go
package stats

import (
	"net/url"
	"strconv"
	"strings"
)

// All is the query-string sentinel for "no filtering on this dimension".
const All = "all"

// Selection is the filter state of one chart view. It is a plain value:
// build it from a request, pass it to the pipeline, serialize it back into
// links. The zero Selection selects everything.
//
// Empty Regions and empty Series mean "include everything", not "include
// nothing"; Year, Semester and Category use their zero value for "all".
type Selection struct {
	Regions  []string `json:"regions,omitempty"`
	Year     int      `json:"year,omitempty"`
	Semester int      `json:"semester,omitempty"`
	Category string   `json:"category,omitempty"`
	Series   []string `json:"series,omitempty"`
}

// Filter is a compiled row predicate.
type Filter func(Row) bool

// Filter compiles the selection into a predicate. Each dimension passes
// trivially when its constraint is unset; set constraints are compared on
// CanonicalKey values.
func (s Selection) Filter() Filter {
	regions := canonicalSet(s.Regions)
	category := CanonicalKey(s.Category)
	year := s.Year
	semester := s.Semester

	return func(r Row) bool {
		if len(regions) > 0 {
			if _, in := regions[CanonicalKey(r.Region)]; !in {
				return false
			}
		}
		if year != 0 && r.Year != year {
			return false
		}
		if semester != 0 && r.Semester != semester {
			return false
		}
		if category != "" && CanonicalKey(r.Category) != category {
			return false
		}
		return true
	}
}

// Passes reports whether a single row satisfies the selection.
// Prefer Filter when testing many rows.
func (s Selection) Passes(r Row) bool {
	return s.Filter()(r)
}

// SeriesActive reports whether the series with the given key is switched on.
func (s Selection) SeriesActive(key string) bool {
	if len(s.Series) == 0 {
		return true
	}
	for _, k := range s.Series {
		if k == key {
			return true
		}
	}
	return false
}

// Restrict clears every constraint on a dimension not listed in dims, so a
// chart ignores filters it does not offer.
func (s Selection) Restrict(dims []Dimension) Selection {
	allowed := make(map[Dimension]bool, len(dims))
	for _, d := range dims {
		allowed[d] = true
	}
	out := s
	if !allowed[DimRegion] {
		out.Regions = nil
	}
	if !allowed[DimYear] {
		out.Year = 0
	}
	if !allowed[DimSemester] {
		out.Semester = 0
	}
	if !allowed[DimCategory] {
		out.Category = ""
	}
	return out
}

// SelectionFromQuery reads a Selection from query values:
//
//	region=Ternate&region=Tidore  year=2023|all  semester=1|2|I|II|all
//	category=Tuna|all             series=tangkap,budidaya
//
// Malformed values fall back to "all".
func SelectionFromQuery(q url.Values) Selection {
	var s Selection

	for _, v := range splitMulti(q["region"]) {
		if strings.EqualFold(v, All) {
			s.Regions = nil
			break
		}
		s.Regions = append(s.Regions, v)
	}

	if y := strings.TrimSpace(q.Get("year")); y != "" && !strings.EqualFold(y, All) {
		if n, err := strconv.Atoi(y); err == nil && n > 0 {
			s.Year = n
		}
	}

	if sem := strings.TrimSpace(q.Get("semester")); sem != "" && !strings.EqualFold(sem, All) {
		if out := ParseSemester(sem); !out.Dropped {
			s.Semester = out.Value
		}
	}

	if c := strings.TrimSpace(q.Get("category")); c != "" && !strings.EqualFold(c, All) {
		s.Category = c
	}

	s.Series = splitMulti(q["series"])
	return s
}

// Query encodes the selection back into query values. Unset dimensions
// are omitted.
func (s Selection) Query() url.Values {
	q := url.Values{}
	for _, r := range s.Regions {
		q.Add("region", r)
	}
	if s.Year != 0 {
		q.Set("year", strconv.Itoa(s.Year))
	}
	if s.Semester != 0 {
		q.Set("semester", strconv.Itoa(s.Semester))
	}
	if s.Category != "" {
		q.Set("category", s.Category)
	}
	if len(s.Series) > 0 {
		q.Set("series", strings.Join(s.Series, ","))
	}
	return q
}

// splitMulti flattens repeated and comma-separated values, trimming and
// dropping empties.
func splitMulti(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func canonicalSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if k := CanonicalKey(v); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
