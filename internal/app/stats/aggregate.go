// internal/app/stats/aggregate.go
package stats

import (
	"math"
	"strconv"
	"strings"
)

// Dimension names a grouping or filtering axis.
type Dimension string

const (
	DimRegion   Dimension = "region"
	DimYear     Dimension = "year"
	DimSemester Dimension = "semester"
	DimCategory Dimension = "category"
)

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimRegion, DimYear, DimSemester, DimCategory:
		return true
	}
	return false
}

// GroupBy returns the display-label extractor for a dimension. Rows with
// no value on the dimension yield "" and are skipped by AggregateRows.
func GroupBy(d Dimension) func(Row) string {
	switch d {
	case DimYear:
		return func(r Row) string {
			if r.Year == 0 {
				return ""
			}
			return strconv.Itoa(r.Year)
		}
	case DimSemester:
		return func(r Row) string {
			if r.Semester == 0 {
				return ""
			}
			return "Semester " + strconv.Itoa(r.Semester)
		}
	case DimCategory:
		return func(r Row) string { return r.Category }
	default:
		return func(r Row) string { return r.Region }
	}
}

// PickValue is the default metric extractor.
func PickValue(r Row) float64 { return r.Value }

// Aggregate holds per-group totals keyed by CanonicalKey, plus the first
// display label seen for each key. Keys keep first-seen order; that order
// carries no meaning and consumers sort explicitly before display.
type Aggregate struct {
	keys   []string
	labels map[string]string
	totals map[string]float64
}

func newAggregate() *Aggregate {
	return &Aggregate{
		labels: make(map[string]string),
		totals: make(map[string]float64),
	}
}

// AggregateRows sums pick(row) per groupBy(row) over the rows that pass
// filter. A nil filter passes everything. Rows with an empty group key or
// a non-finite value are skipped.
func AggregateRows(rows []Row, pick func(Row) float64, groupBy func(Row) string, filter Filter) *Aggregate {
	agg := newAggregate()
	for _, r := range rows {
		if filter != nil && !filter(r) {
			continue
		}
		label := strings.TrimSpace(groupBy(r))
		key := CanonicalKey(label)
		if key == "" {
			continue
		}
		v := pick(r)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if _, seen := agg.totals[key]; !seen {
			agg.keys = append(agg.keys, key)
			agg.labels[key] = label
		}
		agg.totals[key] += v
	}
	return agg
}

// Keys returns the group keys in first-seen order.
func (a *Aggregate) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Len returns the number of groups.
func (a *Aggregate) Len() int { return len(a.keys) }

// Label returns the display label recorded for key.
func (a *Aggregate) Label(key string) string { return a.labels[key] }

// Total returns the summed value for key and whether the key exists.
func (a *Aggregate) Total(key string) (float64, bool) {
	v, found := a.totals[key]
	return v, found
}

// Sum returns the total across all groups.
func (a *Aggregate) Sum() float64 {
	var s float64
	for _, k := range a.keys {
		s += a.totals[k]
	}
	return s
}

// Series is one named aggregate line on a chart.
type Series struct {
	Key    string
	Label  string
	Color  string
	Active bool
	Agg    *Aggregate
}

// Merged is the union of several series over a shared key set.
type Merged struct {
	Keys   []string
	Labels map[string]string
	Series []Series
}

// MergeSeries unions the group keys of every active series, in series
// order then first-seen order. Missing entries read as zero through Value,
// so every series has a value for every key.
func MergeSeries(series []Series) *Merged {
	m := &Merged{Labels: make(map[string]string), Series: series}
	for _, s := range series {
		if !s.Active || s.Agg == nil {
			continue
		}
		for _, k := range s.Agg.keys {
			if _, seen := m.Labels[k]; seen {
				continue
			}
			m.Keys = append(m.Keys, k)
			m.Labels[k] = s.Agg.labels[k]
		}
	}
	return m
}

// Value returns series i's total for key, or zero when the series is
// switched off or has no entry for key.
func (m *Merged) Value(i int, key string) float64 {
	s := m.Series[i]
	if !s.Active || s.Agg == nil {
		return 0
	}
	v, _ := s.Agg.Total(key)
	return v
}

// Total sums the active series for key.
func (m *Merged) Total(key string) float64 {
	var t float64
	for i := range m.Series {
		t += m.Value(i, key)
	}
	return t
}

// AnyActive reports whether at least one series is switched on.
func (m *Merged) AnyActive() bool {
	for _, s := range m.Series {
		if s.Active {
			return true
		}
	}
	return false
}
