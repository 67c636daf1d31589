// internal/app/stats/present.go
package stats

import (
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortBy selects the ordering of chart labels.
type SortBy string

const (
	SortByValue SortBy = "value"
	SortByLabel SortBy = "label"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseSortBy returns a known SortBy or def.
func ParseSortBy(s string, def SortBy) SortBy {
	switch SortBy(s) {
	case SortByValue, SortByLabel:
		return SortBy(s)
	}
	return def
}

// ParseOrder returns a known Order or def.
func ParseOrder(s string, def Order) Order {
	switch Order(s) {
	case Asc, Desc:
		return Order(s)
	}
	return def
}

// OrderKeys returns the merged keys ordered by label (Indonesian collation)
// or by the total across active series. The sort is stable: keys that
// compare equal keep their merge order.
func OrderKeys(m *Merged, by SortBy, order Order) []string {
	keys := make([]string, len(m.Keys))
	copy(keys, m.Keys)

	sign := 1
	if order == Desc {
		sign = -1
	}

	switch by {
	case SortByLabel:
		col := collate.New(language.Indonesian, collate.IgnoreCase, collate.Numeric)
		sort.SliceStable(keys, func(i, j int) bool {
			return sign*col.CompareString(m.Labels[keys[i]], m.Labels[keys[j]]) < 0
		})
	default:
		totals := make(map[string]float64, len(keys))
		for _, k := range keys {
			totals[k] = m.Total(k)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			a, b := totals[keys[i]], totals[keys[j]]
			if order == Desc {
				return a > b
			}
			return a < b
		})
	}
	return keys
}

// ChartDataset is one colored line/bar series.
type ChartDataset struct {
	Key    string    `json:"key"`
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	Color  string    `json:"color"`
}

// ChartData is the payload handed to the chart renderer. TooltipLabels,
// when present, runs parallel to Labels and carries the full names behind
// abbreviated axis labels.
type ChartData struct {
	Labels        []string       `json:"labels"`
	TooltipLabels []string       `json:"tooltipLabels,omitempty"`
	Datasets      []ChartDataset `json:"datasets"`
}

// BuildChart lays out the active series over the ordered keys.
func BuildChart(m *Merged, keys []string) ChartData {
	data := ChartData{
		Labels:   make([]string, len(keys)),
		Datasets: []ChartDataset{},
	}

	full := make([]string, len(keys))
	abbreviated := false
	for i, k := range keys {
		full[i] = m.Labels[k]
		data.Labels[i] = ShortLabel(full[i])
		if data.Labels[i] != full[i] {
			abbreviated = true
		}
	}
	if abbreviated {
		data.TooltipLabels = full
	}

	for i, s := range m.Series {
		if !s.Active {
			continue
		}
		ds := ChartDataset{
			Key:    s.Key,
			Label:  s.Label,
			Color:  s.Color,
			Values: make([]float64, len(keys)),
		}
		for j, k := range keys {
			ds.Values[j] = m.Value(i, k)
		}
		data.Datasets = append(data.Datasets, ds)
	}
	return data
}

// GrandTotalLabel labels the synthetic last row of every table.
const GrandTotalLabel = "Jumlah"

// TableRow is one labelled row. Values has one entry per series,
// including switched-off series (zero-filled).
type TableRow struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
	Total  float64   `json:"total"`
}

// Table is the row/column model behind on-screen tables and exports.
type Table struct {
	Title      string     `json:"title"`
	Header     []string   `json:"header"`
	Rows       []TableRow `json:"rows"`
	GrandTotal TableRow   `json:"grandTotal"`
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Records flattens the table into string cells: header, data rows, then
// the grand-total row. Numbers are plain decimal text.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+2)
	out = append(out, append([]string(nil), t.Header...))
	for _, r := range t.Rows {
		out = append(out, r.Cells())
	}
	out = append(out, t.GrandTotal.Cells())
	return out
}

// Cells renders the row as label, per-series values and total.
func (r TableRow) Cells() []string {
	cells := make([]string, 0, len(r.Values)+2)
	cells = append(cells, r.Label)
	for _, v := range r.Values {
		cells = append(cells, FormatNumber(v))
	}
	return append(cells, FormatNumber(r.Total))
}

// FormatNumber renders v as plain decimal text with no grouping and no
// exponent, suitable for machine-readable output.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BuildTable emits one row per ordered key with a column per series and a
// Total of the active series, followed by a grand-total row summing every
// numeric column.
func BuildTable(title, labelHeader string, m *Merged, keys []string) Table {
	t := Table{
		Title:  title,
		Header: make([]string, 0, len(m.Series)+2),
		Rows:   make([]TableRow, 0, len(keys)),
	}
	t.Header = append(t.Header, labelHeader)
	for _, s := range m.Series {
		t.Header = append(t.Header, s.Label)
	}
	t.Header = append(t.Header, "Total")

	grand := TableRow{Label: GrandTotalLabel, Values: make([]float64, len(m.Series))}
	for _, k := range keys {
		row := TableRow{Label: m.Labels[k], Values: make([]float64, len(m.Series))}
		for i := range m.Series {
			v := m.Value(i, k)
			row.Values[i] = v
			row.Total += v
			grand.Values[i] += v
		}
		grand.Total += row.Total
		t.Rows = append(t.Rows, row)
	}
	t.GrandTotal = grand
	return t
}

// FilterOptions lists the distinct values offered by a chart's filters.
type FilterOptions struct {
	Regions    []string `json:"regions"`
	Years      []int    `json:"years"`
	Semesters  []int    `json:"semesters"`
	Categories []string `json:"categories"`
}

// BuildOptions collects distinct regions, years, semesters and categories
// from normalized rows. Regions and categories are deduplicated on
// CanonicalKey (first display label wins) and collated; years are newest
// first.
func BuildOptions(rowSets ...[]Row) FilterOptions {
	regions := newLabelSet()
	categories := newLabelSet()
	years := map[int]struct{}{}
	semesters := map[int]struct{}{}

	for _, rows := range rowSets {
		for _, r := range rows {
			regions.add(r.Region)
			categories.add(r.Category)
			if r.Year != 0 {
				years[r.Year] = struct{}{}
			}
			if r.Semester != 0 {
				semesters[r.Semester] = struct{}{}
			}
		}
	}

	opts := FilterOptions{
		Regions:    regions.sorted(),
		Categories: categories.sorted(),
		Years:      make([]int, 0, len(years)),
		Semesters:  make([]int, 0, len(semesters)),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(opts.Years)))
	for s := range semesters {
		opts.Semesters = append(opts.Semesters, s)
	}
	sort.Ints(opts.Semesters)
	return opts
}

type labelSet struct {
	seen   map[string]struct{}
	labels []string
}

func newLabelSet() *labelSet { return &labelSet{seen: map[string]struct{}{}} }

func (s *labelSet) add(label string) {
	k := CanonicalKey(label)
	if k == "" {
		return
	}
	if _, dup := s.seen[k]; dup {
		return
	}
	s.seen[k] = struct{}{}
	s.labels = append(s.labels, label)
}

func (s *labelSet) sorted() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	col := collate.New(language.Indonesian, collate.IgnoreCase, collate.Numeric)
	sort.SliceStable(out, func(i, j int) bool { return col.CompareString(out[i], out[j]) < 0 })
	return out
}
