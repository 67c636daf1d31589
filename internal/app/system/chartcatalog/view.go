// internal/app/system/chartcatalog/view.go
package chartcatalog

import (
	"net/url"
	"strings"

	"github.com/dkpmalut/lautdata/internal/app/stats"
)

// Request is the caller-controlled state of one chart view.
type Request struct {
	Selection stats.Selection
	SortBy    stats.SortBy
	Order     stats.Order
}

// RequestFromQuery reads a Request from query values. Unknown sort values
// fall back to the chart's default ordering.
func (c *Chart) RequestFromQuery(q url.Values) Request {
	return Request{
		Selection: stats.SelectionFromQuery(q).Restrict(c.Filters),
		SortBy:    stats.ParseSortBy(strings.TrimSpace(q.Get("sort")), c.Sort.By),
		Order:     stats.ParseOrder(strings.TrimSpace(q.Get("order")), c.Sort.Order),
	}
}

// Query encodes the request back into query values.
func (r Request) Query() url.Values {
	q := r.Selection.Query()
	if r.SortBy != "" {
		q.Set("sort", string(r.SortBy))
	}
	if r.Order != "" {
		q.Set("order", string(r.Order))
	}
	return q
}

// SeriesToggle is one series checkbox on the chart page.
type SeriesToggle struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// View is everything a page, JSON endpoint or export needs to render one
// chart for one request. It is built fresh per request and never cached.
type View struct {
	Chart     *Chart                      `json:"chart"`
	Request   Request                     `json:"-"`
	Selection stats.Selection             `json:"selection"`
	SortBy    stats.SortBy                `json:"sort"`
	Order     stats.Order                 `json:"order"`
	Series    []SeriesToggle              `json:"series"`
	Data      stats.ChartData             `json:"data"`
	Table     stats.Table                 `json:"table"`
	Options   stats.FilterOptions         `json:"options"`
	Drops     map[string]stats.DropReport `json:"drops"`
	Empty     bool                        `json:"empty"`
	CanExport bool                        `json:"canExport"`
}

// Build runs the stats pipeline for one chart. records holds the raw rows
// of every dataset the chart reads, keyed by dataset name; a missing entry
// is treated as an empty dataset.
func (c *Catalog) Build(ch *Chart, records map[string][]stats.Record, req Request) *View {
	sel := req.Selection.Restrict(ch.Filters)
	if req.SortBy == "" {
		req.SortBy = ch.Sort.By
	}
	if req.Order == "" {
		req.Order = ch.Sort.Order
	}
	req.Selection = sel

	filter := sel.Filter()
	groupBy := stats.GroupBy(ch.GroupBy)

	v := &View{
		Chart:     ch,
		Request:   req,
		Selection: sel,
		SortBy:    req.SortBy,
		Order:     req.Order,
		Drops:     make(map[string]stats.DropReport, len(ch.Series)),
	}

	series := make([]stats.Series, 0, len(ch.Series))
	var optionRows [][]stats.Row
	for _, spec := range ch.Series {
		d := c.datasets[spec.Dataset]
		rows, report := stats.NormalizeRows(records[spec.Dataset], d.Columns, spec.Metric)
		v.Drops[spec.Key] = report
		optionRows = append(optionRows, rows)

		label := spec.Label
		if m, ok := d.Metric(spec.Metric); ok && m.Unit != "" {
			label += " (" + m.Unit + ")"
		}
		active := sel.SeriesActive(spec.Key)
		series = append(series, stats.Series{
			Key:    spec.Key,
			Label:  label,
			Color:  spec.Color,
			Active: active,
			Agg:    stats.AggregateRows(rows, stats.PickValue, groupBy, filter),
		})
		v.Series = append(v.Series, SeriesToggle{Key: spec.Key, Label: spec.Label, Color: spec.Color, Active: active})
	}

	merged := stats.MergeSeries(series)
	keys := stats.OrderKeys(merged, req.SortBy, req.Order)

	v.Data = stats.BuildChart(merged, keys)
	v.Table = stats.BuildTable(ch.Title, ch.LabelHeader, merged, keys)
	v.Options = stats.BuildOptions(optionRows...)
	v.Empty = len(keys) == 0
	v.CanExport = merged.AnyActive() && !v.Table.Empty()
	return v
}

// AnyActive reports whether at least one series is switched on.
func (v *View) AnyActive() bool {
	for _, s := range v.Series {
		if s.Active {
			return true
		}
	}
	return false
}

// RegionSelected reports whether region is part of the current selection.
func (v *View) RegionSelected(region string) bool {
	want := stats.CanonicalKey(region)
	for _, r := range v.Selection.Regions {
		if stats.CanonicalKey(r) == want {
			return true
		}
	}
	return false
}
