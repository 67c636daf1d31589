// Package chartcatalog holds the declarative description of every
// statistics chart: which dataset collections feed it, how their columns
// map onto normalized rows, which metric each series sums and which
// filters the chart offers.
//
// The default catalog is embedded from catalog.yaml.
package chartcatalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

var (
	// ErrUnknownChart is returned when a chart id is not in the catalog.
	ErrUnknownChart = errors.New("chartcatalog: unknown chart")
	// ErrUnknownDataset is returned when a dataset name is not in the catalog.
	ErrUnknownDataset = errors.New("chartcatalog: unknown dataset")
)

// Metric is one numeric column of a dataset.
type Metric struct {
	Column string `yaml:"column" json:"column"`
	Label  string `yaml:"label" json:"label"`
	Unit   string `yaml:"unit" json:"unit,omitempty"`
}

// Dataset describes one stored collection of raw records.
type Dataset struct {
	Name    string        `yaml:"name" json:"name"`
	Title   string        `yaml:"title" json:"title"`
	Columns stats.Columns `yaml:"columns" json:"columns"`
	Metrics []Metric      `yaml:"metrics" json:"metrics"`
}

// Metric returns the metric with the given column name.
func (d *Dataset) Metric(column string) (Metric, bool) {
	for _, m := range d.Metrics {
		if m.Column == column {
			return m, true
		}
	}
	return Metric{}, false
}

// Projection lists every column the pipeline reads from the dataset.
func (d *Dataset) Projection() []string {
	cols := d.Columns.Names()
	for _, m := range d.Metrics {
		cols = append(cols, m.Column)
	}
	return cols
}

// Required lists the columns an imported file must carry. Semester and
// category are optional: a semester can be read from the year text and a
// row without a category is still counted.
func (d *Dataset) Required() []string {
	var cols []string
	if d.Columns.Region != "" {
		cols = append(cols, d.Columns.Region)
	}
	if d.Columns.Year != "" {
		cols = append(cols, d.Columns.Year)
	}
	for _, m := range d.Metrics {
		cols = append(cols, m.Column)
	}
	return cols
}

// has reports whether the dataset carries a column for dim.
func (d *Dataset) has(dim stats.Dimension) bool {
	switch dim {
	case stats.DimRegion:
		return d.Columns.Region != ""
	case stats.DimYear:
		return d.Columns.Year != ""
	case stats.DimSemester:
		return d.Columns.Semester != "" || d.Columns.Year != ""
	case stats.DimCategory:
		return d.Columns.Category != ""
	}
	return false
}

// SeriesSpec binds a chart series to a dataset metric.
type SeriesSpec struct {
	Key     string `yaml:"key" json:"key"`
	Label   string `yaml:"label" json:"label"`
	Dataset string `yaml:"dataset" json:"dataset"`
	Metric  string `yaml:"metric" json:"metric"`
	Color   string `yaml:"color" json:"color"`
}

// SortSpec is a chart's default ordering.
type SortSpec struct {
	By    stats.SortBy `yaml:"by" json:"by"`
	Order stats.Order  `yaml:"order" json:"order"`
}

// Chart is one chart variant.
type Chart struct {
	ID          string            `yaml:"id" json:"id"`
	Title       string            `yaml:"title" json:"title"`
	Description string            `yaml:"description" json:"description"`
	GroupBy     stats.Dimension   `yaml:"group_by" json:"groupBy"`
	LabelHeader string            `yaml:"label_header" json:"labelHeader"`
	Filters     []stats.Dimension `yaml:"filters" json:"filters"`
	Sort        SortSpec          `yaml:"sort" json:"sort"`
	Series      []SeriesSpec      `yaml:"series" json:"series"`
}

// Offers reports whether the chart has a filter on dim.
func (c *Chart) Offers(dim stats.Dimension) bool {
	for _, f := range c.Filters {
		if f == dim {
			return true
		}
	}
	return false
}

// Datasets returns the distinct dataset names feeding the chart, in
// series order.
func (c *Chart) Datasets() []string {
	seen := make(map[string]bool, len(c.Series))
	var out []string
	for _, s := range c.Series {
		if !seen[s.Dataset] {
			seen[s.Dataset] = true
			out = append(out, s.Dataset)
		}
	}
	return out
}

// Catalog is a validated set of datasets and charts.
type Catalog struct {
	Datasets []Dataset `yaml:"datasets"`
	Charts   []Chart   `yaml:"charts"`

	datasets map[string]*Dataset
	charts   map[string]*Chart
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Load(defaultYAML)
}

// Load parses and validates a YAML catalog.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse chart catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a YAML catalog from path. A blank path yields the
// embedded catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart catalog: %w", err)
	}
	return Load(data)
}

func (c *Catalog) index() error {
	c.datasets = make(map[string]*Dataset, len(c.Datasets))
	for i := range c.Datasets {
		d := &c.Datasets[i]
		if d.Name == "" {
			return fmt.Errorf("dataset %d: name is required", i)
		}
		if _, dup := c.datasets[d.Name]; dup {
			return fmt.Errorf("dataset %q: duplicate name", d.Name)
		}
		if d.Columns.Region == "" {
			return fmt.Errorf("dataset %q: region column is required", d.Name)
		}
		if len(d.Metrics) == 0 {
			return fmt.Errorf("dataset %q: at least one metric is required", d.Name)
		}
		c.datasets[d.Name] = d
	}

	c.charts = make(map[string]*Chart, len(c.Charts))
	for i := range c.Charts {
		ch := &c.Charts[i]
		if err := c.validateChart(ch); err != nil {
			return fmt.Errorf("chart %q: %w", ch.ID, err)
		}
		c.charts[ch.ID] = ch
	}
	return nil
}

func (c *Catalog) validateChart(ch *Chart) error {
	if ch.ID == "" {
		return errors.New("id is required")
	}
	if _, dup := c.charts[ch.ID]; dup {
		return errors.New("duplicate id")
	}
	if !ch.GroupBy.Valid() {
		return fmt.Errorf("unknown group_by %q", ch.GroupBy)
	}
	if len(ch.Series) == 0 {
		return errors.New("at least one series is required")
	}
	if ch.Sort.By == "" {
		ch.Sort.By = stats.SortByValue
	}
	if ch.Sort.Order == "" {
		ch.Sort.Order = stats.Desc
	}
	if ch.Sort.By != stats.ParseSortBy(string(ch.Sort.By), "") {
		return fmt.Errorf("unknown sort.by %q", ch.Sort.By)
	}
	if ch.Sort.Order != stats.ParseOrder(string(ch.Sort.Order), "") {
		return fmt.Errorf("unknown sort.order %q", ch.Sort.Order)
	}
	if ch.LabelHeader == "" {
		ch.LabelHeader = string(ch.GroupBy)
	}

	keys := make(map[string]bool, len(ch.Series))
	for i := range ch.Series {
		s := &ch.Series[i]
		if s.Key == "" {
			return fmt.Errorf("series %d: key is required", i)
		}
		if keys[s.Key] {
			return fmt.Errorf("series %q: duplicate key", s.Key)
		}
		keys[s.Key] = true

		d, ok := c.datasets[s.Dataset]
		if !ok {
			return fmt.Errorf("series %q: %w %q", s.Key, ErrUnknownDataset, s.Dataset)
		}
		if _, ok := d.Metric(s.Metric); !ok {
			return fmt.Errorf("series %q: dataset %q has no metric %q", s.Key, s.Dataset, s.Metric)
		}
		if !d.has(ch.GroupBy) {
			return fmt.Errorf("series %q: dataset %q cannot be grouped by %s", s.Key, s.Dataset, ch.GroupBy)
		}
		for _, f := range ch.Filters {
			if !f.Valid() {
				return fmt.Errorf("unknown filter %q", f)
			}
			if !d.has(f) {
				return fmt.Errorf("series %q: dataset %q cannot be filtered by %s", s.Key, s.Dataset, f)
			}
		}
		if s.Label == "" {
			s.Label = s.Key
		}
	}
	return nil
}

// Chart returns the chart with the given id.
func (c *Catalog) Chart(id string) (*Chart, error) {
	ch, ok := c.charts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, id)
	}
	return ch, nil
}

// Dataset returns the dataset with the given name.
func (c *Catalog) Dataset(name string) (*Dataset, error) {
	d, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return d, nil
}

// DatasetNames returns every dataset name in catalog order.
func (c *Catalog) DatasetNames() []string {
	out := make([]string, len(c.Datasets))
	for i, d := range c.Datasets {
		out[i] = d.Name
	}
	return out
}
