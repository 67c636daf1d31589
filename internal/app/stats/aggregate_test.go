package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAggregateRows_TernateTidore(t *testing.T) {
	records := []Record{
		{"region": "Ternate", "year": 2023, "value": "1,000"},
		{"region": "Ternate", "year": 2023, "value": "500"},
		{"region": "Tidore", "year": 2022, "value": "200"},
	}
	rows, report := NormalizeRows(records, Columns{Region: "region", Year: "year"}, "value")
	if report.Kept != 3 {
		t.Fatalf("Kept: got %d, want 3", report.Kept)
	}

	agg := AggregateRows(rows, PickValue, GroupBy(DimRegion), Selection{Year: 2023}.Filter())
	if agg.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", agg.Len())
	}
	got, found := agg.Total("ternate")
	if !found || got != 1500 {
		t.Errorf("Total(ternate): got %v (found=%v), want 1500", got, found)
	}
	if _, found := agg.Total("tidore"); found {
		t.Error("Tidore should be excluded by the year filter")
	}

	m := MergeSeries([]Series{{Key: "v", Label: "Volume", Active: true, Agg: agg}})
	labels := BuildChart(m, OrderKeys(m, SortByValue, Desc)).Labels
	if diff := cmp.Diff([]string{"Ternate"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateRows_Conservation(t *testing.T) {
	sel := Selection{Year: 2023}
	f := sel.Filter()
	agg := AggregateRows(sampleRows, PickValue, GroupBy(DimRegion), f)

	var want float64
	for _, r := range sampleRows {
		if f(r) {
			want += r.Value
		}
	}
	if got := agg.Sum(); got != want {
		t.Errorf("Sum: got %v, want %v", got, want)
	}
}

func TestAggregateRows_CanonicalGrouping(t *testing.T) {
	rows := []Row{
		{Region: "Kota Ternate", Value: 1},
		{Region: "KOTA  TERNATE", Value: 2},
		{Region: "kota ternate ", Value: 3},
	}
	agg := AggregateRows(rows, PickValue, GroupBy(DimRegion), nil)
	if agg.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", agg.Len())
	}
	if got := agg.Label("kota ternate"); got != "Kota Ternate" {
		t.Errorf("Label: got %q, want first-seen %q", got, "Kota Ternate")
	}
	if v, _ := agg.Total("kota ternate"); v != 6 {
		t.Errorf("Total: got %v, want 6", v)
	}
}

func TestAggregateRows_SkipsEmptyKeysAndNonFinite(t *testing.T) {
	rows := []Row{
		{Region: "Kota Ternate", Category: "", Value: 1},
		{Region: "Kota Ternate", Category: "Tuna", Value: math.Inf(1)},
		{Region: "Kota Ternate", Category: "Tuna", Value: 4},
	}
	agg := AggregateRows(rows, PickValue, GroupBy(DimCategory), nil)
	if diff := cmp.Diff([]string{"tuna"}, agg.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := agg.Total("tuna"); v != 4 {
		t.Errorf("Total(tuna): got %v, want 4", v)
	}
}

func TestGroupBy(t *testing.T) {
	r := Row{Region: "Kota Ternate", Year: 2023, Semester: 2, Category: "Tuna"}
	tests := []struct {
		dim  Dimension
		want string
	}{
		{DimRegion, "Kota Ternate"},
		{DimYear, "2023"},
		{DimSemester, "Semester 2"},
		{DimCategory, "Tuna"},
	}
	for _, tt := range tests {
		if got := GroupBy(tt.dim)(r); got != tt.want {
			t.Errorf("GroupBy(%s): got %q, want %q", tt.dim, got, tt.want)
		}
	}
	if got := GroupBy(DimYear)(Row{Region: "x"}); got != "" {
		t.Errorf("GroupBy(year) on yearless row: got %q, want empty", got)
	}
}

func TestMergeSeries_UnionCompleteness(t *testing.T) {
	a := AggregateRows([]Row{
		{Region: "Kota Ternate", Value: 10},
		{Region: "Kota Tidore Kepulauan", Value: 4},
	}, PickValue, GroupBy(DimRegion), nil)
	b := AggregateRows([]Row{
		{Region: "Kota Tidore Kepulauan", Value: 3},
		{Region: "Pulau Morotai", Value: 9},
	}, PickValue, GroupBy(DimRegion), nil)

	m := MergeSeries([]Series{
		{Key: "tangkap", Active: true, Agg: a},
		{Key: "budidaya", Active: true, Agg: b},
	})

	want := []string{"kota ternate", "kota tidore kepulauan", "pulau morotai"}
	if diff := cmp.Diff(want, m.Keys); diff != "" {
		t.Fatalf("Keys mismatch (-want +got):\n%s", diff)
	}
	for i, s := range m.Series {
		for _, k := range s.Agg.Keys() {
			found := false
			for _, mk := range m.Keys {
				if mk == k {
					found = true
				}
			}
			if !found {
				t.Errorf("series %d key %q missing from merged keys", i, k)
			}
		}
	}
	if got := m.Value(0, "pulau morotai"); got != 0 {
		t.Errorf("zero-fill: got %v, want 0", got)
	}
	if got := m.Total("kota tidore kepulauan"); got != 7 {
		t.Errorf("Total: got %v, want 7", got)
	}
}

func TestMergeSeries_InactiveSeries(t *testing.T) {
	a := AggregateRows([]Row{{Region: "Kota Ternate", Value: 10}}, PickValue, GroupBy(DimRegion), nil)
	b := AggregateRows([]Row{{Region: "Pulau Morotai", Value: 9}}, PickValue, GroupBy(DimRegion), nil)

	m := MergeSeries([]Series{
		{Key: "tangkap", Active: true, Agg: a},
		{Key: "budidaya", Active: false, Agg: b},
	})
	if diff := cmp.Diff([]string{"kota ternate"}, m.Keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if got := m.Value(1, "pulau morotai"); got != 0 {
		t.Errorf("inactive series value: got %v, want 0", got)
	}
	if !m.AnyActive() {
		t.Error("AnyActive: got false, want true")
	}
	if MergeSeries([]Series{{Key: "x", Agg: a}}).AnyActive() {
		t.Error("AnyActive with every series off: got true, want false")
	}
}
