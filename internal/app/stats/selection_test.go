package stats

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var sampleRows = []Row{
	{Region: "Kota Ternate", Year: 2022, Semester: 1, Category: "Tuna", Value: 10},
	{Region: "Kota Ternate", Year: 2023, Semester: 2, Category: "Cakalang", Value: 20},
	{Region: "Kota Tidore Kepulauan", Year: 2023, Semester: 1, Category: "Tuna", Value: 5},
	{Region: "Kabupaten Halmahera Barat", Year: 2023, Semester: 2, Category: "Tongkol", Value: 7},
}

func TestSelectionFilter_AllPassesEverything(t *testing.T) {
	for _, sel := range []Selection{{}, {Regions: []string{}}, {Series: []string{}}} {
		f := sel.Filter()
		for _, r := range sampleRows {
			if !f(r) {
				t.Errorf("empty selection %+v rejected row %+v", sel, r)
			}
		}
	}
}

func TestSelectionFilter(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want int
	}{
		{name: "region", sel: Selection{Regions: []string{"Kota Ternate"}}, want: 2},
		{name: "region canonical", sel: Selection{Regions: []string{"  KOTA   ternate "}}, want: 2},
		{name: "two regions", sel: Selection{Regions: []string{"Kota Ternate", "Kota Tidore Kepulauan"}}, want: 3},
		{name: "year", sel: Selection{Year: 2023}, want: 3},
		{name: "semester", sel: Selection{Semester: 1}, want: 2},
		{name: "category", sel: Selection{Category: "tuna"}, want: 2},
		{name: "conjunction", sel: Selection{Regions: []string{"Kota Ternate"}, Year: 2023, Category: "Cakalang"}, want: 1},
		{name: "no match", sel: Selection{Year: 1999}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.sel.Filter()
			got := 0
			for _, r := range sampleRows {
				if f(r) {
					got++
				}
			}
			if got != tt.want {
				t.Errorf("passing rows: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSelectionFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Selection
	}{
		{name: "empty", query: "", want: Selection{}},
		{name: "all sentinels", query: "region=all&year=all&semester=all&category=all", want: Selection{}},
		{
			name:  "repeated and comma regions",
			query: "region=Kota+Ternate&region=Kota+Tidore+Kepulauan,Kabupaten+Halmahera+Barat",
			want:  Selection{Regions: []string{"Kota Ternate", "Kota Tidore Kepulauan", "Kabupaten Halmahera Barat"}},
		},
		{name: "year", query: "year=2023", want: Selection{Year: 2023}},
		{name: "bad year", query: "year=twenty", want: Selection{}},
		{name: "roman semester", query: "semester=II", want: Selection{Semester: 2}},
		{name: "bad semester", query: "semester=5", want: Selection{}},
		{name: "category", query: "category=Tuna", want: Selection{Category: "Tuna"}},
		{name: "series", query: "series=tangkap,budidaya", want: Selection{Series: []string{"tangkap", "budidaya"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got := SelectionFromQuery(q)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SelectionFromQuery mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelectionQueryRoundTrip(t *testing.T) {
	sel := Selection{
		Regions:  []string{"Kota Ternate", "Kota Tidore Kepulauan"},
		Year:     2023,
		Semester: 2,
		Category: "Tuna",
		Series:   []string{"tangkap"},
	}
	got := SelectionFromQuery(sel.Query())
	if diff := cmp.Diff(sel, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSeriesActive(t *testing.T) {
	if !(Selection{}).SeriesActive("tangkap") {
		t.Error("empty series list should activate every series")
	}
	sel := Selection{Series: []string{"budidaya"}}
	if sel.SeriesActive("tangkap") {
		t.Error("tangkap should be off")
	}
	if !sel.SeriesActive("budidaya") {
		t.Error("budidaya should be on")
	}
}

func TestRestrict(t *testing.T) {
	sel := Selection{Regions: []string{"Kota Ternate"}, Year: 2023, Semester: 1, Category: "Tuna"}
	got := sel.Restrict([]Dimension{DimYear})
	want := Selection{Year: 2023}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Restrict mismatch (-want +got):\n%s", diff)
	}
}
