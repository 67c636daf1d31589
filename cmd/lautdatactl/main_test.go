package main

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/google/go-cmp/cmp"
)

func TestParseQuery(t *testing.T) {
	got, err := parseQuery([]string{"year=2023", "region=Kota Ternate", "region=Pulau Morotai", "series="})
	if err != nil {
		t.Fatalf("parseQuery: %v", err)
	}
	want := url.Values{
		"year":   {"2023"},
		"region": {"Kota Ternate", "Pulau Morotai"},
		"series": {""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"year", "=2023"} {
		if _, err := parseQuery([]string{bad}); err == nil {
			t.Errorf("parseQuery(%q): expected error", bad)
		}
	}
}

func TestPrintTable(t *testing.T) {
	table := stats.Table{
		Header: []string{"Kabupaten/Kota", "Tangkap (ton)", "Total"},
		Rows: []stats.TableRow{
			{Label: "Kota Ternate", Values: []float64{1500}, Total: 1500},
		},
	}
	var buf bytes.Buffer
	if err := printTable(&buf, table); err != nil {
		t.Fatalf("printTable: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Kabupaten/Kota", "Kota Ternate", "1500"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		importDryRun, importReplace = false, false
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestImport_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tangkap.csv")
	csv := "Kabupaten,Tahun,Volume,Nilai\nKota Ternate,2023,1200,5000\nPulau Morotai,2023,300,900\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, err := runCLI(t, "import", "--dry-run", "produksi_tangkap", path)
	if err != nil {
		t.Fatalf("import --dry-run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2 baris valid") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestImport_DryRunRejects(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "kurang.csv")
	if err := os.WriteFile(missing, []byte("Kabupaten,Volume\nKota Ternate,5\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	broken := filepath.Join(dir, "rusak.csv")
	if err := os.WriteFile(broken, []byte("Kabupaten,Tahun,Volume,Nilai\nA,2023,1,2,3\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown dataset", args: []string{"import", "--dry-run", "entah", missing}, want: "unknown dataset"},
		{name: "missing columns", args: []string{"import", "--dry-run", "produksi_tangkap", missing}, want: "missing columns tahun, nilai"},
		{name: "row errors", args: []string{"import", "--dry-run", "produksi_tangkap", broken}, want: "baris 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(out+err.Error(), tt.want) {
				t.Errorf("got %q / %v, want mention of %q", out, err, tt.want)
			}
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	t.Cleanup(func() { exportFormat = "csv" })
	if _, err := runCLI(t, "export", "--format", "pdf", "produksi-per-wilayah"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCacheNotice(t *testing.T) {
	var buf bytes.Buffer
	cacheNotice(&buf, "produksi_tangkap")

	out := buf.String()
	for _, want := range []string{"produksi_tangkap", "dataset_cache_ttl", "/admin/imports"} {
		if !strings.Contains(out, want) {
			t.Errorf("notice missing %q:\n%s", want, out)
		}
	}
}
