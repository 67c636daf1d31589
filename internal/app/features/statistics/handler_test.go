package statistics_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/features/statistics"
	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/exportstore"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/dkpmalut/lautdata/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

const testCatalog = `
datasets:
  - name: tangkap
    columns: {region: kabupaten, year: tahun}
    metrics:
      - {column: volume, label: Volume, unit: ton}
  - name: budidaya
    columns: {region: kabupaten, year: tahun}
    metrics:
      - {column: volume, label: Volume, unit: ton}
charts:
  - id: produksi
    title: Produksi Perikanan
    group_by: region
    label_header: Kabupaten/Kota
    filters: [region, year]
    sort: {by: value, order: desc}
    series:
      - {key: tangkap, label: Tangkap, dataset: tangkap, metric: volume, color: "#1f77b4"}
      - {key: budidaya, label: Budidaya, dataset: budidaya, metric: volume, color: "#2ca02c"}
`

type fakeLoader struct {
	records map[string][]stats.Record
	err     error

	mu   sync.Mutex
	reqs []datasetstore.Request
}

func (f *fakeLoader) LoadMany(_ context.Context, reqs []datasetstore.Request) (map[string][]stats.Record, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, reqs...)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fakePublisher struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (p *fakePublisher) Publish(_ context.Context, key, contentType string, body []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.key, p.contentType, p.body = key, contentType, body
	return "https://exports.test/" + key, nil
}

func sampleRecords() map[string][]stats.Record {
	return map[string][]stats.Record{
		"tangkap": {
			{"kabupaten": "Kota Ternate", "tahun": 2023, "volume": "1,000"},
			{"kabupaten": "Kota Ternate", "tahun": 2023, "volume": "500"},
			{"kabupaten": "Kota Tidore Kepulauan", "tahun": 2022, "volume": "200"},
		},
		"budidaya": {
			{"kabupaten": "Kota Tidore Kepulauan", "tahun": 2023, "volume": 300},
			{"kabupaten": "Kabupaten Halmahera Barat", "tahun": 2023, "volume": "tidak ada"},
		},
	}
}

func newTestHandler(t *testing.T, loader statistics.Loader, pub exportstore.Publisher) *statistics.Handler {
	t.Helper()
	cat, err := chartcatalog.Load([]byte(testCatalog))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return statistics.NewHandler(cat, loader, pub, metrics.New(), nil, zap.NewNop())
}

func newRouter(t *testing.T, h *statistics.Handler) http.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return statistics.Routes(h, sm)
}

func TestServeData(t *testing.T) {
	loader := &fakeLoader{records: sampleRecords()}
	router := newRouter(t, newTestHandler(t, loader, nil))

	req := httptest.NewRequest(http.MethodGet, "/produksi/data.json?year=2023", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	testutil.AssertStatus(t, rec, http.StatusOK)
	var got struct {
		Data      stats.ChartData `json:"data"`
		Table     stats.Table     `json:"table"`
		Empty     bool            `json:"empty"`
		CanExport bool            `json:"canExport"`
	}
	testutil.DecodeJSON(t, rec, &got)

	if diff := cmp.Diff([]string{"Kota Ternate", "Kota Tidore Kepulauan"}, got.Data.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if len(got.Data.Datasets) != 2 {
		t.Fatalf("datasets: got %d, want 2", len(got.Data.Datasets))
	}
	if diff := cmp.Diff([]float64{1500, 0}, got.Data.Datasets[0].Values); diff != "" {
		t.Errorf("tangkap values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 300}, got.Data.Datasets[1].Values); diff != "" {
		t.Errorf("budidaya values mismatch (-want +got):\n%s", diff)
	}
	if got.Table.GrandTotal.Total != 1800 {
		t.Errorf("grand total: got %v, want 1800", got.Table.GrandTotal.Total)
	}
	if got.Empty || !got.CanExport {
		t.Errorf("Empty=%v CanExport=%v, want false/true", got.Empty, got.CanExport)
	}
}

func TestServeData_ProjectsColumns(t *testing.T) {
	loader := &fakeLoader{records: sampleRecords()}
	router := newRouter(t, newTestHandler(t, loader, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/produksi/data.json", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	want := []datasetstore.Request{
		{Dataset: "tangkap", Columns: []string{"kabupaten", "tahun", "volume"}},
		{Dataset: "budidaya", Columns: []string{"kabupaten", "tahun", "volume"}},
	}
	if diff := cmp.Diff(want, loader.reqs); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestServeData_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		loader *fakeLoader
		want   int
	}{
		{name: "unknown chart", path: "/tidak-ada/data.json", loader: &fakeLoader{}, want: http.StatusNotFound},
		{name: "load failure", path: "/produksi/data.json", loader: &fakeLoader{err: errors.New("mongo down")}, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, newTestHandler(t, tt.loader, nil))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			testutil.AssertStatus(t, rec, tt.want)
			var body struct {
				Error string `json:"error"`
			}
			testutil.DecodeJSON(t, rec, &body)
			if body.Error == "" {
				t.Error("error message is empty")
			}
			if strings.Contains(body.Error, "mongo") {
				t.Errorf("error leaks internals: %q", body.Error)
			}
		})
	}
}

func TestServeCSV(t *testing.T) {
	router := newRouter(t, newTestHandler(t, &fakeLoader{records: sampleRecords()}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/produksi/export.csv?year=2023&series=tangkap", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=") || !strings.Contains(cd, ".csv") {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	body := rec.Body.Bytes()
	if !bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("CSV body does not start with a UTF-8 BOM")
	}
	want := "Kabupaten/Kota,Tangkap (ton),Budidaya (ton),Total\r\n" +
		"Kota Ternate,1500,0,1500\r\n" +
		"Jumlah,1500,0,1500\r\n"
	if got := string(body[3:]); got != want {
		t.Errorf("CSV body:\ngot  %q\nwant %q", got, want)
	}
}

func TestServeXLSX(t *testing.T) {
	router := newRouter(t, newTestHandler(t, &fakeLoader{records: sampleRecords()}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/produksi/export.xlsx", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("XLSX body is not a zip archive")
	}
}

func TestExport_NothingToExport(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "no matching rows", query: "year=1999"},
		{name: "every series off", query: "series=none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, newTestHandler(t, &fakeLoader{records: sampleRecords()}, nil))
			for _, ext := range []string{"csv", "xlsx"} {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/produksi/export."+ext+"?"+tt.query, nil))
				testutil.AssertStatus(t, rec, http.StatusConflict)
				if cd := rec.Header().Get("Content-Disposition"); cd != "" {
					t.Errorf("%s: unexpected Content-Disposition %q", ext, cd)
				}
			}
		})
	}
}

type auditRecorder struct{ events []audit.Event }

func (a *auditRecorder) Log(_ context.Context, e audit.Event) error {
	a.events = append(a.events, e)
	return nil
}

func TestHandlePublish(t *testing.T) {
	pub := &fakePublisher{}
	h := newTestHandler(t, &fakeLoader{records: sampleRecords()}, pub)
	trail := &auditRecorder{}
	h.Audit = auditlog.New(trail, zap.NewNop(), auditlog.Config{Data: auditlog.ModeDB})
	router := newRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/produksi/publish?format=xlsx", nil)
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	testutil.AssertStatus(t, rec, http.StatusCreated)
	var got struct {
		URL      string `json:"url"`
		Key      string `json:"key"`
		Filename string `json:"filename"`
	}
	testutil.DecodeJSON(t, rec, &got)

	if !strings.HasPrefix(pub.key, "produksi/") || !strings.HasSuffix(pub.key, ".xlsx") {
		t.Errorf("published key: got %q", pub.key)
	}
	if got.Key != pub.key || got.URL != "https://exports.test/"+pub.key {
		t.Errorf("response %+v does not match published key %q", got, pub.key)
	}
	if !bytes.HasPrefix(pub.body, []byte("PK")) {
		t.Error("published body is not an XLSX archive")
	}
	if len(trail.events) != 1 || trail.events[0].Details["key"] != pub.key {
		t.Errorf("audit events: got %+v", trail.events)
	}
}

func TestHandlePublish_Rejections(t *testing.T) {
	tests := []struct {
		name string
		pub  exportstore.Publisher
		user *auth.SessionUser
		path string
		want int
	}{
		{name: "operator", pub: &fakePublisher{}, user: testutil.OperatorUser(), path: "/produksi/publish", want: http.StatusForbidden},
		{name: "anonymous", pub: &fakePublisher{}, path: "/produksi/publish", want: http.StatusUnauthorized},
		{name: "not configured", pub: nil, user: testutil.AdminUser(), path: "/produksi/publish", want: http.StatusNotImplemented},
		{name: "bad format", pub: &fakePublisher{}, user: testutil.AdminUser(), path: "/produksi/publish?format=pdf", want: http.StatusBadRequest},
		{name: "store failure", pub: &fakePublisher{err: errors.New("s3: access denied")}, user: testutil.AdminUser(), path: "/produksi/publish", want: http.StatusBadGateway},
		{name: "nothing to export", pub: &fakePublisher{}, user: testutil.AdminUser(), path: "/produksi/publish?year=1999", want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, newTestHandler(t, &fakeLoader{records: sampleRecords()}, tt.pub))
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set("Accept", "application/json")
			if tt.user != nil {
				req = testutil.WithUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			testutil.AssertStatus(t, rec, tt.want)
		})
	}
}
