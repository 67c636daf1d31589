package imports_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/features/imports"
	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/dkpmalut/lautdata/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

const testCatalog = `
datasets:
  - name: tangkap
    title: Perikanan Tangkap
    columns: {region: kabupaten, year: tahun}
    metrics:
      - {column: volume, label: Volume, unit: ton}
charts:
  - id: produksi
    title: Produksi Perikanan
    group_by: region
    series:
      - {key: tangkap, label: Tangkap, dataset: tangkap, metric: volume}
`

type fakeWriter struct {
	mu       sync.Mutex
	inserted []stats.Record
	replaced bool
	source   string
	deleted  string
	delN     int64
	err      error
}

func (f *fakeWriter) Insert(_ context.Context, _ string, records []stats.Record, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(records) == 0 {
		return "", datasetstore.ErrNoRecords
	}
	f.inserted, f.source = records, source
	return "batch-1", nil
}

func (f *fakeWriter) Replace(ctx context.Context, dataset string, records []stats.Record, source string) (string, error) {
	f.mu.Lock()
	f.replaced = true
	f.mu.Unlock()
	return f.Insert(ctx, dataset, records, source)
}

func (f *fakeWriter) DeleteBatch(_ context.Context, _, batch string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = batch
	return f.delN, f.err
}

func (f *fakeWriter) Batches(context.Context, string) ([]datasetstore.Batch, error) {
	return []datasetstore.Batch{{ID: "batch-0", Source: "lama.csv", Rows: 3, ImportedAt: time.Now()}}, nil
}

func (f *fakeWriter) Count(context.Context, string) (int64, error) { return 3, nil }

type fakeCache struct {
	invalidated []string
	cleared     int
	cached      map[string]bool
	asked       []string
}

func (c *fakeCache) Invalidate(dataset string) { c.invalidated = append(c.invalidated, dataset) }

func (c *fakeCache) InvalidateAll() { c.cleared++ }

func (c *fakeCache) Cached(dataset string) bool {
	c.asked = append(c.asked, dataset)
	return c.cached[dataset]
}

type auditRecorder struct{ events []audit.Event }

func (a *auditRecorder) Log(_ context.Context, e audit.Event) error {
	a.events = append(a.events, e)
	return nil
}

func newRouter(t *testing.T, w imports.Writer, c imports.Invalidator) http.Handler {
	t.Helper()
	return newAuditedRouter(t, w, c, nil)
}

// newAuditedRouter records audit events into rec when it is not nil.
func newAuditedRouter(t *testing.T, w imports.Writer, c imports.Invalidator, rec *auditRecorder) http.Handler {
	t.Helper()
	cat, err := chartcatalog.Load([]byte(testCatalog))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	var al *auditlog.Logger
	if rec != nil {
		al = auditlog.New(rec, zap.NewNop(), auditlog.Config{Data: auditlog.ModeDB})
	}
	return imports.Routes(imports.NewHandler(cat, w, c, metrics.New(), al, zap.NewNop()), sm)
}

// uploadRequest builds a multipart import form. An empty filename omits
// the file part.
func uploadRequest(t *testing.T, fields map[string]string, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write([]byte(body))
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testutil.WithUser(req, testutil.OperatorUser())
}

// serve runs the request, tolerating the render panic that occurs when no
// template engine is booted.
func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		h.ServeHTTP(rec, req)
	}()
	return rec
}

const goodCSV = "Kabupaten,Tahun,Volume\nKota Ternate,2023,1200\nPulau Morotai,2023,300\n"

func TestHandleUpload_Append(t *testing.T) {
	w, c, a := &fakeWriter{}, &fakeCache{}, &auditRecorder{}
	router := newAuditedRouter(t, w, c, a)

	rec := serve(router, uploadRequest(t, map[string]string{"dataset": "tangkap"}, "tangkap-2023.csv", goodCSV))

	testutil.AssertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin/imports?imported=tangkap&rows=2" {
		t.Errorf("Location: got %q", loc)
	}
	want := []stats.Record{
		{"kabupaten": "Kota Ternate", "tahun": "2023", "volume": "1200"},
		{"kabupaten": "Pulau Morotai", "tahun": "2023", "volume": "300"},
	}
	if diff := cmp.Diff(want, w.inserted); diff != "" {
		t.Errorf("inserted mismatch (-want +got):\n%s", diff)
	}
	if w.replaced || w.source != "tangkap-2023.csv" {
		t.Errorf("replaced=%v source=%q", w.replaced, w.source)
	}
	if diff := cmp.Diff([]string{"tangkap"}, c.invalidated); diff != "" {
		t.Errorf("invalidated mismatch (-want +got):\n%s", diff)
	}
	if len(a.events) != 1 || a.events[0].EventType != audit.EventDatasetImported || a.events[0].Details["rows"] != "2" {
		t.Errorf("audit events: got %+v", a.events)
	}
}

func TestHandleUpload_Replace(t *testing.T) {
	w := &fakeWriter{}
	router := newRouter(t, w, nil)

	rec := serve(router, uploadRequest(t, map[string]string{"dataset": "tangkap", "mode": "replace"}, "semua.csv", goodCSV))

	testutil.AssertStatus(t, rec, http.StatusSeeOther)
	if !w.replaced {
		t.Error("replace mode did not call Replace")
	}
}

func TestHandleUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		body     string
		err      error
		want     int
	}{
		{name: "unknown dataset", fields: map[string]string{"dataset": "entah"}, filename: "a.csv", body: goodCSV, want: http.StatusBadRequest},
		{name: "unknown mode", fields: map[string]string{"dataset": "tangkap", "mode": "merge"}, filename: "a.csv", body: goodCSV, want: http.StatusBadRequest},
		{name: "no file", fields: map[string]string{"dataset": "tangkap"}, want: http.StatusBadRequest},
		{name: "pdf", fields: map[string]string{"dataset": "tangkap"}, filename: "a.pdf", body: "%PDF", want: http.StatusBadRequest},
		{name: "empty file", fields: map[string]string{"dataset": "tangkap"}, filename: "a.csv", body: "", want: http.StatusBadRequest},
		{name: "header only", fields: map[string]string{"dataset": "tangkap"}, filename: "a.csv", body: "kabupaten,tahun,volume\n", want: http.StatusBadRequest},
		{name: "missing column", fields: map[string]string{"dataset": "tangkap"}, filename: "a.csv", body: "kabupaten,volume\nKota Ternate,5\n", want: http.StatusBadRequest},
		{name: "row error", fields: map[string]string{"dataset": "tangkap"}, filename: "a.csv", body: "kabupaten,tahun,volume\nA,2023,1,9\n", want: http.StatusBadRequest},
		{name: "store failure", fields: map[string]string{"dataset": "tangkap"}, filename: "a.csv", body: goodCSV, err: errors.New("mongo down"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{err: tt.err}
			rec := serve(newRouter(t, w, nil), uploadRequest(t, tt.fields, tt.filename, tt.body))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
			if tt.err == nil && w.inserted != nil {
				t.Error("rejected upload was written")
			}
		})
	}
}

func TestHandleDeleteBatch(t *testing.T) {
	w, c, a := &fakeWriter{delN: 3}, &fakeCache{}, &auditRecorder{}
	router := newAuditedRouter(t, w, c, a)

	req := testutil.WithUser(httptest.NewRequest(http.MethodPost, "/tangkap/batch-0/delete", nil), testutil.AdminUser())
	rec := serve(router, req)

	testutil.AssertStatus(t, rec, http.StatusSeeOther)
	if loc := rec.Header().Get("Location"); loc != "/admin/imports?deleted=tangkap&rows=3" {
		t.Errorf("Location: got %q", loc)
	}
	if w.deleted != "batch-0" {
		t.Errorf("deleted batch: got %q", w.deleted)
	}
	if len(c.invalidated) != 1 {
		t.Errorf("cache invalidations: got %d, want 1", len(c.invalidated))
	}
	if len(a.events) != 1 || a.events[0].EventType != audit.EventBatchDeleted || a.events[0].Details["batch"] != "batch-0" {
		t.Errorf("audit events: got %+v", a.events)
	}
}

func TestHandleDeleteBatch_NotFound(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "unknown dataset", path: "/entah/batch-0/delete"},
		{name: "unknown batch", path: "/tangkap/tidak-ada/delete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, &fakeWriter{}, nil)
			req := testutil.WithUser(httptest.NewRequest(http.MethodPost, tt.path, nil), testutil.AdminUser())
			if rec := serve(router, req); rec.Code != http.StatusNotFound {
				t.Errorf("status: got %d, want 404", rec.Code)
			}
		})
	}
}

func TestRoutes_RequireImportRole(t *testing.T) {
	router := newRouter(t, &fakeWriter{}, nil)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusSeeOther {
		t.Errorf("anonymous: got %d, want 401 or redirect to login", rec.Code)
	}

	req := testutil.WithUser(httptest.NewRequest(http.MethodGet, "/", nil), &auth.SessionUser{ID: "x", Role: "visitor"})
	if rec := serve(router, req); rec.Code != http.StatusForbidden {
		t.Errorf("visitor: got %d, want 403", rec.Code)
	}
}

func TestHandleRefreshCache(t *testing.T) {
	tests := []struct {
		name        string
		form        url.Values
		want        int
		location    string
		invalidated []string
		cleared     int
	}{
		{name: "one dataset", form: url.Values{"dataset": {"tangkap"}}, want: http.StatusSeeOther, location: "/admin/imports?dataset=tangkap&refreshed=1", invalidated: []string{"tangkap"}},
		{name: "every dataset", form: url.Values{}, want: http.StatusSeeOther, location: "/admin/imports?refreshed=1", cleared: 1},
		{name: "unknown dataset", form: url.Values{"dataset": {"entah"}}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCache{}
			router := newRouter(t, &fakeWriter{}, c)

			req := testutil.WithUser(testutil.NewFormRequest("/cache/refresh", tt.form), testutil.OperatorUser())
			rec := serve(router, req)

			testutil.AssertStatus(t, rec, tt.want)
			if loc := rec.Header().Get("Location"); loc != tt.location {
				t.Errorf("Location: got %q, want %q", loc, tt.location)
			}
			if diff := cmp.Diff(tt.invalidated, c.invalidated); diff != "" {
				t.Errorf("invalidated mismatch (-want +got):\n%s", diff)
			}
			if c.cleared != tt.cleared {
				t.Errorf("InvalidateAll calls: got %d, want %d", c.cleared, tt.cleared)
			}
		})
	}
}

func TestHandleRefreshCache_RequiresImportRole(t *testing.T) {
	c := &fakeCache{}
	router := newRouter(t, &fakeWriter{}, c)

	rec := serve(router, testutil.NewFormRequest("/cache/refresh", url.Values{}))

	if rec.Code == http.StatusSeeOther && rec.Header().Get("Location") == "/admin/imports?refreshed=1" {
		t.Error("anonymous request refreshed the cache")
	}
	if c.cleared != 0 {
		t.Errorf("InvalidateAll calls: got %d, want 0", c.cleared)
	}
}

func TestServeIndex_ReportsCacheState(t *testing.T) {
	c := &fakeCache{cached: map[string]bool{"tangkap": true}}
	router := newRouter(t, &fakeWriter{}, c)

	serve(router, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/", nil), testutil.OperatorUser()))

	if diff := cmp.Diff([]string{"tangkap"}, c.asked); diff != "" {
		t.Errorf("cache lookups mismatch (-want +got):\n%s", diff)
	}
}
