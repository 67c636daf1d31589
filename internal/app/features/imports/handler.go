// internal/app/features/imports/handler.go
package imports

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dkpmalut/lautdata/internal/app/features/imports/tabular"
	"github.com/dkpmalut/lautdata/internal/app/stats"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/authz"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Writer is the dataset storage the importer needs. *datasetstore.Store
// implements it.
type Writer interface {
	Insert(ctx context.Context, dataset string, records []stats.Record, source string) (string, error)
	Replace(ctx context.Context, dataset string, records []stats.Record, source string) (string, error)
	DeleteBatch(ctx context.Context, dataset, batch string) (int64, error)
	Batches(ctx context.Context, dataset string) ([]datasetstore.Batch, error)
	Count(ctx context.Context, dataset string) (int64, error)
}

// Invalidator drops cached rows. *datasetstore.Cache implements it.
type Invalidator interface {
	Invalidate(dataset string)
	InvalidateAll()
	Cached(dataset string) bool
}

const (
	modeAppend  = "append"
	modeReplace = "replace"
)

// Handler serves the admin import console.
type Handler struct {
	Catalog *chartcatalog.Catalog
	Store   Writer
	Cache   Invalidator // nil when nothing is cached
	Metrics *metrics.Registry
	Audit   *auditlog.Logger
	Log     *zap.Logger
}

func NewHandler(cat *chartcatalog.Catalog, store Writer, cache Invalidator, m *metrics.Registry, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog: cat,
		Store:   store,
		Cache:   cache,
		Metrics: m,
		Audit:   audit,
		Log:     logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type datasetSummary struct {
	Name     string
	Title    string
	Required []string
	Rows     int64
	Batches  []datasetstore.Batch
	Failed   bool
	Cached   bool
}

type pageData struct {
	viewdata.BaseVM
	Datasets []datasetSummary
	Selected string
	Mode     string
	MaxMB    int64
	Error    template.HTML
	Notice   string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /admin/imports                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r)
	data.Notice = noticeFromQuery(r)
	templates.Render(w, r, "imports", data)
}

// pageData loads row counts and import history for every dataset. A dataset
// whose summary cannot be read is shown as failed instead of failing the page.
func (h *Handler) pageData(r *http.Request) pageData {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "import summaries")
	defer cancel()

	names := h.Catalog.DatasetNames()
	summaries := make([]datasetSummary, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range names {
		d, err := h.Catalog.Dataset(name)
		if err != nil {
			continue
		}
		summaries[i] = datasetSummary{Name: d.Name, Title: d.Title, Required: d.Required()}
		if h.Cache != nil {
			summaries[i].Cached = h.Cache.Cached(name)
		}
		g.Go(func() error {
			s := &summaries[i]
			n, err := h.Store.Count(gctx, name)
			if err == nil {
				s.Rows = n
				s.Batches, err = h.Store.Batches(gctx, name)
			}
			if err != nil {
				s.Failed = true
				h.Log.Warn("import summary failed", zap.String("dataset", name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return pageData{
		BaseVM:   viewdata.NewBaseVM(r, "Impor Data", "/"),
		Datasets: summaries,
		Mode:     modeAppend,
		MaxMB:    tabular.MaxUploadSize >> 20,
	}
}

func noticeFromQuery(r *http.Request) string {
	switch {
	case query.Get(r, "imported") != "":
		return fmt.Sprintf("%s baris diimpor ke %s.", query.Get(r, "rows"), query.Get(r, "imported"))
	case query.Get(r, "deleted") != "":
		return fmt.Sprintf("%s baris dihapus dari %s.", query.Get(r, "rows"), query.Get(r, "deleted"))
	case query.Get(r, "refreshed") != "":
		if ds := query.Get(r, "dataset"); ds != "" {
			return fmt.Sprintf("Grafik akan membaca ulang %s dari basis data.", ds)
		}
		return "Grafik akan membaca ulang semua dataset dari basis data."
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/imports                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, tabular.MaxUploadSize)
	if err := r.ParseMultipartForm(tabular.MaxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.renderError(w, r, http.StatusRequestEntityTooLarge, "", "",
				template.HTML(fmt.Sprintf("Berkas melebihi batas %d MB.", tabular.MaxUploadSize>>20)))
			return
		}
		h.renderError(w, r, http.StatusBadRequest, "", "", "Formulir unggahan tidak valid.")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	name := strings.TrimSpace(r.PostFormValue("dataset"))
	mode := r.PostFormValue("mode")
	if mode == "" {
		mode = modeAppend
	}

	d, err := h.Catalog.Dataset(name)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Pilih dataset yang valid.")
		return
	}
	if mode != modeAppend && mode != modeReplace {
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Mode impor tidak dikenal.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Pilih berkas CSV atau XLSX untuk diunggah.")
		return
	}
	defer file.Close()
	source := filepath.Base(header.Filename)

	res, err := tabular.Parse(source, file, tabular.ParseOptions{})
	switch {
	case errors.Is(err, tabular.ErrUnsupportedFormat):
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Format berkas harus CSV atau XLSX.")
		return
	case errors.Is(err, tabular.ErrNoHeader):
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Berkas kosong atau tidak memiliki baris judul.")
		return
	case errors.Is(err, tabular.ErrTooManyRows):
		h.renderError(w, r, http.StatusBadRequest, name, mode,
			template.HTML(fmt.Sprintf("Berkas melebihi %d baris.", tabular.MaxRows)))
		return
	case err != nil:
		h.Log.Warn("import parse failed", zap.String("dataset", name), zap.String("file", source), zap.Error(err))
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Berkas tidak dapat dibaca.")
		return
	}
	if res.HasErrors() {
		h.renderError(w, r, http.StatusBadRequest, name, mode, tabular.FormatErrors(res.Errors, 0))
		return
	}
	if missing := res.Missing(d.Required()); len(missing) > 0 {
		msg := "Kolom wajib tidak ditemukan: " + strings.Join(missing, ", ") + "."
		h.renderError(w, r, http.StatusBadRequest, name, mode, template.HTML(template.HTMLEscapeString(msg)))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Import(), h.Log, "dataset import")
	defer cancel()

	write := h.Store.Insert
	if mode == modeReplace {
		write = h.Store.Replace
	}
	batch, err := write(ctx, name, res.Records, source)
	if h.Cache != nil {
		// A failed replace may already have cleared rows.
		h.Cache.Invalidate(name)
	}
	if errors.Is(err, datasetstore.ErrNoRecords) {
		h.renderError(w, r, http.StatusBadRequest, name, mode, "Berkas tidak berisi baris data.")
		return
	}
	if err != nil {
		h.Log.Error("import write failed",
			zap.String("dataset", name),
			zap.String("mode", mode),
			zap.Error(err))
		h.renderError(w, r, http.StatusInternalServerError, name, mode, "Data tidak dapat disimpan. Silakan coba lagi.")
		return
	}

	h.Metrics.Imported(name, len(res.Records))
	_, _, uid, _ := authz.UserCtx(r)
	h.Log.Info("dataset imported",
		zap.String("dataset", name),
		zap.String("mode", mode),
		zap.String("batch", batch),
		zap.String("file", source),
		zap.Int("rows", len(res.Records)),
		zap.String("user_id", uid.Hex()))
	h.Audit.DatasetImported(ctx, r, name, batch, source, len(res.Records), mode == modeReplace)

	v := url.Values{"imported": {name}, "rows": {strconv.Itoa(len(res.Records))}}
	http.Redirect(w, r, "/admin/imports?"+v.Encode(), http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, dataset, mode string, msg template.HTML) {
	data := h.pageData(r)
	data.Selected = dataset
	if mode != "" {
		data.Mode = mode
	}
	data.Error = msg
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "imports", data)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/imports/{dataset}/{batch}/delete                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")
	batch := chi.URLParam(r, "batch")
	if _, err := h.Catalog.Dataset(name); err != nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Import(), h.Log, "delete import batch")
	defer cancel()

	n, err := h.Store.DeleteBatch(ctx, name, batch)
	if err != nil {
		h.Log.Error("delete batch failed", zap.String("dataset", name), zap.String("batch", batch), zap.Error(err))
		h.renderError(w, r, http.StatusInternalServerError, name, "", "Batch tidak dapat dihapus. Silakan coba lagi.")
		return
	}
	if n == 0 {
		http.NotFound(w, r)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(name)
	}

	_, _, uid, _ := authz.UserCtx(r)
	h.Log.Info("import batch deleted",
		zap.String("dataset", name),
		zap.String("batch", batch),
		zap.Int64("rows", n),
		zap.String("user_id", uid.Hex()))
	h.Audit.BatchDeleted(ctx, r, name, batch, n)

	v := url.Values{"deleted": {name}, "rows": {strconv.FormatInt(n, 10)}}
	http.Redirect(w, r, "/admin/imports?"+v.Encode(), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /admin/imports/cache/refresh                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRefreshCache drops cached dataset rows so the next chart request
// reads MongoDB again. It makes rows written outside this process, such as
// by lautdatactl, visible without waiting for the cache TTL. A blank
// dataset field clears every dataset.
func (h *Handler) HandleRefreshCache(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("dataset"))
	if name != "" {
		if _, err := h.Catalog.Dataset(name); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if h.Cache != nil {
		if name == "" {
			h.Cache.InvalidateAll()
		} else {
			h.Cache.Invalidate(name)
		}
	}

	_, _, uid, _ := authz.UserCtx(r)
	h.Log.Info("dataset cache refreshed",
		zap.String("dataset", name),
		zap.String("user_id", uid.Hex()))

	v := url.Values{"refreshed": {"1"}}
	if name != "" {
		v.Set("dataset", name)
	}
	http.Redirect(w, r, "/admin/imports?"+v.Encode(), http.StatusSeeOther)
}
