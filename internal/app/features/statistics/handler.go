// internal/app/features/statistics/handler.go
package statistics

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/exportstore"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Loader returns the raw rows of several datasets at once.
// *datasetstore.Cache implements it.
type Loader interface {
	LoadMany(ctx context.Context, reqs []datasetstore.Request) (map[string][]stats.Record, error)
}

// Handler serves the public statistics pages, their JSON data and exports.
type Handler struct {
	Catalog   *chartcatalog.Catalog
	Loader    Loader
	Publisher exportstore.Publisher // nil disables publishing
	Metrics   *metrics.Registry
	Audit     *auditlog.Logger
	Log       *zap.Logger
}

func NewHandler(cat *chartcatalog.Catalog, loader Loader, pub exportstore.Publisher, m *metrics.Registry, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog:   cat,
		Loader:    loader,
		Publisher: pub,
		Metrics:   m,
		Audit:     audit,
		Log:       logger,
	}
}

// requestsFor lists the dataset reads a chart needs, each projected to the
// columns the pipeline uses.
func (h *Handler) requestsFor(ch *chartcatalog.Chart) []datasetstore.Request {
	names := ch.Datasets()
	reqs := make([]datasetstore.Request, 0, len(names))
	for _, name := range names {
		d, err := h.Catalog.Dataset(name)
		if err != nil {
			continue
		}
		reqs = append(reqs, datasetstore.Request{Dataset: name, Columns: d.Projection()})
	}
	return reqs
}

// errLoad marks a failure to read a chart's datasets.
var errLoad = errors.New("statistics: load datasets")

// buildView resolves the chart in the URL, loads its datasets and runs the
// pipeline for the request's query.
func (h *Handler) buildView(r *http.Request) (*chartcatalog.View, error) {
	ch, err := h.Catalog.Chart(chi.URLParam(r, "chart"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Fetch(), h.Log, "chart fetch")
	defer cancel()

	records, err := h.Loader.LoadMany(ctx, h.requestsFor(ch))
	if err != nil {
		h.Log.Error("chart datasets failed to load",
			zap.String("chart", ch.ID),
			zap.Error(err))
		return nil, errors.Join(errLoad, err)
	}

	v := h.Catalog.Build(ch, records, ch.RequestFromQuery(r.URL.Query()))
	for _, s := range ch.Series {
		if rep, ok := v.Drops[s.Key]; ok {
			h.Metrics.ObserveDrops(s.Dataset, rep)
			if n := rep.DroppedCount(); n > 0 {
				h.Log.Debug("rows dropped during normalization",
					zap.String("chart", ch.ID),
					zap.String("series", s.Key),
					zap.Int("dropped", n),
					zap.Any("reasons", rep.Dropped))
			}
		}
	}
	return v, nil
}

// statusFor maps a buildView error onto an HTTP status and a public message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chartcatalog.ErrUnknownChart):
		return http.StatusNotFound, "Grafik tidak ditemukan."
	case errors.Is(err, errLoad):
		return http.StatusBadGateway, "Data statistik tidak dapat dimuat. Silakan coba lagi."
	default:
		return http.StatusInternalServerError, "Terjadi kesalahan."
	}
}
