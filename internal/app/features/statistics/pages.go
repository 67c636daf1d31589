// internal/app/features/statistics/pages.go
package statistics

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/system/authz"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type indexData struct {
	viewdata.BaseVM
	Charts []chartcatalog.Chart
}

// ServeIndex lists every chart in the catalog.
func (h *Handler) ServeIndex(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "statistics_index", indexData{
		BaseVM: viewdata.NewBaseVM(r, "Statistik", "/"),
		Charts: h.Catalog.Charts,
	})
}

type chartPageData struct {
	viewdata.BaseVM
	View       *chartcatalog.View
	ChartJSON  template.JS
	Query      string
	CanPublish bool
	Error      string
}

// ServeChart renders one chart page with its filters, chart and table.
func (h *Handler) ServeChart(w http.ResponseWriter, r *http.Request) {
	data := chartPageData{
		BaseVM:     viewdata.NewBaseVM(r, "Statistik", "/statistik"),
		CanPublish: h.Publisher != nil && authz.CanPublish(r),
	}

	v, err := h.buildView(r)
	if err != nil {
		status, msg := statusFor(err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		data.Error = msg
		templates.Render(w, r, "statistics_chart", data)
		return
	}

	payload, err := json.Marshal(v.Data)
	if err != nil {
		h.Log.Error("chart payload marshal failed", zap.String("chart", v.Chart.ID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data.Title = v.Chart.Title
	data.View = v
	data.ChartJSON = template.JS(payload)
	data.Query = v.Request.Query().Encode()
	templates.Render(w, r, "statistics_chart", data)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ServeData returns the chart view as JSON:
//
//	{ "chart":{...}, "selection":{...}, "data":{labels,datasets}, "table":{...},
//	  "options":{...}, "empty":false, "canExport":true, ... }
//
// Errors are { "error":"..." } with 404 (unknown chart) or 502 (load failure).
func (h *Handler) ServeData(w http.ResponseWriter, r *http.Request) {
	v, err := h.buildView(r)
	if err != nil {
		status, msg := statusFor(err)
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, v)
}
