// internal/app/features/about/handler.go
package about

import (
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type source struct {
	Title   string
	Metrics []chartcatalog.Metric
}

type pageData struct {
	viewdata.BaseVM
	Sources []source
}

type Handler struct {
	Catalog *chartcatalog.Catalog
	Log     *zap.Logger
}

func NewHandler(cat *chartcatalog.Catalog, logger *zap.Logger) *Handler {
	return &Handler{Catalog: cat, Log: logger}
}

// ServeAbout describes the site and lists every dataset with its metrics.
func (h *Handler) ServeAbout(w http.ResponseWriter, r *http.Request) {
	data := pageData{BaseVM: viewdata.NewBaseVM(r, "Tentang", "/")}
	for _, d := range h.Catalog.Datasets {
		title := d.Title
		if title == "" {
			title = d.Name
		}
		data.Sources = append(data.Sources, source{Title: title, Metrics: d.Metrics})
	}
	templates.Render(w, r, "about", data)
}
