// internal/app/features/home/handler.go
package home

import (
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	Catalog *chartcatalog.Catalog
	Log     *zap.Logger
}

func NewHandler(cat *chartcatalog.Catalog, logger *zap.Logger) *Handler {
	return &Handler{
		Catalog: cat,
		Log:     logger,
	}
}

type chartLink struct {
	Title       string
	Description string
	Href        string
}

type pageData struct {
	viewdata.BaseVM
	Charts   []chartLink
	Datasets int
}

func (h *Handler) pageData(r *http.Request) pageData {
	data := pageData{
		BaseVM:   viewdata.NewBaseVM(r, "Beranda", "/"),
		Datasets: len(h.Catalog.Datasets),
	}
	for _, ch := range h.Catalog.Charts {
		data.Charts = append(data.Charts, chartLink{
			Title:       ch.Title,
			Description: ch.Description,
			Href:        "/statistik/" + ch.ID,
		})
	}
	return data
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "home", h.pageData(r))
}
