// internal/app/features/statistics/routes.go
package statistics

import (
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeIndex)
	r.Route("/{chart}", func(cr chi.Router) {
		cr.Get("/", h.ServeChart)
		cr.Get("/data.json", h.ServeData)
		cr.Get("/export.csv", h.ServeCSV)
		cr.Get("/export.xlsx", h.ServeXLSX)
		cr.With(sm.RequireRole(auth.RoleAdmin)).Post("/publish", h.HandlePublish)
	})
	return r
}
