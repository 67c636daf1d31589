// internal/app/features/imports/routes.go
package imports

import (
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin, auth.RoleOperator))
	r.Get("/", h.ServeIndex)
	r.Post("/", h.HandleUpload)
	r.Post("/cache/refresh", h.HandleRefreshCache)
	r.Post("/{dataset}/{batch}/delete", h.HandleDeleteBatch)
	return r
}
