// internal/app/features/messages/routes.go
package messages

import (
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin))
	r.Get("/", h.ServeList)
	r.Post("/{id}/read", h.HandleMarkRead)
	r.Post("/{id}/delete", h.HandleDelete)
	return r
}
