// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under /admin/audit. Admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(auth.RoleAdmin))
	r.Get("/", h.ServeList)
	return r
}
