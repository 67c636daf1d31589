// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

type pageData struct {
	viewdata.BaseVM
	Message string
}

// Handler renders the shared error pages. It has no dependencies.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden handles GET /forbidden.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusForbidden, "Akses ditolak", "Anda tidak memiliki izin untuk membuka halaman ini.", "/")
}

// Unauthorized handles GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusUnauthorized, "Perlu masuk", "Silakan masuk untuk melanjutkan.", "/login")
}

// NotFound is the router's fallback handler.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, "Halaman tidak ditemukan", "Halaman yang Anda cari tidak ada.", "/")
}

func render(w http.ResponseWriter, r *http.Request, status int, title, msg, back string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", pageData{
		BaseVM:  viewdata.NewBaseVM(r, title, back),
		Message: msg,
	})
}
