// internal/app/features/contact/handler.go
package contact

import (
	"context"
	"errors"
	"net/http"
	"strings"

	messagestore "github.com/dkpmalut/lautdata/internal/app/store/messages"
	"github.com/dkpmalut/lautdata/internal/app/system/ratelimit"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// MessageCreator stores contact-form submissions. *messagestore.Store
// implements it.
type MessageCreator interface {
	Create(ctx context.Context, in messagestore.Input) (models.Message, error)
}

type Handler struct {
	Messages MessageCreator
	Limiter  *ratelimit.Limiter // per client address; nil disables throttling
	Log      *zap.Logger
}

func NewHandler(msgs MessageCreator, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		Messages: msgs,
		Limiter:  limiter,
		Log:      logger,
	}
}

type pageData struct {
	viewdata.BaseVM
	Form   messagestore.Input
	Error  string
	Notice string
}

// ServeContact handles GET /contact.
func (h *Handler) ServeContact(w http.ResponseWriter, r *http.Request) {
	data := pageData{BaseVM: viewdata.NewBaseVM(r, "Kontak", "/")}
	if query.Get(r, "sent") == "1" {
		data.Notice = "Terima kasih. Pesan Anda sudah kami terima."
	}
	templates.Render(w, r, "contact", data)
}

// HandleSubmit handles POST /contact.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	in := messagestore.Input{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Subject: r.PostFormValue("subject"),
		Body:    r.PostFormValue("body"),
	}

	// Bots fill the hidden "website" field; accept silently and drop.
	if strings.TrimSpace(r.PostFormValue("website")) != "" {
		h.Log.Info("contact: honeypot triggered", zap.String("ip", ratelimit.ClientIP(r)))
		http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(ratelimit.ClientIP(r)) {
		h.renderForm(w, r, http.StatusTooManyRequests, in, "Terlalu banyak pesan terkirim. Silakan coba lagi nanti.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "contact create")
	defer cancel()

	m, err := h.Messages.Create(ctx, in)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			h.renderForm(w, r, http.StatusBadRequest, in, msg)
			return
		}
		h.Log.Error("contact: store message failed", zap.Error(err))
		h.renderForm(w, r, http.StatusInternalServerError, in, "Pesan tidak dapat disimpan. Silakan coba lagi.")
		return
	}

	h.Log.Info("contact message received", zap.String("id", m.ID.Hex()))
	http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, in messagestore.Input, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "contact", pageData{
		BaseVM: viewdata.NewBaseVM(r, "Kontak", "/"),
		Form:   in,
		Error:  msg,
	})
}

func validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, messagestore.ErrNameRequired):
		return "Nama wajib diisi.", true
	case errors.Is(err, messagestore.ErrEmailInvalid):
		return "Alamat email tidak valid.", true
	case errors.Is(err, messagestore.ErrBodyRequired):
		return "Pesan wajib diisi.", true
	case errors.Is(err, messagestore.ErrFieldTooLong):
		return "Isian terlalu panjang.", true
	}
	return "", false
}
