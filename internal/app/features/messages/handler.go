// internal/app/features/messages/handler.go
package messages

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"

	messagestore "github.com/dkpmalut/lautdata/internal/app/store/messages"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/htmlsanitize"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Inbox is the message storage the console needs. *messagestore.Store
// implements it.
type Inbox interface {
	List(ctx context.Context, before, after string, unreadOnly bool) (messagestore.Page, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	CountUnread(ctx context.Context) (int64, error)
}

// Handler serves the admin inbox of contact-form messages.
type Handler struct {
	Inbox Inbox
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(inbox Inbox, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Inbox: inbox, Audit: audit, Log: logger}
}

// messageItem is one message with its body rendered for display.
type messageItem struct {
	models.Message
	BodyHTML template.HTML
}

func toItems(msgs []models.Message) []messageItem {
	items := make([]messageItem, len(msgs))
	for i, m := range msgs {
		items[i] = messageItem{Message: m, BodyHTML: htmlsanitize.Paragraphs(m.Body)}
	}
	return items
}

type pageData struct {
	viewdata.BaseVM
	messagestore.Page
	Items      []messageItem
	Unread     int64
	UnreadOnly bool
	Return     string
	Notice     string
	Error      string
}

const listPath = "/admin/messages"

// ServeList handles GET /admin/messages.
// Query params:
//   - before, after: keyset cursors (message ids)
//   - unread: "1" hides read messages
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list messages")
	defer cancel()

	unreadOnly := query.Get(r, "unread") == "1"
	page, err := h.Inbox.List(ctx, query.Get(r, "before"), query.Get(r, "after"), unreadOnly)
	if err != nil {
		h.Log.Error("list messages failed", zap.Error(err))
		http.Error(w, "Pesan tidak dapat dimuat.", http.StatusInternalServerError)
		return
	}
	unread, err := h.Inbox.CountUnread(ctx)
	if err != nil {
		h.Log.Warn("count unread messages failed", zap.Error(err))
	}

	data := pageData{
		BaseVM:     viewdata.NewBaseVM(r, "Pesan Masuk", "/"),
		Page:       page,
		Items:      toItems(page.Messages),
		Unread:     unread,
		UnreadOnly: unreadOnly,
		Return:     returnPath(r),
	}
	switch query.Get(r, "done") {
	case "read":
		data.Notice = "Pesan ditandai sudah dibaca."
	case "deleted":
		data.Notice = "Pesan dihapus."
	}
	templates.Render(w, r, "messages_list", data)
}

// returnPath is the current list URL without the one-shot notice flag.
func returnPath(r *http.Request) string {
	q := r.URL.Query()
	q.Del("done")
	if len(q) == 0 {
		return listPath
	}
	return listPath + "?" + q.Encode()
}

// HandleMarkRead handles POST /admin/messages/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "read", h.Inbox.MarkRead)
}

// HandleDelete handles POST /admin/messages/{id}/delete.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "deleted", func(ctx context.Context, id primitive.ObjectID) error {
		if err := h.Inbox.Delete(ctx, id); err != nil {
			return err
		}
		h.Audit.MessageDeleted(ctx, r, id)
		return nil
	})
}

// act applies op to the message in the URL and returns to the list the
// form was posted from.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, done string, op func(context.Context, primitive.ObjectID) error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "message "+done)
	defer cancel()

	if err := op(ctx, id); err != nil {
		if errors.Is(err, messagestore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.Log.Error("message action failed", zap.String("action", done), zap.String("id", id.Hex()), zap.Error(err))
		http.Error(w, "Pesan tidak dapat diperbarui.", http.StatusInternalServerError)
		return
	}
	h.Log.Info("message updated", zap.String("action", done), zap.String("id", id.Hex()))

	dest := auth.SafeReturn(r.PostFormValue("return"), listPath)
	sep := "?"
	if strings.Contains(dest, "?") {
		sep = "&"
	}
	http.Redirect(w, r, dest+sep+"done="+done, http.StatusSeeOther)
}
