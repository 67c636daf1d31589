package contact_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/features/contact"
	messagestore "github.com/dkpmalut/lautdata/internal/app/store/messages"
	"github.com/dkpmalut/lautdata/internal/app/system/ratelimit"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	"github.com/dkpmalut/lautdata/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeMessages struct {
	got []messagestore.Input
	err error
}

func (f *fakeMessages) Create(_ context.Context, in messagestore.Input) (models.Message, error) {
	if f.err != nil {
		return models.Message{}, f.err
	}
	if _, err := in.Clean(); err != nil {
		return models.Message{}, err
	}
	f.got = append(f.got, in)
	return models.Message{ID: primitive.NewObjectID()}, nil
}

func validForm() url.Values {
	return url.Values{
		"name":    {"Nurul"},
		"email":   {"nurul@example.org"},
		"subject": {"Data 2023"},
		"body":    {"Apakah data semester II sudah final?"},
	}
}

// serve runs the handler, tolerating the render panic that occurs when no
// template engine is booted.
func serve(h *contact.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	func() {
		defer func() { _ = recover() }()
		h.HandleSubmit(rec, req)
	}()
	return rec
}

func TestHandleSubmit_Success(t *testing.T) {
	msgs := &fakeMessages{}
	h := contact.NewHandler(msgs, nil, zap.NewNop())

	rec := serve(h, testutil.NewFormRequest("/contact", validForm()))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/contact?sent=1" {
		t.Errorf("Location: got %q", loc)
	}
	if len(msgs.got) != 1 || msgs.got[0].Email != "nurul@example.org" {
		t.Errorf("stored: got %+v", msgs.got)
	}
}

func TestHandleSubmit_Errors(t *testing.T) {
	tests := []struct {
		name string
		edit func(url.Values)
		err  error
		want int
	}{
		{name: "missing name", edit: func(v url.Values) { v.Set("name", " ") }, want: http.StatusBadRequest},
		{name: "bad email", edit: func(v url.Values) { v.Set("email", "bukan-email") }, want: http.StatusBadRequest},
		{name: "empty body", edit: func(v url.Values) { v.Set("body", "<b></b>") }, want: http.StatusBadRequest},
		{name: "store failure", err: errors.New("mongo: timeout"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := &fakeMessages{err: tt.err}
			h := contact.NewHandler(msgs, nil, zap.NewNop())
			form := validForm()
			if tt.edit != nil {
				tt.edit(form)
			}
			rec := serve(h, testutil.NewFormRequest("/contact", form))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
			if len(msgs.got) != 0 {
				t.Errorf("message stored despite error: %+v", msgs.got)
			}
		})
	}
}

func TestHandleSubmit_Honeypot(t *testing.T) {
	msgs := &fakeMessages{}
	h := contact.NewHandler(msgs, nil, zap.NewNop())

	form := validForm()
	form.Set("website", "http://spam.example")
	rec := serve(h, testutil.NewFormRequest("/contact", form))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if len(msgs.got) != 0 {
		t.Error("honeypot submission was stored")
	}
}

func TestHandleSubmit_RateLimited(t *testing.T) {
	limiter := ratelimit.New(1, time.Hour)
	defer limiter.Close()

	msgs := &fakeMessages{}
	h := contact.NewHandler(msgs, limiter, zap.NewNop())

	if rec := serve(h, testutil.NewFormRequest("/contact", validForm())); rec.Code != http.StatusSeeOther {
		t.Fatalf("first submit: got %d", rec.Code)
	}
	rec := serve(h, testutil.NewFormRequest("/contact", validForm()))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second submit: got %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if len(msgs.got) != 1 {
		t.Errorf("stored %d messages, want 1", len(msgs.got))
	}
}
