package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminUser returns a session user with the admin role.
func AdminUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Admin",
		Email: "admin@test.example",
		Role:  auth.RoleAdmin,
	}
}

// OperatorUser returns a session user with the operator role.
func OperatorUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Operator",
		Email: "operator@test.example",
		Role:  auth.RoleOperator,
	}
}

// WithUser adds a user to the request context, bypassing the session
// middleware.
func WithUser(r *http.Request, u *auth.SessionUser) *http.Request {
	return auth.WithTestUser(r, u)
}

// NewFormRequest builds a url-encoded POST request.
func NewFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// DecodeJSON decodes a recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type: got %q, want application/json", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON body: %v", err)
	}
}

// AssertStatus fails the test when the recorded status differs.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		body, _ := io.ReadAll(rec.Body)
		t.Fatalf("status: got %d, want %d; body: %s", rec.Code, want, body)
	}
}
