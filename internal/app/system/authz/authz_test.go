package authz_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func requestAs(role string) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	return auth.WithTestUser(req, &auth.SessionUser{
		ID:   primitive.NewObjectID().Hex(),
		Name: "Test " + role,
		Role: role,
	})
}

func TestUserCtx_Visitor(t *testing.T) {
	role, name, id, ok := authz.UserCtx(httptest.NewRequest("GET", "/", nil))
	if ok || role != "visitor" || name != "" || !id.IsZero() {
		t.Errorf("UserCtx: got (%q, %q, %v, %v)", role, name, id, ok)
	}
}

func TestUserCtx_MalformedIDFailsClosed(t *testing.T) {
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: "nope", Role: "admin"})
	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("UserCtx accepted a malformed user ID")
	}
	if authz.IsAdmin(req) {
		t.Error("IsAdmin true for malformed user ID")
	}
}

func TestUserCtx_LowercasesRole(t *testing.T) {
	role, _, _, ok := authz.UserCtx(requestAs("ADMIN"))
	if !ok || role != "admin" {
		t.Errorf("UserCtx role: got %q (ok=%v)", role, ok)
	}
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		role        string
		canImport   bool
		publish     bool
		readMessage bool
	}{
		{auth.RoleAdmin, true, true, true},
		{auth.RoleOperator, true, false, false},
		{"guest", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			r := requestAs(tt.role)
			if got := authz.CanImport(r); got != tt.canImport {
				t.Errorf("CanImport: got %v, want %v", got, tt.canImport)
			}
			if got := authz.CanPublish(r); got != tt.publish {
				t.Errorf("CanPublish: got %v, want %v", got, tt.publish)
			}
			if got := authz.CanReadMessages(r); got != tt.readMessage {
				t.Errorf("CanReadMessages: got %v, want %v", got, tt.readMessage)
			}
		})
	}
}

func TestHasAnyRoleAndRole(t *testing.T) {
	r := requestAs(auth.RoleOperator)
	if !authz.HasAnyRole(r, " Admin ", "OPERATOR") {
		t.Error("HasAnyRole: want true")
	}
	if authz.HasAnyRole(httptest.NewRequest("GET", "/", nil), "admin") {
		t.Error("HasAnyRole for visitor: want false")
	}
	if role, ok := authz.Role(r); !ok || role != auth.RoleOperator {
		t.Errorf("Role: got %q (ok=%v)", role, ok)
	}
}
