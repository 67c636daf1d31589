// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present or the session carries a malformed ID, it returns
// "visitor", "", NilObjectID, false.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == auth.RoleAdmin
}

// CanImport reports whether the user may upload or delete dataset batches.
func CanImport(r *http.Request) bool {
	return HasAnyRole(r, auth.RoleAdmin, auth.RoleOperator)
}

// CanPublish reports whether the user may publish exports to the public
// export store.
func CanPublish(r *http.Request) bool {
	return IsAdmin(r)
}

// CanReadMessages reports whether the user may open the contact inbox.
func CanReadMessages(r *http.Request) bool {
	return IsAdmin(r)
}
