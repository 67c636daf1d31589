// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dkpmalut/lautdata/internal/app/store/users"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/authz"
	"github.com/dkpmalut/lautdata/internal/app/system/ratelimit"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dkpmalut/lautdata/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Users is the account store the login flow needs. *userstore.Store
// implements it.
type Users interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	TouchLogin(ctx context.Context, id primitive.ObjectID) error
	SetPassword(ctx context.Context, id primitive.ObjectID, password string) error
}

type Handler struct {
	Users      Users
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter // nil disables throttling
	Audit      *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users Users, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Audit:      audit,
		Log:        logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	Email     string
	ReturnURL string
}

type passwordFormData struct {
	viewdata.BaseVM
	Error     string
	Notice    string
	MinLength int
}

// defaultDest is where a signed-in user lands without a return URL.
func defaultDest(role string) string {
	if role == auth.RoleAdmin || role == auth.RoleOperator {
		return "/admin/imports"
	}
	return "/statistik"
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")
	if u, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, auth.SafeReturn(ret, defaultDest(u.Role)), http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Masuk", "/"),
		ReturnURL: ret,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	email := userstore.NormalizeEmail(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	ret := strings.TrimSpace(r.PostFormValue("return"))

	if email == "" || password == "" {
		h.renderFormWithError(w, r, http.StatusBadRequest, "Email dan kata sandi wajib diisi.", email, ret)
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.Log.Warn("login rate limited",
				zap.String("email", email),
				zap.String("ip", ratelimit.ClientIP(r)))
			h.Audit.LoginRateLimited(r.Context(), r, email)
			h.renderFormWithError(w, r, http.StatusTooManyRequests, reason, email, ret)
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login authenticate")
	defer cancel()

	u, err := h.Users.Authenticate(ctx, email, password)
	if errors.Is(err, userstore.ErrInvalidCredentials) {
		h.Log.Info("login failed", zap.String("email", email), zap.String("ip", ratelimit.ClientIP(r)))
		h.Audit.LoginFailed(ctx, r, email)
		h.renderFormWithError(w, r, http.StatusUnauthorized, "Email atau kata sandi salah.", email, ret)
		return
	}
	if err != nil {
		h.Log.Error("login: authenticate", zap.Error(err), zap.String("email", email))
		h.renderFormWithError(w, r, http.StatusInternalServerError, "Terjadi kesalahan. Silakan coba lagi.", email, ret)
		return
	}

	su := auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
		Role:  u.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", email))
		h.renderFormWithError(w, r, http.StatusInternalServerError, "Sesi tidak dapat dibuat. Silakan coba lagi.", email, ret)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	if err := h.Users.TouchLogin(ctx, u.ID); err != nil {
		h.Log.Warn("login: record last login", zap.Error(err), zap.String("user_id", u.ID.Hex()))
	}

	h.Log.Info("login succeeded", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))
	h.Audit.LoginSuccess(ctx, r, u.ID, u.Email)
	http.Redirect(w, r, auth.SafeReturn(ret, defaultDest(u.Role)), http.StatusSeeOther)
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, status int, msg, email, ret string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Masuk", "/"),
		Error:     msg,
		Email:     email,
		ReturnURL: ret,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET/POST /login/password                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeChangePassword shows the change-password form to a signed-in user.
func (h *Handler) ServeChangePassword(w http.ResponseWriter, r *http.Request) {
	data := passwordFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Ganti Kata Sandi", "/"),
		MinLength: userstore.MinPasswordLength,
	}
	if query.Get(r, "changed") == "1" {
		data.Notice = "Kata sandi berhasil diganti."
	}
	templates.Render(w, r, "login_password", data)
}

// HandleChangePassword verifies the current password and stores the new one.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	current := r.PostFormValue("current_password")
	next := r.PostFormValue("new_password")
	confirm := r.PostFormValue("confirm_password")

	if next != confirm {
		h.renderPasswordError(w, r, http.StatusBadRequest, "Konfirmasi kata sandi tidak cocok.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "change password")
	defer cancel()

	// The session copy of the email may be stale; verify against the account.
	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.Log.Warn("change password: account no longer exists", zap.String("user_id", uid.Hex()))
		_ = h.SessionMgr.SignOut(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.Log.Error("change password: load account", zap.Error(err), zap.String("user_id", uid.Hex()))
		h.renderPasswordError(w, r, http.StatusInternalServerError, "Terjadi kesalahan. Silakan coba lagi.")
		return
	}

	if _, err := h.Users.Authenticate(ctx, u.Email, current); err != nil {
		if errors.Is(err, userstore.ErrInvalidCredentials) {
			h.renderPasswordError(w, r, http.StatusUnauthorized, "Kata sandi saat ini salah.")
			return
		}
		h.Log.Error("change password: authenticate", zap.Error(err))
		h.renderPasswordError(w, r, http.StatusInternalServerError, "Terjadi kesalahan. Silakan coba lagi.")
		return
	}

	if err := h.Users.SetPassword(ctx, uid, next); err != nil {
		if errors.Is(err, userstore.ErrWeakPassword) {
			h.renderPasswordError(w, r, http.StatusBadRequest, "Kata sandi baru terlalu pendek.")
			return
		}
		h.Log.Error("change password: store", zap.Error(err), zap.String("user_id", uid.Hex()))
		h.renderPasswordError(w, r, http.StatusInternalServerError, "Kata sandi tidak dapat disimpan.")
		return
	}

	h.Log.Info("password changed", zap.String("user_id", uid.Hex()))
	h.Audit.PasswordChanged(ctx, r)
	http.Redirect(w, r, "/login/password?changed=1", http.StatusSeeOther)
}

func (h *Handler) renderPasswordError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "login_password", passwordFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Ganti Kata Sandi", "/"),
		Error:     msg,
		MinLength: userstore.MinPasswordLength,
	})
}
