// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for one event category.
const (
	ModeAll = "all" // MongoDB and zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether s is a recognised destination.
func ValidMode(s string) bool {
	switch s {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config picks the destination per category.
type Config struct {
	// Auth covers sign-in, sign-out and password changes.
	Auth string
	// Data covers imports, batch deletes, published exports and inbox deletes.
	Data string
}

// Recorder is the narrow interface the store satisfies.
type Recorder interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to MongoDB and to structured logs.
// A nil *Logger is a no-op so handlers and tests can omit it.
type Logger struct {
	store  Recorder
	zapLog *zap.Logger
	config Config
}

// New creates an audit Logger.
func New(store Recorder, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.ActorEmail != "" {
		fields = append(fields, zap.String("actor_email", event.ActorEmail))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to the category's configured destination.
// Storage failures are logged, never returned.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryData:
		setting = l.config.Data
	}
	if setting == "" {
		setting = ModeAll
	}
	if setting == ModeOff {
		return
	}

	if setting == ModeAll || setting == ModeLog {
		l.logToZap(event)
	}
	if setting == ModeAll || setting == ModeDB {
		// The request may already be finished; the write should still land.
		if err := l.store.Log(context.WithoutCancel(ctx), event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

// base fills request context and, when signed in, the acting user.
func base(r *http.Request, category, eventType string) audit.Event {
	e := audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
	if u, ok := auth.CurrentUser(r); ok {
		if id, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			e.ActorID = &id
		}
		e.ActorEmail = u.Email
	}
	return e
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in by userID.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginSuccess)
	e.ActorID = &userID
	e.ActorEmail = email
	l.Log(ctx, e)
}

// LoginFailed logs a rejected password for email. The account may not exist.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedWrongPassword)
	e.Success = false
	e.FailureReason = "wrong email or password"
	e.Details = map[string]string{"attempted_email": email}
	l.Log(ctx, e)
}

// LoginRateLimited logs a sign-in refused by the limiter.
func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, email string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginFailedRateLimit)
	e.Success = false
	e.FailureReason = "rate limited"
	e.Details = map[string]string{"attempted_email": email}
	l.Log(ctx, e)
}

// Logout logs a sign-out. Call it before the session is cleared.
func (l *Logger) Logout(ctx context.Context, r *http.Request) {
	l.Log(ctx, base(r, audit.CategoryAuth, audit.EventLogout))
}

// PasswordChanged logs a user changing their own password.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request) {
	l.Log(ctx, base(r, audit.CategoryAuth, audit.EventPasswordChanged))
}

// --- Data Events ---

// DatasetImported logs an upload written as batch. replace marks an upload
// that removed every earlier row of the dataset.
func (l *Logger) DatasetImported(ctx context.Context, r *http.Request, dataset, batch, source string, rows int, replace bool) {
	eventType := audit.EventDatasetImported
	if replace {
		eventType = audit.EventDatasetReplaced
	}
	e := base(r, audit.CategoryData, eventType)
	e.Details = map[string]string{
		"dataset": dataset,
		"batch":   batch,
		"file":    source,
		"rows":    strconv.Itoa(rows),
	}
	l.Log(ctx, e)
}

// BatchDeleted logs the removal of one import batch.
func (l *Logger) BatchDeleted(ctx context.Context, r *http.Request, dataset, batch string, rows int64) {
	e := base(r, audit.CategoryData, audit.EventBatchDeleted)
	e.Details = map[string]string{
		"dataset": dataset,
		"batch":   batch,
		"rows":    strconv.FormatInt(rows, 10),
	}
	l.Log(ctx, e)
}

// ExportPublished logs a chart export written to the export store.
func (l *Logger) ExportPublished(ctx context.Context, r *http.Request, chartID, key string) {
	e := base(r, audit.CategoryData, audit.EventExportPublished)
	e.Details = map[string]string{
		"chart": chartID,
		"key":   key,
	}
	l.Log(ctx, e)
}

// MessageDeleted logs the deletion of a contact message.
func (l *Logger) MessageDeleted(ctx context.Context, r *http.Request, messageID primitive.ObjectID) {
	e := base(r, audit.CategoryData, audit.EventMessageDeleted)
	e.Details = map[string]string{"message_id": messageID.Hex()}
	l.Log(ctx, e)
}
