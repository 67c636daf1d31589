// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	"go.uber.org/zap"
)

// Events is the audit storage the viewer needs. *audit.Store implements it.
type Events interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetFailedLogins(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

// Failed sign-ins from this window are listed above the event table.
const (
	failedLoginWindow = 24 * time.Hour
	failedLoginLimit  = 10
)

type Handler struct {
	Events Events
	Log    *zap.Logger
}

// NewHandler constructs the audit log viewer.
func NewHandler(events Events, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
	}
}
