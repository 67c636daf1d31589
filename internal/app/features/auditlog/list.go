// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	"github.com/dkpmalut/lautdata/internal/app/system/paging"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ServeList handles GET /admin/audit.
// Query params:
//   - category, event_type: exact filters
//   - start_date, end_date: inclusive YYYY-MM-DD bounds (UTC)
//   - start: 1-based offset of the first row shown
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "audit log list")
	defer cancel()

	data := listData{
		BaseVM:     viewdata.NewBaseVM(r, "Log Audit", "/admin/audit"),
		Category:   query.Get(r, "category"),
		EventType:  query.Get(r, "event_type"),
		StartDate:  query.Get(r, "start_date"),
		EndDate:    query.Get(r, "end_date"),
		Categories: allCategories(),
	}
	data.EventTypes = eventTypesForCategory(data.Category)

	start := paging.ParseStart(r)
	filter := audit.QueryFilter{
		Category:  data.Category,
		EventType: data.EventType,
		Limit:     paging.LimitPlusOne(),
		Offset:    int64(start - 1),
	}
	if t, err := time.Parse(dateLayout, data.StartDate); err == nil {
		filter.StartTime = &t
	} else {
		data.StartDate = ""
	}
	if t, err := time.Parse(dateLayout, data.EndDate); err == nil {
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	} else {
		data.EndDate = ""
	}

	events, err := h.Events.Query(ctx, filter)
	if err == nil {
		data.Total, err = h.Events.CountByFilter(ctx, filter)
	}
	if err != nil {
		h.Log.Error("audit log query failed", zap.Error(err))
		data.Error = "Log audit tidak dapat dimuat."
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		templates.Render(w, r, "audit_list", data)
		return
	}

	if len(events) > paging.PageSize {
		events = events[:paging.PageSize]
		data.HasNext = true
	}
	data.HasPrev = start > 1

	data.Items = toItems(events)

	rng := paging.ComputeRange(start, len(data.Items))
	data.RangeStart, data.RangeEnd = rng.Start, rng.End
	data.PrevStart, data.NextStart = rng.PrevStart, rng.NextStart

	// The panel is advisory; the page renders without it.
	failed, err := h.Events.GetFailedLogins(ctx, time.Now().UTC().Add(-failedLoginWindow), failedLoginLimit)
	if err != nil {
		h.Log.Warn("failed login query failed", zap.Error(err))
	}
	data.FailedLogins = toItems(failed)

	templates.Render(w, r, "audit_list", data)
}

func toItems(events []audit.Event) []listItem {
	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:        e.ID.Hex(),
			Timestamp: e.Timestamp,
			Category:  e.Category,
			EventType: e.EventType,
			Label:     eventLabel(e.EventType),
			Actor:     e.ActorEmail,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		}
		if item.Actor == "" && e.ActorID != nil {
			item.Actor = e.ActorID.Hex()
		}
		items = append(items, item)
	}
	return items
}
