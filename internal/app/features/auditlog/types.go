// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	"github.com/dkpmalut/lautdata/internal/app/system/viewdata"
)

// listItem is one audit event row.
type listItem struct {
	ID        string
	Timestamp time.Time
	Category  string
	EventType string
	Label     string
	Actor     string
	IP        string
	Success   bool
	Reason    string
	Details   map[string]string
}

type listData struct {
	viewdata.BaseVM

	Items []listItem
	Error string

	// Failed sign-ins of the last day, newest first.
	FailedLogins []listItem

	// Filters
	Category  string
	EventType string
	StartDate string
	EndDate   string

	Categories []option
	EventTypes []option

	// Pagination
	Total      int64
	RangeStart int
	RangeEnd   int
	HasPrev    bool
	HasNext    bool
	PrevStart  int
	NextStart  int
}

type option struct {
	Value string
	Label string
}

func allCategories() []option {
	return []option{
		{Value: audit.CategoryAuth, Label: "Autentikasi"},
		{Value: audit.CategoryData, Label: "Data"},
	}
}

var eventLabels = map[string]string{
	audit.EventLoginSuccess:             "Masuk",
	audit.EventLoginFailedWrongPassword: "Gagal masuk",
	audit.EventLoginFailedRateLimit:     "Masuk dibatasi",
	audit.EventLogout:                   "Keluar",
	audit.EventPasswordChanged:          "Ganti kata sandi",
	audit.EventDatasetImported:          "Impor data",
	audit.EventDatasetReplaced:          "Impor data (ganti)",
	audit.EventBatchDeleted:             "Hapus batch",
	audit.EventExportPublished:          "Publikasi ekspor",
	audit.EventMessageDeleted:           "Hapus pesan",
}

// eventTypesForCategory lists the event types of one category, or of every
// category when category is empty.
func eventTypesForCategory(category string) []option {
	auth := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventPasswordChanged,
	}
	data := []string{
		audit.EventDatasetImported,
		audit.EventDatasetReplaced,
		audit.EventBatchDeleted,
		audit.EventExportPublished,
		audit.EventMessageDeleted,
	}

	var types []string
	switch category {
	case audit.CategoryAuth:
		types = auth
	case audit.CategoryData:
		types = data
	case "":
		types = append(append(types, auth...), data...)
	}
	out := make([]option, len(types))
	for i, t := range types {
		out[i] = option{Value: t, Label: eventLabel(t)}
	}
	return out
}

func eventLabel(t string) string {
	if l, ok := eventLabels[t]; ok {
		return l
	}
	return t
}
