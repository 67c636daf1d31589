// internal/app/features/statistics/export.go
package statistics

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/stats/export"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/exportstore"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type format struct {
	ext         string
	contentType string
	write       func(*bytes.Buffer, stats.Table) error
}

var formats = map[string]format{
	FormatCSV: {
		ext:         FormatCSV,
		contentType: export.ContentTypeCSV,
		write:       func(b *bytes.Buffer, t stats.Table) error { return export.WriteCSV(b, t) },
	},
	FormatXLSX: {
		ext:         FormatXLSX,
		contentType: export.ContentTypeXLSX,
		write:       func(b *bytes.Buffer, t stats.Table) error { return export.WriteXLSX(b, t) },
	},
}

// render builds the export body for the request's view. The body is
// buffered so a write failure can still become an error status.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, f format) (*chartcatalog.View, []byte, bool) {
	v, err := h.buildView(r)
	if err != nil {
		status, msg := statusFor(err)
		writeJSON(w, status, errorResponse{Error: msg})
		return nil, nil, false
	}
	if err := export.Check(v.Table, v.AnyActive()); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Tidak ada data untuk diekspor."})
		return nil, nil, false
	}

	var buf bytes.Buffer
	if err := f.write(&buf, v.Table); err != nil {
		h.Log.Error("export render failed",
			zap.String("chart", v.Chart.ID),
			zap.String("format", f.ext),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Ekspor gagal."})
		return nil, nil, false
	}
	return v, buf.Bytes(), true
}

func (h *Handler) serveExport(w http.ResponseWriter, r *http.Request, f format) {
	v, body, ok := h.render(w, r, f)
	if !ok {
		return
	}
	h.Metrics.Export(v.Chart.ID, f.ext)

	filename := export.Filename(v.Chart.Title, f.ext)
	w.Header().Set("Content-Type", f.contentType)
	w.Header().Set("Content-Disposition", contentDisposition(filename))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(body)
}

// contentDisposition builds an attachment header. Names outside ASCII are
// sent in RFC 2231 form so browsers show the real characters.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

// ServeCSV handles GET /statistik/{chart}/export.csv.
func (h *Handler) ServeCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, formats[FormatCSV])
}

// ServeXLSX handles GET /statistik/{chart}/export.xlsx.
func (h *Handler) ServeXLSX(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, r, formats[FormatXLSX])
}

type publishResponse struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Filename string `json:"filename"`
}

// HandlePublish handles POST /statistik/{chart}/publish?format=csv|xlsx.
// The export is written to the configured export store and its public URL
// returned as JSON.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if h.Publisher == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "Penyimpanan ekspor belum dikonfigurasi."})
		return
	}
	name := r.URL.Query().Get("format")
	if name == "" {
		name = FormatCSV
	}
	f, ok := formats[name]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Format tidak dikenal."})
		return
	}

	v, body, ok := h.render(w, r, f)
	if !ok {
		return
	}

	filename := export.Filename(v.Chart.Title, f.ext)
	key := exportstore.Key(v.Chart.ID, filename, time.Now().UTC())

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Export(), h.Log, "export publish")
	defer cancel()

	publicURL, err := h.Publisher.Publish(ctx, key, f.contentType, body)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, exportstore.ErrInvalidKey) {
			status = http.StatusBadRequest
		}
		h.Log.Error("export publish failed",
			zap.String("chart", v.Chart.ID),
			zap.String("key", key),
			zap.Error(err))
		writeJSON(w, status, errorResponse{Error: "Publikasi ekspor gagal."})
		return
	}

	h.Metrics.Export(v.Chart.ID, "publish_"+f.ext)
	h.Log.Info("export published",
		zap.String("chart", v.Chart.ID),
		zap.String("key", key),
		zap.String("url", publicURL))
	h.Audit.ExportPublished(ctx, r, v.Chart.ID, key)
	writeJSON(w, http.StatusCreated, publishResponse{URL: publicURL, Key: key, Filename: filename})
}
