// internal/app/features/imports/tabular/errors.go
package tabular

import (
	"html/template"
	"strconv"
	"strings"
)

// FormatErrors formats row errors for display. If maxShow is <= 0, it
// defaults to 5.
func FormatErrors(errs []RowError, maxShow int) template.HTML {
	var b strings.Builder
	b.WriteString("Berkas berisi kesalahan. Perbaiki lalu unggah ulang.<br><br>")

	if maxShow <= 0 {
		maxShow = 5
	}
	maxShow = min(maxShow, len(errs))

	for _, e := range errs[:maxShow] {
		b.WriteString("• ")
		if e.Line > 0 {
			b.WriteString("Baris ")
			b.WriteString(strconv.Itoa(e.Line))
			b.WriteString(": ")
		}
		b.WriteString(template.HTMLEscapeString(e.Reason))
		b.WriteString("<br>")
	}

	if len(errs) > maxShow {
		b.WriteString("<br>... dan ")
		b.WriteString(strconv.Itoa(len(errs) - maxShow))
		b.WriteString(" kesalahan lain.")
	}
	return template.HTML(b.String())
}
