// Package htmlsanitize cleans user-submitted text before it is stored and
// renders it back safely. Contact messages are stored as plain text.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	once   sync.Once
	strict *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	once.Do(func() {
		strict = bluemonday.StrictPolicy()
	})
	return strict
}

// PlainText removes all markup and returns trimmed text with HTML entities
// decoded, suitable for storing form input. Line breaks are kept.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy().Sanitize(s)))
}

// Paragraphs renders stored plain text as HTML, escaping it and turning
// line breaks into <br>.
func Paragraphs(s string) template.HTML {
	esc := template.HTMLEscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(esc, "\n", "<br>"))
}
