package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"coscribe/pkg/domain"
)

// SerializeStoryboard renders a storyboard as the HTML fragment the editor
// understands: a heading, an optional description paragraph, and a table
// node carrying the scenes as an escaped JSON attribute.
func SerializeStoryboard(title, description string, scenes []domain.Scene) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>", escapeHTML(title))
	if description != "" {
		fmt.Fprintf(&b, "<p>%s</p>", escapeHTML(description))
	}
	data, _ := json.Marshal(scenes)
	fmt.Fprintf(&b, `<div data-type="storyboard-table" data-scenes="%s"></div>`, escapeHTML(string(data)))
	return b.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
