package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"student-registry/internal/student"
)

//go:embed templates
var templateFiles embed.FS

// pageTemplates holds the parsed HTML pages. html/template escapes all
// interpolated fields, so student-supplied names and emails render
// inert.
var pageTemplates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// indexData feeds the index page.
type indexData struct {
	Students []student.Student
	Flashes  []flashMessage
}

// historyData feeds the change-log page.
type historyData struct {
	Entries []student.ChangeEntry
}

// render executes the named page template. A failure mid-body cannot
// change the status line anymore, so it is only logged.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
	}
}
