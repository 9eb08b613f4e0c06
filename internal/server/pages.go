package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index.html", "results.html", "output.html", "error.html"}

type pages struct {
	byName map[string]*template.Template
}

var funcs = template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"rating": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}

func parsePages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.byName[name] = tmpl
	}
	return p, nil
}

// render executes into a buffer first so a template failure still produces
// a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := s.pages.byName[name]
	if !ok {
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render failed",
			slog.String("request_id", requestID(r.Context())),
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type errorPage struct {
	Status    int
	StatusMsg string
	Message   string
	RequestID string
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error.html", errorPage{
		Status:    status,
		StatusMsg: http.StatusText(status),
		Message:   message,
		RequestID: requestID(r.Context()),
	})
}
