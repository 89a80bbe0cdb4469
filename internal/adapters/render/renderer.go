package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"signupboard/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

var funcs = template.FuncMap{"join": strings.Join}

// Renderer produces platform message text from embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates once.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("render").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: t}, nil
}

// RenderRoster implements domain.RosterRenderer.
func (r *Renderer) RenderRoster(roster domain.Roster) (string, error) {
	return r.execute("roster.tmpl", roster)
}

// RenderField implements domain.FieldRenderer.
func (r *Renderer) RenderField(f domain.BoardField) (string, error) {
	return r.execute("field.tmpl", f)
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
