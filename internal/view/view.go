// Package view renders the browser pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"captionrate/internal/auth"
	"captionrate/internal/caption"
	"captionrate/internal/rating"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Page names accepted by Render.
const (
	PageLanding = "landing"
	PageRate    = "rate"
	PageTable   = "table"
	PageUpload  = "upload"
)

var pages = []string{PageLanding, PageRate, PageTable, PageUpload}

// Data is everything a page template reads. Unused fields stay zero.
type Data struct {
	Title    string
	User     *auth.User
	Tab      rating.Tab
	Alert    string
	Notice   string
	Deck     rating.State
	Examples []caption.Example
	Uploads  []caption.Image
	MaxBytes int64
}

func (d Data) SignedIn() bool { return d.User != nil && d.User.ID != "" }

type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	base, err := template.New("layout").Funcs(Funcs()).ParseFS(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templatesFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes a page into a buffer first so a template error never leaves a half page.
func (r *Renderer) Render(w io.Writer, page string, data Data) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"badge": PriorityBadge,
		"add":   func(a, b int) int { return a + b },
		"mib":   func(n int64) int64 { return n >> 20 },
	}
}

// PriorityBadge maps an example's priority to a badge colour class.
func PriorityBadge(priority int) string {
	switch {
	case priority >= 3:
		return "red"
	case priority == 2:
		return "amber"
	case priority == 1:
		return "green"
	default:
		return "gray"
	}
}
