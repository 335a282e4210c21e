// Package render writes the search page and its fragments as HTML. Every
// value coming from the webhook is escaped except the answer's pre-rendered
// HTML, which the backend is trusted to produce.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	apperrors "webhook-search/internal/common/errors"
	"webhook-search/internal/normalize"
)

//go:embed templates/*.html
var templateFS embed.FS

const DefaultTitle = "Search"

// State is what the results area currently shows.
type State string

const (
	StateIdle      State = "idle"
	StateResults   State = "results"
	StateNoResults State = "no-results"
	StateError     State = "error"
)

// StateFor picks the state for a finished search.
func StateFor(view *normalize.View, err error) State {
	switch {
	case err != nil:
		return StateError
	case view == nil:
		return StateIdle
	case view.Empty():
		return StateNoResults
	default:
		return StateResults
	}
}

// PageData is the input of every template.
type PageData struct {
	Title string
	Query string
	State State
	View  *normalize.View
}

func (d PageData) ErrorMessage() string { return apperrors.UserMessage }

// ShowAnswer is false while idle and after a failure; the answer area is
// cleared in both cases.
func (d PageData) ShowAnswer() bool {
	return d.View != nil && (d.State == StateResults || d.State == StateNoResults)
}

func (d PageData) Sources() []normalize.Source {
	if !d.ShowAnswer() {
		return nil
	}
	return d.View.Answer.Sources
}

// Fragments are the three page regions rendered on their own, used by the
// JSON API and the workflow worker.
type Fragments struct {
	Results string `json:"results"`
	Answer  string `json:"answer"`
	Sources string `json:"sources"`
}

type Renderer struct {
	tmpl  *template.Template
	title string
}

// New parses the embedded templates. An empty title falls back to DefaultTitle.
func New(title string) (*Renderer, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	funcMap := template.FuncMap{
		// rawHTML marks backend-rendered answer markup as safe.
		"rawHTML": func(s string) template.HTML { return template.HTML(s) },
		"lines":   splitLines,
	}
	tmpl, err := template.New("render").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, title: title}, nil
}

// MustNew is New that panics, for tests and program start-up.
func MustNew(title string) *Renderer {
	r, err := New(title)
	if err != nil {
		panic(err)
	}
	return r
}

// Page renders the full document.
func (r *Renderer) Page(data PageData) ([]byte, error) {
	data = r.prepare(data)
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "page", data); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}

// Fragments renders the results, answer and sources regions separately.
func (r *Renderer) Fragments(data PageData) (*Fragments, error) {
	data = r.prepare(data)
	out := &Fragments{}
	for name, dst := range map[string]*string{
		"results": &out.Results,
		"answer":  &out.Answer,
		"sources": &out.Sources,
	} {
		var buf bytes.Buffer
		if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		*dst = strings.TrimSpace(buf.String())
	}
	return out, nil
}

func (r *Renderer) prepare(data PageData) PageData {
	if data.Title == "" {
		data.Title = r.title
	}
	if data.State == "" {
		data.State = StateFor(data.View, nil)
	}
	if data.View == nil {
		data.View = &normalize.View{}
	}
	return data
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
