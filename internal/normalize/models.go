package normalize

import "strings"

// Meta carries the optional document metadata shown under a result or source.
type Meta struct {
	Type   string `json:"type,omitempty"`
	Author string `json:"author,omitempty"`
	Date   string `json:"date,omitempty"`
}

// Line joins the non-empty parts with a bullet, e.g. "pdf • Jane Doe • 2024".
func (m Meta) Line() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Type, m.Author, m.Date} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}

func (m Meta) IsZero() bool {
	return m.Type == "" && m.Author == "" && m.Date == ""
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Meta    Meta   `json:"meta"`
}

// Href is the link to render; "#" when the backend sent none.
func (r Result) Href() string {
	if r.Link == "" {
		return "#"
	}
	return r.Link
}

// Source is a document cited by the generated answer.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
	Meta  *Meta  `json:"meta,omitempty"`
}

// Citation ties a span of the answer text to one or more references by index.
type Citation struct {
	StartIndex int   `json:"startIndex"`
	EndIndex   int   `json:"endIndex"`
	Sources    []int `json:"sources,omitempty"`
}

// Answer is the generated answer. HTML is pre-rendered by the backend and is
// inserted without escaping; Text is plain text and always escaped.
type Answer struct {
	Text      string     `json:"text,omitempty"`
	HTML      string     `json:"html,omitempty"`
	Sources   []Source   `json:"sources"`
	Citations []Citation `json:"citations,omitempty"`
}

// HasContent reports whether there is anything to show in the answer area.
func (a Answer) HasContent() bool {
	return a.HTML != "" || a.Text != ""
}

// View is the stable per-request model every renderer works from.
type View struct {
	Results []Result `json:"results"`
	Answer  Answer   `json:"answer"`
}

// Empty reports whether the "no results" state applies.
func (v *View) Empty() bool {
	return v == nil || len(v.Results) == 0
}
