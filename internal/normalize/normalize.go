// Package normalize turns the webhook's loosely structured, drifting JSON
// into a View. Every logical value is looked up through an ordered list of
// candidate paths and the first present, non-empty value wins.
package normalize

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidResponse is returned when the body is not a JSON object.
var ErrInvalidResponse = errors.New("response is not a JSON object")

// DefaultTitle is used when neither a title nor a link is available.
const DefaultTitle = "Source"

// Candidate paths in priority order. Paths use gjson syntax.
var (
	answerHTMLPaths = []string{"generatedAnswerHtml"}
	answerTextPaths = []string{"generatedAnswer", "answer", "summary.text"}
	resultListPaths = []string{"searchResults", "results"}
	citationPaths   = []string{"citations", "summary.summaryWithMetadata.citationMetadata.citations"}
	referencePaths  = []string{"references", "summary.summaryWithMetadata.references"}

	resultTitlePaths = []string{
		"document.derivedStructData.title",
		"document.structData.title",
		"title",
		"name",
	}
	resultLinkPaths = []string{
		"document.derivedStructData.link",
		"document.structData.ext_uri",
		"document.structData.uri",
		"document.structData.link",
		"uri",
		"link",
		"url",
		"document.derivedStructData.formattedUrl",
	}
	resultSnippetPaths = []string{
		"document.derivedStructData.snippets.0.snippet",
		"document.derivedStructData.extractive_answers.0.content",
		"document.structData.snippet",
		"document.structData.description",
		"snippet",
		"content",
	}

	sourceURIPaths   = []string{"uri", "url", "link"}
	sourceTitlePaths = []string{"title"}

	referenceURIPaths = []string{
		"chunkInfo.documentMetadata.structData.ext_uri",
		"chunkInfo.documentMetadata.uri",
		"chunkInfo.documentMetadata.structData.uri",
		"uri",
	}
	referenceTitlePaths = []string{
		"chunkInfo.documentMetadata.title",
		"chunkInfo.documentMetadata.structData.title",
		"title",
	}
)

// Parse decodes raw and builds the View. It only fails when raw is not a JSON
// object (or a JSON array whose first element is an object, which is how some
// workflow engines wrap a single response item). A null body yields an empty
// View. For duplicate keys the first occurrence wins.
func Parse(raw []byte) (*View, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidResponse
	}
	doc := gjson.ParseBytes(raw)
	if doc.Type == gjson.Null {
		return FromResult(gjson.Parse(`{}`)), nil
	}
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	if !doc.IsObject() {
		return nil, ErrInvalidResponse
	}
	return FromResult(doc), nil
}

// FromResult builds a View from an already parsed document.
func FromResult(doc gjson.Result) *View {
	return &View{
		Results: parseResults(firstNonEmptyArray(doc, resultListPaths...)),
		Answer:  parseAnswer(doc),
	}
}

func parseAnswer(doc gjson.Result) Answer {
	answer := Answer{
		HTML: firstHTML(doc, answerHTMLPaths...),
		Text: firstString(doc, answerTextPaths...),
	}

	if srcs := doc.Get("answerSources"); srcs.IsArray() && len(srcs.Array()) > 0 {
		answer.Sources = parseAnswerSources(srcs)
	} else {
		answer.Sources = parseReferences(firstNonEmptyArray(doc, referencePaths...))
	}
	if answer.Sources == nil {
		answer.Sources = []Source{}
	}

	answer.Citations = parseCitations(firstNonEmptyArray(doc, citationPaths...))
	return answer
}

func parseResults(list []gjson.Result) []Result {
	results := make([]Result, 0, len(list))
	for _, item := range list {
		if !item.IsObject() {
			continue
		}
		r := Result{
			Title:   firstString(item, resultTitlePaths...),
			Link:    firstString(item, resultLinkPaths...),
			Snippet: firstString(item, resultSnippetPaths...),
			Meta:    parseMeta(item, "document.structData", ""),
		}
		if r.Title == "" && r.Link == "" && r.Snippet == "" {
			continue
		}
		if r.Title == "" {
			r.Title = orDefault(r.Link, DefaultTitle)
		}
		results = append(results, r)
	}
	return UniqueResults(results)
}

func parseAnswerSources(list gjson.Result) []Source {
	var sources []Source
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		uri := firstString(item, sourceURIPaths...)
		src := Source{
			Title: orDefault(firstString(item, sourceTitlePaths...), orDefault(uri, DefaultTitle)),
			URI:   uri,
		}
		if m := item.Get("meta"); m.IsObject() {
			if meta := parseMeta(m, ""); !meta.IsZero() {
				src.Meta = &meta
			}
		}
		sources = append(sources, src)
		return true
	})
	return UniqueSources(sources)
}

func parseReferences(list []gjson.Result) []Source {
	var sources []Source
	for _, ref := range list {
		if !ref.IsObject() {
			continue
		}
		uri := firstString(ref, referenceURIPaths...)
		if uri == "" {
			continue
		}
		sources = append(sources, Source{
			Title: orDefault(firstString(ref, referenceTitlePaths...), uri),
			URI:   uri,
		})
	}
	return UniqueSources(sources)
}

func parseCitations(list []gjson.Result) []Citation {
	if len(list) == 0 {
		return nil
	}
	citations := make([]Citation, 0, len(list))
	for _, c := range list {
		if !c.IsObject() {
			continue
		}
		citation := Citation{
			StartIndex: int(c.Get("startIndex").Int()),
			EndIndex:   int(c.Get("endIndex").Int()),
		}
		c.Get("sources").ForEach(func(_, s gjson.Result) bool {
			if s.IsObject() {
				s = s.Get("referenceIndex")
			}
			if s.Exists() {
				citation.Sources = append(citation.Sources, int(s.Int()))
			}
			return true
		})
		citations = append(citations, citation)
	}
	return citations
}

// parseMeta reads type/author/date under each prefix in turn. An empty prefix
// means the item's own top-level fields.
func parseMeta(item gjson.Result, prefixes ...string) Meta {
	field := func(name string) string {
		paths := make([]string, 0, len(prefixes))
		for _, p := range prefixes {
			if p == "" {
				paths = append(paths, name)
			} else {
				paths = append(paths, p+"."+name)
			}
		}
		return firstString(item, paths...)
	}
	return Meta{Type: field("type"), Author: field("author"), Date: field("date")}
}

// firstString returns the first candidate that is a non-blank string or a
// number, trimmed.
func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := doc.Get(p)
		if v.Type != gjson.String && v.Type != gjson.Number {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

// firstHTML is firstString for markup: the value is kept verbatim.
func firstHTML(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := doc.Get(p)
		if v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str
		}
	}
	return ""
}

func firstNonEmptyArray(doc gjson.Result, paths ...string) []gjson.Result {
	for _, p := range paths {
		v := doc.Get(p)
		if !v.IsArray() {
			continue
		}
		if items := v.Array(); len(items) > 0 {
			return items
		}
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
