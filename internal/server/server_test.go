package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"webhook-search/internal/common/logger"
	"webhook-search/internal/render"
	"webhook-search/internal/search"
	"webhook-search/internal/webhook"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type backend struct {
	hits      int32
	requestID atomic.Value
}

// newTestServer wires a real service and webhook client against an httptest
// backend driven by handler.
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Server, *backend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.hits, 1)
		b.requestID.Store(r.Header.Get(webhook.HeaderRequestID))
		handler(w, r)
	}))
	t.Cleanup(upstream.Close)

	client, err := webhook.NewClient(
		webhook.WithBaseURL(upstream.URL),
		webhook.WithHTTPClient(upstream.Client()),
		webhook.WithTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	svc := search.NewService(client, log)
	return New(Config{Mode: gin.TestMode}, svc, render.MustNew("Test search"), log, opts...), b
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(s *Server, query string) *httptest.ResponseRecorder {
	form := url.Values{"query": {query}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(s, req)
}

func postAPI(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(s, req)
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

const backendBody = `{
	"generatedAnswer": "Solar is <great>",
	"answerSources": [{"title": "Guide", "uri": "https://guide"}],
	"searchResults": [
		{"title": "One", "link": "https://one", "snippet": "first"},
		{"title": "One again", "link": "https://one"},
		{"title": "<i>Two</i>", "link": "https://two"}
	]
}`

// ==========================
// Page Tests
// ==========================

func TestIndex(t *testing.T) {
	s, b := newTestServer(t, jsonBody(backendBody))

	rec := do(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc := document(t, rec)
	assert.Equal(t, "Test search", doc.Find("title").Text())
	assert.Equal(t, 1, doc.Find("form[action='/search'] input[name=query]").Length())
	assert.Equal(t, "idle", doc.Find("main").AttrOr("data-state", ""))
	assert.Zero(t, atomic.LoadInt32(&b.hits))
}

func TestSearchPage_Results(t *testing.T) {
	s, _ := newTestServer(t, jsonBody(backendBody))

	rec := postForm(s, "solar")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	titles := doc.Find("#results article.result h3 a").Map(func(_ int, sel *goquery.Selection) string {
		return sel.Text()
	})
	assert.Equal(t, []string{"One", "<i>Two</i>"}, titles)
	assert.Equal(t, 0, doc.Find("#results i").Length(), "titles must be escaped")
	assert.Equal(t, "Solar is <great>", doc.Find("#answer p").Text())
	assert.Equal(t, "Guide", doc.Find("#sources-list a").Text())
	assert.Equal(t, "solar", doc.Find("input[name=query]").AttrOr("value", ""))
}

func TestSearchPage_NoResults(t *testing.T) {
	s, _ := newTestServer(t, jsonBody(`{"results": []}`))

	rec := postForm(s, "nothing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No results found.", document(t, rec).Find("#results p.muted").Text())
}

func TestSearchPage_EmptyQuery(t *testing.T) {
	s, b := newTestServer(t, jsonBody(backendBody))

	rec := postForm(s, "   ")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", document(t, rec).Find("main").AttrOr("data-state", ""))
	assert.Zero(t, atomic.LoadInt32(&b.hits))
}

func TestSearchPage_Timeout(t *testing.T) {
	s, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	rec := postForm(s, "slow query")
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "Something went wrong. Please try again.", doc.Find("#results p.error").Text())
	assert.Equal(t, "error", doc.Find("main").AttrOr("data-state", ""))

	input := doc.Find("input[name=query]")
	_, disabled := input.Attr("disabled")
	assert.False(t, disabled)
	assert.Equal(t, "slow query", input.AttrOr("value", ""))
}

func TestSearchPage_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not json", jsonBody("<html>proxy error</html>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.handler)
			rec := postForm(s, "q")
			assert.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, "Something went wrong. Please try again.", document(t, rec).Find("p.error").Text())
		})
	}
}

// ==========================
// API Tests
// ==========================

func TestSearchAPI_Success(t *testing.T) {
	s, _ := newTestServer(t, jsonBody(backendBody))

	rec := postAPI(s, `{"query": "solar"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "solar", resp.Query)
	assert.Equal(t, render.StateResults, resp.State)
	assert.Len(t, resp.Results, 2)
	require.NotNil(t, resp.Answer)
	assert.Equal(t, "Solar is <great>", resp.Answer.Text)
	require.NotNil(t, resp.HTML)
	assert.Contains(t, resp.HTML.Answer, "Solar is &lt;great&gt;")
	assert.Equal(t, 2, strings.Count(resp.HTML.Results, `<article class="result">`))
	assert.Contains(t, resp.HTML.Sources, "https://guide")
	assert.Empty(t, resp.Error)
}

func TestSearchAPI_BadRequests(t *testing.T) {
	s, b := newTestServer(t, jsonBody(backendBody))

	for name, body := range map[string]string{
		"malformed": `{"query":`,
		"empty":     `{"query": "  "}`,
		"missing":   `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postAPI(s, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp SearchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_QUERY", resp.Code)
			assert.Equal(t, "Something went wrong. Please try again.", resp.Error)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&b.hits))
}

func TestSearchAPI_UpstreamError(t *testing.T) {
	s, b := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := postAPI(s, `{"query": "q"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "WEBHOOK_HTTP_ERROR", resp.Code)
	assert.Equal(t, render.StateError, resp.State)
	require.NotNil(t, resp.HTML)
	assert.Contains(t, resp.HTML.Results, "Something went wrong. Please try again.")
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.hits), "no retry")
}

func TestRequestIDPropagation(t *testing.T) {
	s, b := newTestServer(t, jsonBody(`{}`))

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderRequestID, "abc-123")
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(webhook.HeaderRequestID))
	assert.Equal(t, "abc-123", b.requestID.Load())

	rec = postAPI(s, `{"query":"q"}`)
	assert.NotEmpty(t, rec.Header().Get(webhook.HeaderRequestID))
	assert.Equal(t, rec.Header().Get(webhook.HeaderRequestID), b.requestID.Load())
}

// ==========================
// Operational Endpoint Tests
// ==========================

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, jsonBody(`{}`))
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("redis ping failed") }

	s, _ := newTestServer(t, jsonBody(`{}`), WithReadinessCheck("redis", ok))
	rec := do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s, _ = newTestServer(t, jsonBody(`{}`), WithReadinessCheck("redis", failing))
	rec = do(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis ping failed")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, jsonBody(backendBody))
	_ = postAPI(s, `{"query": "metrics"}`)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_requests_total")
	assert.Contains(t, rec.Body.String(), "webhook_request_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(search.ErrEmptyQuery))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
