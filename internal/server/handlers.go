package server

import (
	"errors"
	"net/http"

	apperrors "webhook-search/internal/common/errors"
	"webhook-search/internal/common/metrics"
	"webhook-search/internal/normalize"
	"webhook-search/internal/render"
	"webhook-search/internal/search"

	"github.com/gin-gonic/gin"
)

const (
	surfacePage = "page"
	surfaceAPI  = "api"

	htmlContentType = "text/html; charset=utf-8"
)

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchResponse is returned by POST /api/search, on success and failure.
type SearchResponse struct {
	Query   string             `json:"query"`
	State   render.State       `json:"state"`
	Cached  bool               `json:"cached"`
	Results []normalize.Result `json:"results"`
	Answer  *normalize.Answer  `json:"answer,omitempty"`
	HTML    *render.Fragments  `json:"html,omitempty"`
	Error   string             `json:"error,omitempty"`
	Code    string             `json:"code,omitempty"`
}

func (s *Server) Index(c *gin.Context) {
	s.writePage(c, http.StatusOK, render.PageData{State: render.StateIdle})
}

// SearchPage handles the form submit and re-renders the whole page.
func (s *Server) SearchPage(c *gin.Context) {
	query := c.PostForm("query")

	out, err := s.search.Search(c.Request.Context(), query)
	if errors.Is(err, search.ErrEmptyQuery) {
		metrics.SearchRequests.WithLabelValues(surfacePage, "empty").Inc()
		s.writePage(c, http.StatusOK, render.PageData{State: render.StateIdle})
		return
	}
	if err != nil {
		s.searchFailed(c, surfacePage, err)
		s.writePage(c, statusFor(err), render.PageData{State: render.StateError, Query: query})
		return
	}

	metrics.SearchRequests.WithLabelValues(surfacePage, "ok").Inc()
	s.writePage(c, http.StatusOK, render.PageData{
		Query: out.Query,
		State: render.StateFor(out.View, nil),
		View:  out.View,
	})
}

// SearchAPI returns the normalized view plus the rendered fragments as JSON.
func (s *Server) SearchAPI(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SearchRequests.WithLabelValues(surfaceAPI, "bad_request").Inc()
		c.JSON(http.StatusBadRequest, SearchResponse{
			State: render.StateError,
			Error: apperrors.UserMessage,
			Code:  string(apperrors.ErrCodeInvalidQuery),
		})
		return
	}

	out, err := s.search.Search(c.Request.Context(), req.Query)
	if err != nil {
		state := render.StateError
		if errors.Is(err, search.ErrEmptyQuery) {
			state = render.StateIdle
			metrics.SearchRequests.WithLabelValues(surfaceAPI, "empty").Inc()
		} else {
			s.searchFailed(c, surfaceAPI, err)
		}
		frags, _ := s.renderer.Fragments(render.PageData{State: state, Query: req.Query})
		c.JSON(statusFor(err), SearchResponse{
			Query:   req.Query,
			State:   state,
			Results: []normalize.Result{},
			HTML:    frags,
			Error:   apperrors.UserMessage,
			Code:    errorCode(err),
		})
		return
	}

	data := render.PageData{Query: out.Query, State: render.StateFor(out.View, nil), View: out.View}
	frags, err := s.renderer.Fragments(data)
	if err != nil {
		s.renderFailed(c, err)
		return
	}

	metrics.SearchRequests.WithLabelValues(surfaceAPI, "ok").Inc()
	c.JSON(http.StatusOK, SearchResponse{
		Query:   out.Query,
		State:   data.State,
		Cached:  out.Cached,
		Results: out.View.Results,
		Answer:  &out.View.Answer,
		HTML:    frags,
	})
}

func (s *Server) writePage(c *gin.Context, status int, data render.PageData) {
	page, err := s.renderer.Page(data)
	if err != nil {
		s.renderFailed(c, err)
		return
	}
	c.Data(status, htmlContentType, page)
}

func (s *Server) searchFailed(c *gin.Context, surface string, err error) {
	stdErr := apperrors.AsStandardError(err)
	metrics.SearchRequests.WithLabelValues(surface, string(stdErr.Code)).Inc()
	_ = c.Error(err)
	s.logger.Warn("search failed", map[string]interface{}{
		"surface":       surface,
		"errorCode":     stdErr.Code,
		"errorCategory": apperrors.GetErrorCategory(stdErr.Code),
		"details":       stdErr.Details,
		"requestId":     c.GetString("requestId"),
	})
}

func (s *Server) renderFailed(c *gin.Context, err error) {
	s.logger.Error("render failed", map[string]interface{}{
		"error":     err,
		"requestId": c.GetString("requestId"),
	})
	c.String(http.StatusInternalServerError, apperrors.UserMessage)
}
