// Package server exposes the search page, the JSON search API and the
// health, readiness and metrics endpoints over gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "webhook-search/internal/common/errors"
	"webhook-search/internal/common/logger"
	"webhook-search/internal/render"
	"webhook-search/internal/search"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Searcher runs one search. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Outcome, error)
}

// CheckFunc is a readiness probe, e.g. a Redis ping.
type CheckFunc func(ctx context.Context) error

type Config struct {
	Port            int
	Mode            string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
}

type Server struct {
	cfg      Config
	search   Searcher
	renderer *render.Renderer
	logger   logger.Logger
	checks   map[string]CheckFunc
	engine   *gin.Engine
	http     *http.Server
}

type Option func(*Server)

// WithReadinessCheck adds a named probe to GET /ready.
func WithReadinessCheck(name string, check CheckFunc) Option {
	return func(s *Server) { s.checks[name] = check }
}

func New(cfg Config, searcher Searcher, renderer *render.Renderer, log logger.Logger, opts ...Option) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		search:   searcher,
		renderer: renderer,
		logger:   log.WithFields(map[string]interface{}{"component": "server"}),
		checks:   map[string]CheckFunc{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.setupRouter()
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(s.logger))

	r.GET("/", s.Index)
	r.POST("/search", s.SearchPage)
	r.POST("/api/search", s.SearchAPI)

	r.GET("/health", s.Health)
	r.GET("/ready", s.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}
	s.logger.Info("http server listening", map[string]interface{}{"port": s.cfg.Port})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"checks": failed})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// statusFor maps a search failure to the HTTP status of the response.
func statusFor(err error) int {
	if errors.Is(err, search.ErrEmptyQuery) {
		return http.StatusBadRequest
	}
	switch apperrors.AsStandardError(err).Code {
	case apperrors.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case apperrors.ErrCodeWebhookTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	if errors.Is(err, search.ErrEmptyQuery) {
		return string(apperrors.ErrCodeInvalidQuery)
	}
	return string(apperrors.AsStandardError(err).Code)
}
