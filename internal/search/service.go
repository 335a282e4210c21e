// internal/search/service.go
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "webhook-search/internal/common/errors"
	"webhook-search/internal/common/logger"
	"webhook-search/internal/common/metrics"
	"webhook-search/internal/common/observability"
	"webhook-search/internal/common/validation"
	"webhook-search/internal/normalize"
	"webhook-search/internal/webhook"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyQuery is returned for blank input. Callers stay idle; no request is
// made.
var ErrEmptyQuery = errors.New("EMPTY_QUERY")

// Searcher sends a query to the backend and returns its raw JSON body.
type Searcher interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

// Outcome is the result of one successful search.
type Outcome struct {
	Query    string          `json:"query"`
	View     *normalize.View `json:"view"`
	Cached   bool            `json:"cached"`
	Duration time.Duration   `json:"-"`
}

type Service struct {
	searcher  Searcher
	cache     Cache
	validator *validation.Validator
	obs       *observability.Observability
	logger    logger.Logger
	group     singleflight.Group
}

type Option func(*Service)

// WithCache enables result caching. A nil cache disables it.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithValidator checks every query document before it is sent.
func WithValidator(v *validation.Validator) Option {
	return func(s *Service) { s.validator = v }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) {
		if o != nil {
			s.obs = o
		}
	}
}

func NewService(searcher Searcher, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		searcher: searcher,
		obs:      observability.NewNoop(),
		logger:   log.WithFields(map[string]interface{}{"component": "search"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs query through validation, the cache and the webhook. Every
// failure other than ErrEmptyQuery is a *apperrors.StandardError.
func (s *Service) Search(ctx context.Context, query string) (*Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "search", attribute.Int("query.length", len(query)))
	defer span.End()

	if err := s.validate(query); err != nil {
		s.finish(ctx, "invalid", start)
		return nil, err
	}

	key := CacheKey(query)
	if view, ok := s.lookup(ctx, key); ok {
		s.finish(ctx, "cached", start)
		return &Outcome{Query: query, View: view, Cached: true, Duration: time.Since(start)}, nil
	}

	// The shared call outlives any single caller; the webhook timeout bounds it.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), key, query)
	})

	select {
	case <-ctx.Done():
		err := classify(ctx.Err())
		s.finish(ctx, string(err.Code), start)
		return nil, err
	case res := <-ch:
		if res.Err != nil {
			stdErr := apperrors.AsStandardError(res.Err)
			span.RecordError(stdErr)
			s.finish(ctx, string(stdErr.Code), start)
			return nil, stdErr
		}
		view := res.Val.(*normalize.View)
		metrics.ResultsRendered.Observe(float64(len(view.Results)))
		s.finish(ctx, "ok", start)
		return &Outcome{Query: query, View: view, Duration: time.Since(start)}, nil
	}
}

func (s *Service) fetch(ctx context.Context, key, query string) (*normalize.View, error) {
	raw, err := s.searcher.Search(ctx, query)
	if err != nil {
		stdErr := classify(err)
		s.logger.Warn("webhook search failed", map[string]interface{}{
			"errorCode": stdErr.Code,
			"error":     err,
		})
		return nil, stdErr
	}

	view, err := normalize.Parse(raw)
	if err != nil {
		s.logger.Warn("webhook response rejected", map[string]interface{}{
			"error":     err,
			"bodyBytes": len(raw),
		})
		return nil, apperrors.NewResponseDecodeError(err)
	}

	s.logger.Info("search completed", map[string]interface{}{
		"resultCount": len(view.Results),
		"sourceCount": len(view.Answer.Sources),
		"hasAnswer":   view.Answer.HasContent(),
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view); err != nil {
			s.logger.Warn("cache write failed", map[string]interface{}{
				"error": apperrors.NewCacheUnavailableError(err),
			})
		}
	}
	return view, nil
}

func (s *Service) validate(query string) error {
	if s.validator == nil {
		return nil
	}
	result, err := s.validator.Validate(map[string]interface{}{"query": query})
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !result.Valid {
		return apperrors.NewInvalidQueryError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, key string) (*normalize.View, bool) {
	if s.cache == nil {
		return nil, false
	}
	view, found, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("cache read failed", map[string]interface{}{
			"error": apperrors.NewCacheUnavailableError(err),
		})
		return nil, false
	case !found:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return view, true
	}
}

func (s *Service) finish(ctx context.Context, status string, start time.Time) {
	s.obs.RecordSearch(ctx, status, time.Since(start))
}

// classify maps transport and decode failures onto error codes.
func classify(err error) *apperrors.StandardError {
	var statusErr *webhook.StatusError
	var stdErr *apperrors.StandardError
	switch {
	case errors.As(err, &stdErr):
		return stdErr
	case errors.Is(err, webhook.ErrWebhookTimeout), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewWebhookTimeoutError(err)
	case errors.As(err, &statusErr):
		return apperrors.NewWebhookHTTPError(statusErr.Status, err)
	case errors.Is(err, webhook.ErrResponseTooLarge), errors.Is(err, normalize.ErrInvalidResponse):
		return apperrors.NewResponseDecodeError(err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewInternalError(err)
	default:
		return apperrors.NewWebhookUnreachableError(err)
	}
}
