// internal/webhook/client.go
package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	commonhttp "webhook-search/internal/common/http"
	"webhook-search/internal/common/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxBodyBytes = 5 << 20
	DefaultUserAgent    = "webhook-search/1.0"

	HeaderRequestID = "X-Request-ID"

	// bytes of an error response kept on StatusError
	errorBodyPreview = 512
)

var (
	ErrWebhookTimeout   = errors.New("WEBHOOK_TIMEOUT")
	ErrResponseTooLarge = errors.New("webhook response exceeds size limit")
	ErrNoURL            = errors.New("webhook url is required")
)

// StatusError is returned for any non-2xx answer from the webhook.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned %d", e.Status)
}

// Request is the JSON body sent to the webhook.
type Request struct {
	Query string `json:"query"`
}

// Client posts queries to the search webhook.
type Client struct {
	url          string
	http         *commonhttp.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.url = u }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = commonhttp.Wrap(h) }
}

// WithTimeout sets the per-call deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      DefaultTimeout,
		userAgent:    DefaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.url == "" {
		return nil, ErrNoURL
	}
	if c.http == nil {
		// The context deadline governs the call; no separate client timeout.
		c.http = commonhttp.NewClient(0)
	}
	return c, nil
}

// Search sends {"query": query} and returns the raw response body.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := otel.Tracer("webhook-search/webhook").Start(ctx, "webhook.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("query.length", len(query)),
	)

	start := time.Now()
	body, status, err := c.post(ctx, query, requestID)
	metrics.WebhookDuration.WithLabelValues(statusLabel(status, err)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("response.bytes", len(body)))
	return body, nil
}

func (c *Client) post(ctx context.Context, query, requestID string) ([]byte, int, error) {
	headers := map[string]string{
		"Accept":        "application/json",
		"User-Agent":    c.userAgent,
		HeaderRequestID: requestID,
	}

	resp, err := c.http.PostJSON(ctx, c.url, Request{Query: query}, headers)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, 0, ErrWebhookTimeout
		}
		return nil, 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, resp.StatusCode, ErrWebhookTimeout
		}
		return nil, resp.StatusCode, fmt.Errorf("read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview := body
		if len(preview) > errorBodyPreview {
			preview = preview[:errorBodyPreview]
		}
		return nil, resp.StatusCode, &StatusError{Status: resp.StatusCode, Body: string(preview)}
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, resp.StatusCode, ErrResponseTooLarge
	}
	return body, resp.StatusCode, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func statusLabel(status int, err error) string {
	switch {
	case errors.Is(err, ErrWebhookTimeout):
		return "timeout"
	case status == 0:
		return "error"
	default:
		return strconv.Itoa(status)
	}
}

type requestIDKey struct{}

// WithRequestID stores id on ctx so the webhook call reuses the inbound
// request's id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
