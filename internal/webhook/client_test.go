// internal/webhook/client_test.go
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithBaseURL(server.URL), WithHTTPClient(server.Client())}, opts...)
	c, err := NewClient(opts...)
	require.NoError(t, err)
	return c
}

func TestClient_Search_Success(t *testing.T) {
	var got struct {
		method, contentType, accept, userAgent, requestID string
		body                                              Request
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.contentType = r.Header.Get("Content-Type")
		got.accept = r.Header.Get("Accept")
		got.userAgent = r.Header.Get("User-Agent")
		got.requestID = r.Header.Get(HeaderRequestID)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"answer":"ok"}`)
	}, WithUserAgent("tests/1.0"))

	body, err := c.Search(context.Background(), "solar panels")
	require.NoError(t, err)

	assert.JSONEq(t, `{"answer":"ok"}`, string(body))
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "application/json", got.accept)
	assert.Equal(t, "tests/1.0", got.userAgent)
	assert.Equal(t, "solar panels", got.body.Query)

	_, err = uuid.Parse(got.requestID)
	assert.NoError(t, err, "generated request id should be a uuid")
}

func TestClient_Search_PropagatesRequestID(t *testing.T) {
	var seen string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(HeaderRequestID)
		_, _ = io.WriteString(w, `{}`)
	})

	ctx := WithRequestID(context.Background(), "req-123")
	_, err := c.Search(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "req-123", seen)
}

func TestClient_Search_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "workflow crashed")
	})

	body, err := c.Search(context.Background(), "q")
	assert.Nil(t, body)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "workflow crashed", statusErr.Body)
	assert.EqualError(t, err, "webhook returned 500")
}

func TestClient_Search_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	_, err := c.Search(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrWebhookTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Search_ParentDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Search(ctx, "slow")
	assert.ErrorIs(t, err, ErrWebhookTimeout)
}

func TestClient_Search_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(WithBaseURL(url))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWebhookTimeout)
	assert.Contains(t, err.Error(), "webhook request failed")
}

func TestClient_Search_BodyLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"answer":"`+strings.Repeat("x", 64)+`"}`)
	}, WithMaxBodyBytes(32))

	_, err := c.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestNewClient_Defaults(t *testing.T) {
	_, err := NewClient()
	assert.ErrorIs(t, err, ErrNoURL)

	c, err := NewClient(WithBaseURL("http://example.invalid/hook"), WithTimeout(0), WithUserAgent(""), WithMaxBodyBytes(-1))
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.Equal(t, int64(DefaultMaxBodyBytes), c.maxBodyBytes)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "timeout", statusLabel(0, ErrWebhookTimeout))
	assert.Equal(t, "error", statusLabel(0, errors.New("dial")))
	assert.Equal(t, "502", statusLabel(502, &StatusError{Status: 502}))
	assert.Equal(t, "200", statusLabel(200, nil))
}
