// Package peer holds the HTTP clients one service group uses to read data
// owned by another. Lookups are cached in-process for a short TTL and the
// cache is never invalidated; stale reads for up to the TTL are accepted.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/learnhub/learnhub-backend/internal/response"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrUnavailable means the peer could not be reached or answered with a server error.
	ErrUnavailable = errors.New("peer service unavailable")
	// ErrNotFound means the peer answered 404.
	ErrNotFound = errors.New("peer resource not found")
)

// envelope mirrors response.Response with a typed data field.
type envelope[T any] struct {
	Data  T                   `json:"data"`
	Error *response.ErrorBody `json:"error,omitempty"`
}

// Options configures a peer client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func newHTTPClient(opts Options) *resty.Client {
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	return c
}

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return cache.New(ttl, 2*ttl)
}

// do performs a request and decodes the envelope's data field.
func do[T any](ctx context.Context, req *resty.Request, method, path string) (T, error) {
	var env envelope[T]
	var zero T

	if id := response.RequestIDFrom(ctx); id != "" {
		req.SetHeader(response.HeaderRequestID, id)
	}
	resp, err := req.SetContext(ctx).SetResult(&env).Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return zero, ErrNotFound
	case resp.IsError():
		return zero, fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, path, resp.StatusCode())
	}
	return env.Data, nil
}
