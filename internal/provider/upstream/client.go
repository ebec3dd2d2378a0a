// Package upstream is the JSON-over-HTTP client shared by the stream
// source adapters. It applies rate limiting and response caching and maps
// transport failures onto provider errors.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

// Client issues GET requests against one upstream base URL.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Cache
	header     http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit allows calls requests per window with the given burst.
func WithRateLimit(calls int, window time.Duration) Option {
	return func(c *Client) {
		if calls <= 0 || window <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(window/time.Duration(calls)), calls)
	}
}

// WithCache keeps successful response bodies for ttl. A zero ttl disables caching.
func WithCache(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// New creates a client for the named provider rooted at baseURL.
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 4),
		cache:      cache.New(5*time.Minute, 10*time.Minute),
		header:     make(http.Header),
	}
	c.header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root every request path is joined to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches path (relative to the base URL) with query and decodes the
// JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &provider.ProviderError{
			Provider: c.name,
			Code:     provider.CodeInvalidResponse,
			Message:  fmt.Sprintf("%s: decode %s: %v", c.name, path, err),
		}
	}
	return nil
}

// Get fetches path and returns the raw body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.baseURL == "" {
		return nil, &provider.ProviderError{
			Provider: c.name,
			Code:     provider.CodeInvalidRequest,
			Message:  c.name + ": base url not configured",
		}
	}

	target := c.buildURL(path, query)

	if c.cache != nil {
		if cached, found := c.cache.Get(target); found {
			if body, ok := cached.([]byte); ok {
				return body, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &provider.ProviderError{
				Provider: c.name,
				Code:     provider.CodeRateLimited,
				Message:  fmt.Sprintf("%s: rate limiter: %v", c.name, err),
				Retry:    true,
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Provider: c.name,
			Code:     provider.CodeInvalidRequest,
			Message:  fmt.Sprintf("%s: build request: %v", c.name, err),
		}
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.mapError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.mapError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, path)
	}

	if c.cache != nil {
		c.cache.Set(target, body, cache.DefaultExpiration)
	}
	return body, nil
}

func (c *Client) buildURL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// statusError maps an HTTP status onto a provider error
func (c *Client) statusError(resp *http.Response, path string) error {
	msg := fmt.Sprintf("%s: GET %s: %s", c.name, path, resp.Status)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &provider.ProviderError{Provider: c.name, Code: provider.CodeNotFound, Message: msg}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &provider.ProviderError{Provider: c.name, Code: provider.CodeAuthFailed, Message: msg}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &provider.ProviderError{Provider: c.name, Code: provider.CodeRateLimited, Message: msg, Retry: true, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &provider.ProviderError{Provider: c.name, Code: provider.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30}
	default:
		return &provider.ProviderError{Provider: c.name, Code: provider.CodeUnknown, Message: msg}
	}
}

func (c *Client) mapError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return &provider.ProviderError{
		Provider: c.name,
		Code:     provider.CodeUnavailable,
		Message:  fmt.Sprintf("%s: %v", c.name, err),
		Retry:    true,
	}
}
