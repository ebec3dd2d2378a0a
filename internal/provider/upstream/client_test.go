package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func TestGetJSONBuildsURLAndDecodes(t *testing.T) {
	var gotURL string
	var gotAccept string
	c := New("loklok", "https://api.example.test/", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotAccept = req.Header.Get("Accept")
		return jsonResponse(200, `{"name":"pilot","count":3}`), nil
	})))

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	err := c.GetJSON(context.Background(), "tv/episode", url.Values{"id": {"abc"}, "episode": {"0"}}, &out)
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if gotURL != "https://api.example.test/tv/episode?episode=0&id=abc" {
		t.Errorf("request url = %q", gotURL)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if out.Name != "pilot" || out.Count != 3 {
		t.Errorf("decoded = %+v", out)
	}
}

func TestGetCachesSuccessfulBodies(t *testing.T) {
	var calls int32
	c := New("flixhq", "https://api.example.test", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(200, `{"ok":true}`), nil
	})))

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "/info", url.Values{"id": {"tv/1"}}); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	uncached := New("flixhq", "https://api.example.test", WithCache(0), WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(200, `{}`), nil
	})))
	uncached.Get(context.Background(), "/info", nil)
	uncached.Get(context.Background(), "/info", nil)
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("upstream calls = %d, want 3 with caching disabled", got)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  string
		wantRetry bool
	}{
		{http.StatusNotFound, provider.CodeNotFound, false},
		{http.StatusUnauthorized, provider.CodeAuthFailed, false},
		{http.StatusTooManyRequests, provider.CodeRateLimited, true},
		{http.StatusBadGateway, provider.CodeUnavailable, true},
		{http.StatusTeapot, provider.CodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := New("kisskh", "https://kisskh.test", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
				resp := jsonResponse(tt.status, `{}`)
				resp.Header.Set("Retry-After", "7")
				return resp, nil
			})))

			_, err := c.Get(context.Background(), "/api/DramaList/Drama/1", nil)
			var perr *provider.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *provider.ProviderError", err)
			}
			got := struct {
				Code  string
				Retry bool
			}{perr.Code, perr.Retry}
			want := struct {
				Code  string
				Retry bool
			}{tt.wantCode, tt.wantRetry}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("error mismatch (-want +got):\n%s", diff)
			}
			if tt.status == http.StatusTooManyRequests && perr.RetryAfter != 7 {
				t.Errorf("RetryAfter = %d, want 7", perr.RetryAfter)
			}
		})
	}
}

func TestGetJSONInvalidBody(t *testing.T) {
	c := New("loklok", "https://api.example.test", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `<html>`), nil
	})))

	var out map[string]interface{}
	err := c.GetJSON(context.Background(), "/x", nil, &out)
	if !provider.IsCode(err, provider.CodeInvalidResponse) {
		t.Errorf("error = %v, want INVALID_RESPONSE", err)
	}
}

func TestGetWithoutBaseURL(t *testing.T) {
	c := New("loklok", "")
	_, err := c.Get(context.Background(), "/x", nil)
	if !provider.IsCode(err, provider.CodeInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestGetHonoursCancellation(t *testing.T) {
	c := New("flixhq", "https://api.example.test", WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/watch", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	var calls int32
	c := New("loklok", "https://api.example.test", WithRateLimit(0, 0), WithCache(0), WithHTTPClient(newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return jsonResponse(200, `{}`), nil
	})))

	start := time.Now()
	for i := 0; i < 20; i++ {
		c.Get(context.Background(), "/x", nil)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("20 unlimited calls took %v", elapsed)
	}
	if calls != 20 {
		t.Errorf("calls = %d, want 20", calls)
	}
}
