// Package omdb serves IMDb ratings through the Open Movie Database.
package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/patrickmn/go-cache"
)

const providerName = "omdb"

// Source implements metadata.RatingSource.
type Source struct {
	client     *omdb.Client
	httpClient *http.Client
	cache      *cache.Cache
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient overrides the HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Source) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithCache keeps ratings for ttl. Zero disables caching.
func WithCache(ttl time.Duration) Option {
	return func(s *Source) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, 10*time.Minute)
	}
}

// New creates an OMDb rating source.
func New(apiKey string, opts ...Option) (*Source, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}

	s := &Source{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache.New(6*time.Hour, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = omdb.NewClient(apiKey, s.httpClient)
	return s, nil
}

// Rating returns the IMDb rating for imdbID.
func (s *Source) Rating(ctx context.Context, imdbID string) (*metadata.Rating, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "rating lookup requires an IMDb ID",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(imdbID); ok {
			if rating, ok := cached.(*metadata.Rating); ok {
				return rating, nil
			}
		}
	}

	result, err := s.client.SearchByImdbID(omdb.QueryData{ImdbID: imdbID})
	if err != nil {
		return nil, mapError(err)
	}

	var rating *metadata.Rating
	switch series := result.(type) {
	case omdb.SeriesResult:
		rating = toRating(series)
	case *omdb.SeriesResult:
		rating = toRating(*series)
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  fmt.Sprintf("%s is not a series", imdbID),
		}
	}

	if s.cache != nil {
		s.cache.Set(imdbID, rating, cache.DefaultExpiration)
	}
	return rating, nil
}

func toRating(result omdb.SeriesResult) *metadata.Rating {
	return &metadata.Rating{
		Value:  float64(omdb.ParseRating(result.ImdbRating)),
		Source: "imdb",
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
		}
	case strings.Contains(lower, "not found"), strings.Contains(lower, "incorrect imdb id"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  msg,
		}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
		}
	}
}
