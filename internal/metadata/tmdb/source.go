// Package tmdb serves series, season, translation and recommendation
// records from The Movie Database.
package tmdb

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/patrickmn/go-cache"
	"github.com/ryanbradynd05/go-tmdb"
	"golang.org/x/time/rate"
)

const providerName = "tmdb"

// TMDBClient is the subset of *tmdb.TMDb used here (kept small for tests)
type TMDBClient interface {
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
	GetTvSeasonInfo(showID, seasonID int, options map[string]string) (*tmdb.TvSeason, error)
	GetTvTranslations(id int) (*tmdb.TvTranslations, error)
	GetTvRecommendations(id int, options map[string]string) (*tmdb.TvRecommendations, error)
}

// Source implements metadata.SeriesSource.
type Source struct {
	client    TMDBClient
	language  string
	cache     *cache.Cache
	cacheFile string
	limiter   *rate.Limiter
}

// Option configures a Source.
type Option func(*Source)

// WithClient replaces the go-tmdb client.
func WithClient(c TMDBClient) Option {
	return func(s *Source) { s.client = c }
}

// WithLanguage sets the fallback language for localized records.
func WithLanguage(lang string) Option {
	return func(s *Source) {
		if lang != "" {
			s.language = lang
		}
	}
}

// WithCache keeps records for ttl. Zero disables caching.
func WithCache(ttl time.Duration) Option {
	return func(s *Source) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = cache.New(ttl, 10*time.Minute)
	}
}

// WithCacheFile persists the cache at path between runs.
func WithCacheFile(path string) Option {
	return func(s *Source) { s.cacheFile = path }
}

// WithRateLimit allows maxRequests per window.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(s *Source) {
		if maxRequests > 0 && window > 0 {
			s.limiter = rate.NewLimiter(rate.Every(window/time.Duration(maxRequests)), maxRequests)
		}
	}
}

func init() {
	gob.Register(&metadata.Series{})
	gob.Register(&metadata.Season{})
	gob.Register([]metadata.Translation{})
	gob.Register([]metadata.Recommendation{})
}

// New creates a TMDB source. apiKey is the v3 API key.
func New(apiKey string, opts ...Option) (*Source, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("tmdb api key is required")
	}

	s := &Source{
		language: "en-US",
		cache:    cache.New(24*time.Hour, 10*time.Minute),
		limiter:  rate.NewLimiter(rate.Every(10*time.Second/38), 38),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = tmdb.Init(tmdb.Config{
			APIKey:   apiKey,
			Proxies:  nil,
			UseProxy: false,
		})
	}

	if s.cache != nil && s.cacheFile != "" {
		if _, err := os.Stat(s.cacheFile); err == nil {
			_ = s.cache.LoadFile(s.cacheFile)
		}
	}

	return s, nil
}

// SaveCache persists the cache to disk
func (s *Source) SaveCache() error {
	if s.cache == nil || s.cacheFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cacheFile), 0755); err != nil {
		return err
	}
	return s.cache.SaveFile(s.cacheFile)
}

func (s *Source) lang(language string) string {
	if language != "" {
		return language
	}
	return s.language
}

func (s *Source) cached(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Source) store(key string, v interface{}) {
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
}

func (s *Source) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		// Wait refuses early when the deadline cannot be met.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeRateLimited,
			Message:  fmt.Sprintf("tmdb: rate limiter: %v", err),
			Retry:    true,
		}
	}
	return nil
}

// mapError maps TMDB errors to provider errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
		}
	case strings.Contains(errStr, "404") || strings.Contains(errStr, "could not be found"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "TMDB: " + err.Error(),
		}
	case strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	case strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  "TMDB error: " + err.Error(),
	}
}

func notFound(format string, args ...interface{}) error {
	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeNotFound,
		Message:  fmt.Sprintf(format, args...),
	}
}
