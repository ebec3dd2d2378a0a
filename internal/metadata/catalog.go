package metadata

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Catalog is the Gateway used in production. TMDB serves the records, OMDb
// the rating and TVDB fills in a missing IMDb cross-reference.
type Catalog struct {
	series   SeriesSource
	ratings  RatingSource
	crossRef CrossReference
	logger   *zap.Logger
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithRatings sets the rating source. Without one Rating reports ErrNotFound.
func WithRatings(r RatingSource) CatalogOption {
	return func(c *Catalog) { c.ratings = r }
}

// WithCrossReference sets the fallback used when the series source has no
// IMDb id.
func WithCrossReference(x CrossReference) CatalogOption {
	return func(c *Catalog) { c.crossRef = x }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCatalog composes the sources into a Gateway.
func NewCatalog(series SeriesSource, opts ...CatalogOption) *Catalog {
	c := &Catalog{series: series, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("catalog")
	return c
}

func (c *Catalog) SeriesDetail(ctx context.Context, id int, language string) (*Series, error) {
	return c.series.SeriesDetail(ctx, id, language)
}

func (c *Catalog) Recommendations(ctx context.Context, id int, language string) ([]Recommendation, error) {
	return c.series.Recommendations(ctx, id, language)
}

func (c *Catalog) SeasonDetail(ctx context.Context, id, season int, language string) (*Season, error) {
	return c.series.SeasonDetail(ctx, id, season, language)
}

func (c *Catalog) Translations(ctx context.Context, id int) ([]Translation, error) {
	return c.series.Translations(ctx, id)
}

// SeriesExternalID returns the IMDb id, asking the cross-reference by title
// when the series source has none.
func (c *Catalog) SeriesExternalID(ctx context.Context, id int) (string, error) {
	imdbID, err := c.series.SeriesExternalID(ctx, id)
	if err == nil && imdbID != "" {
		return imdbID, nil
	}
	if err != nil && !IsNotFound(err) {
		return "", err
	}
	if c.crossRef == nil {
		return "", fmt.Errorf("series %d has no imdb id: %w", id, ErrNotFound)
	}

	series, err := c.series.SeriesDetail(ctx, id, "en-US")
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(series.OriginalName)
	if name == "" || !isASCII(name) {
		name = series.Name
	}

	imdbID, err = c.crossRef.ImdbID(ctx, name, series.Year())
	if err != nil {
		c.logger.Debug("cross reference lookup failed",
			zap.Int("series_id", id),
			zap.String("name", name),
			zap.Error(err))
		if IsNotFound(err) {
			return "", fmt.Errorf("series %d has no imdb id: %w", id, ErrNotFound)
		}
		return "", err
	}
	if imdbID == "" {
		return "", fmt.Errorf("series %d has no imdb id: %w", id, ErrNotFound)
	}
	return imdbID, nil
}

func (c *Catalog) Rating(ctx context.Context, imdbID string) (*Rating, error) {
	if c.ratings == nil {
		return nil, ErrNotFound
	}
	return c.ratings.Rating(ctx, imdbID)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
