// Package metadata describes the catalog records a resolution needs and
// composes the TMDB, OMDb and TVDB backed sources behind one Gateway.
package metadata

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
)

// ImageBaseURL is the TMDB image host paths are joined to.
const ImageBaseURL = "https://image.tmdb.org/t/p"

// ErrNotFound is returned when a record does not exist upstream.
var ErrNotFound = errors.New("metadata: not found")

// Series is the catalog record for a show.
type Series struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"originalName,omitempty"`
	OriginalLanguage string   `json:"originalLanguage,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	FirstAirDate     string   `json:"firstAirDate,omitempty"`
	BackdropPath     string   `json:"backdropPath,omitempty"`
	PosterPath       string   `json:"posterPath,omitempty"`
	EpisodeRunTime   []int    `json:"episodeRunTime,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	VoteAverage      float64  `json:"voteAverage,omitempty"`
	NumberOfSeasons  int      `json:"numberOfSeasons,omitempty"`
}

// Year returns the first air year, or 0 when unknown.
func (s *Series) Year() int {
	if s == nil || len(s.FirstAirDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(s.FirstAirDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// RunTime returns the first listed episode run time in minutes.
func (s *Series) RunTime() int {
	if s == nil || len(s.EpisodeRunTime) == 0 {
		return 0
	}
	return s.EpisodeRunTime[0]
}

// EpisodeSummary is one entry of a season listing.
type EpisodeSummary struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	AirDate string `json:"airDate,omitempty"`
}

// Season is the catalog record for one season.
type Season struct {
	ID           int              `json:"id"`
	SeasonNumber int              `json:"seasonNumber"`
	Name         string           `json:"name,omitempty"`
	Overview     string           `json:"overview,omitempty"`
	AirDate      string           `json:"airDate,omitempty"`
	Episodes     []EpisodeSummary `json:"episodes"`
}

// EpisodeCount is the catalog's total for the season. A nil season counts 0.
func (s *Season) EpisodeCount() int {
	if s == nil {
		return 0
	}
	return len(s.Episodes)
}

// Episode returns the summary for number, if listed.
func (s *Season) Episode(number int) (EpisodeSummary, bool) {
	if s == nil {
		return EpisodeSummary{}, false
	}
	for _, ep := range s.Episodes {
		if ep.Number == number {
			return ep, true
		}
	}
	return EpisodeSummary{}, false
}

// Translation is the localized title and overview in one language.
type Translation struct {
	Code        string `json:"iso_639_1"`
	Region      string `json:"iso_3166_1,omitempty"`
	Name        string `json:"name,omitempty"`
	EnglishName string `json:"englishName,omitempty"`
	Title       string `json:"title,omitempty"`
	Overview    string `json:"overview,omitempty"`
}

// Rating is a third party star rating on a 0-10 scale.
type Rating struct {
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

// Recommendation is a related series.
type Recommendation struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	PosterPath   string  `json:"posterPath,omitempty"`
	FirstAirDate string  `json:"firstAirDate,omitempty"`
	VoteAverage  float64 `json:"voteAverage,omitempty"`
}

// SeriesSource serves the primary catalog records.
type SeriesSource interface {
	SeriesDetail(ctx context.Context, id int, language string) (*Series, error)
	SeriesExternalID(ctx context.Context, id int) (string, error)
	Recommendations(ctx context.Context, id int, language string) ([]Recommendation, error)
	SeasonDetail(ctx context.Context, id, season int, language string) (*Season, error)
	Translations(ctx context.Context, id int) ([]Translation, error)
}

// RatingSource looks up a rating by IMDb id.
type RatingSource interface {
	Rating(ctx context.Context, imdbID string) (*Rating, error)
}

// CrossReference finds an IMDb id by title when the catalog has none.
type CrossReference interface {
	ImdbID(ctx context.Context, name string, year int) (string, error)
}

// Gateway is everything a resolution reads from the catalog.
type Gateway interface {
	SeriesSource
	RatingSource
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || provider.IsCode(err, provider.CodeNotFound)
}

// ImageURL joins a TMDB image path with a size such as "w780" or "original".
func ImageURL(path, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if size == "" {
		size = "original"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return ImageBaseURL + "/" + size + path
}

// FindTranslation returns the entry for the base language of locale.
func FindTranslation(translations []Translation, locale string) (Translation, bool) {
	base := strings.ToLower(locale)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	for _, t := range translations {
		if strings.EqualFold(t.Code, base) {
			return t, true
		}
	}
	return Translation{}, false
}
