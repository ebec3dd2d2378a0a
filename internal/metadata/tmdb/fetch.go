package tmdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/ryanbradynd05/go-tmdb"
)

// SeriesDetail returns the series record in language.
func (s *Source) SeriesDetail(ctx context.Context, id int, language string) (*metadata.Series, error) {
	language = s.lang(language)
	key := fmt.Sprintf("series:%d:%s", id, language)
	if cached, ok := s.cached(key); ok {
		if series, ok := cached.(*metadata.Series); ok {
			return series, nil
		}
	}

	show, err := s.tvInfo(ctx, id, language)
	if err != nil {
		return nil, err
	}

	series := tvToSeries(show)
	if show.Translations != nil {
		s.store(fmt.Sprintf("translations:%d", id), translationsOf(show.Translations))
	}

	s.store(key, series)
	return series, nil
}

// SeriesExternalID returns the IMDb id TMDB links the series to.
func (s *Source) SeriesExternalID(ctx context.Context, id int) (string, error) {
	key := fmt.Sprintf("imdb:%d", id)
	if cached, ok := s.cached(key); ok {
		if imdbID, ok := cached.(string); ok {
			return imdbID, nil
		}
	}

	show, err := s.tvInfo(ctx, id, s.language)
	if err != nil {
		return "", err
	}
	if show.ExternalIDs == nil || strings.TrimSpace(show.ExternalIDs.ImdbID) == "" {
		return "", notFound("series %d has no imdb id", id)
	}

	imdbID := strings.TrimSpace(show.ExternalIDs.ImdbID)
	s.store(key, imdbID)
	return imdbID, nil
}

// Recommendations returns related series.
func (s *Source) Recommendations(ctx context.Context, id int, language string) ([]metadata.Recommendation, error) {
	language = s.lang(language)
	key := fmt.Sprintf("recommendations:%d:%s", id, language)
	if cached, ok := s.cached(key); ok {
		if recs, ok := cached.([]metadata.Recommendation); ok {
			return recs, nil
		}
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	result, err := s.client.GetTvRecommendations(id, map[string]string{"language": language})
	if err != nil {
		return nil, mapError(err)
	}

	out := []metadata.Recommendation{}
	if result != nil {
		for _, r := range result.Results {
			out = append(out, metadata.Recommendation{
				ID:           r.ID,
				Name:         r.Name,
				PosterPath:   r.PosterPath,
				FirstAirDate: r.FirstAirDate,
				VoteAverage:  float64(r.VoteAverage),
			})
		}
	}
	s.store(key, out)
	return out, nil
}

// Translations returns every translation TMDB has for the series.
func (s *Source) Translations(ctx context.Context, id int) ([]metadata.Translation, error) {
	key := fmt.Sprintf("translations:%d", id)
	if cached, ok := s.cached(key); ok {
		if out, ok := cached.([]metadata.Translation); ok {
			return out, nil
		}
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	result, err := s.client.GetTvTranslations(id)
	if err != nil {
		return nil, mapError(err)
	}
	if result == nil {
		return nil, notFound("series %d has no translations", id)
	}

	out := translationsOf(result)
	s.store(key, out)
	return out, nil
}

// SeasonDetail returns the season listing.
func (s *Source) SeasonDetail(ctx context.Context, id, season int, language string) (*metadata.Season, error) {
	language = s.lang(language)
	key := fmt.Sprintf("season:%d:%d:%s", id, season, language)
	if cached, ok := s.cached(key); ok {
		if out, ok := cached.(*metadata.Season); ok {
			return out, nil
		}
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	result, err := s.client.GetTvSeasonInfo(id, season, map[string]string{"language": language})
	if err != nil {
		return nil, mapError(err)
	}
	if result == nil {
		return nil, notFound("season %d of series %d not found", season, id)
	}

	out := &metadata.Season{
		ID:           int(result.ID),
		SeasonNumber: int(result.SeasonNumber),
		Name:         result.Name,
		Overview:     result.Overview,
		AirDate:      result.AirDate,
		Episodes:     make([]metadata.EpisodeSummary, 0, len(result.Episodes)),
	}
	for _, ep := range result.Episodes {
		out.Episodes = append(out.Episodes, metadata.EpisodeSummary{
			Number: int(ep.EpisodeNumber),
			Name:   ep.Name,
		})
	}

	s.store(key, out)
	return out, nil
}

func (s *Source) tvInfo(ctx context.Context, id int, language string) (*tmdb.TV, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	show, err := s.client.GetTvInfo(id, map[string]string{
		"language":           language,
		"append_to_response": "external_ids,translations",
	})
	if err != nil {
		return nil, mapError(err)
	}
	if show == nil || show.ID == 0 {
		return nil, notFound("series %d not found", id)
	}
	return show, nil
}

func translationsOf(t *tmdb.TvTranslations) []metadata.Translation {
	out := make([]metadata.Translation, 0, len(t.Translations))
	for _, tr := range t.Translations {
		out = append(out, metadata.Translation{
			Code:        tr.Iso639_1,
			Region:      tr.Iso3166_1,
			Name:        tr.Name,
			EnglishName: tr.EnglishName,
			Title:       tr.Data.Name,
			Overview:    tr.Data.Overview,
		})
	}
	return out
}

func tvToSeries(show *tmdb.TV) *metadata.Series {
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}

	return &metadata.Series{
		ID:               show.ID,
		Name:             show.Name,
		OriginalName:     show.OriginalName,
		OriginalLanguage: show.OriginalLanguage,
		Overview:         show.Overview,
		BackdropPath:     show.BackdropPath,
		PosterPath:       show.PosterPath,
		FirstAirDate:     show.FirstAirDate,
		EpisodeRunTime:   append([]int(nil), show.EpisodeRunTime...),
		Genres:           genres,
		VoteAverage:      float64(show.VoteAverage),
		NumberOfSeasons:  int(show.NumberOfSeasons),
	}
}
