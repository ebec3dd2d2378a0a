package flixhq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
	"go.uber.org/zap"
)

type infoResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Episodes []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Number int    `json:"number"`
		Season int    `json:"season"`
	} `json:"episodes"`
}

type watchResponse struct {
	Sources []struct {
		URL     string         `json:"url"`
		Quality provider.Label `json:"quality"`
		IsM3U8  bool           `json:"isM3U8"`
	} `json:"sources"`
	Subtitles []struct {
		URL  string `json:"url"`
		Lang string `json:"lang"`
	} `json:"subtitles"`
}

type searchResponse struct {
	Results []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Type        string `json:"type"`
		ReleaseDate string `json:"releaseDate"`
	} `json:"results"`
}

// FetchEpisode lists the series, finds the (season, episode) entry and only
// then asks for its stream links. No matching entry, or a failed stream call,
// yields an empty payload that still carries the listing's episode count.
func (p *Provider) FetchEpisode(ctx context.Context, query provider.EpisodeQuery) (*provider.Payload, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if query.NativeID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "flixhq fetch requires a native id",
		}
	}

	info, err := p.info(ctx, query.NativeID)
	if err != nil {
		return nil, err
	}

	payload := &provider.Payload{EpisodeCount: provider.Count(len(info.Episodes))}

	episodeID := ""
	for _, ep := range info.Episodes {
		if ep.Season == query.Season && ep.Number == query.Episode {
			episodeID = ep.ID
			break
		}
	}
	if episodeID == "" {
		return payload, nil
	}

	mediaID := info.ID
	if mediaID == "" {
		mediaID = query.NativeID
	}

	params := url.Values{}
	params.Set("episodeId", episodeID)
	params.Set("mediaId", mediaID)

	var watch watchResponse
	if err := p.client.GetJSON(ctx, "/watch", params, &watch); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.logger.Warn("episode stream lookup failed",
			zap.String("media_id", mediaID),
			zap.String("episode_id", episodeID),
			zap.Error(err))
		return payload, nil
	}

	for _, src := range watch.Sources {
		payload.Streams = append(payload.Streams, provider.StreamVariant{
			Quality: string(src.Quality),
			URL:     src.URL,
			IsM3U8:  src.IsM3U8,
		})
	}
	for _, sub := range watch.Subtitles {
		payload.Subtitles = append(payload.Subtitles, provider.SubtitleVariant{
			Language: sub.Lang,
			URL:      sub.URL,
		})
	}

	return payload, nil
}

func (p *Provider) info(ctx context.Context, nativeID string) (*infoResponse, error) {
	var info infoResponse
	if err := p.client.GetJSON(ctx, "/info", url.Values{"id": {nativeID}}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Search finds the TV entry whose title matches the query. The year only
// filters first seasons since later seasons air after the series premiere.
func (p *Provider) Search(ctx context.Context, query provider.SearchQuery) ([]provider.Availability, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}

	title := strings.TrimSpace(query.Title)
	if title == "" {
		title = strings.TrimSpace(query.OriginalTitle)
	}
	if title == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a title",
		}
	}

	var resp searchResponse
	if err := p.client.GetJSON(ctx, "/search", url.Values{"query": {title}}, &resp); err != nil {
		return nil, err
	}

	var out []provider.Availability
	for _, r := range resp.Results {
		if !strings.EqualFold(r.Type, "TV Series") && !strings.EqualFold(r.Type, "tv") {
			continue
		}
		if !titleMatches(r.Title, query) {
			continue
		}
		if query.Year > 0 && query.Season <= 1 && len(r.ReleaseDate) >= 4 {
			if y, err := strconv.Atoi(r.ReleaseDate[:4]); err == nil && y != query.Year {
				continue
			}
		}
		out = append(out, provider.Availability{Provider: provider.TagFlixhq, NativeID: r.ID})
		break
	}
	return out, nil
}

func titleMatches(candidate string, query provider.SearchQuery) bool {
	c := strings.TrimSpace(candidate)
	return strings.EqualFold(c, strings.TrimSpace(query.Title)) ||
		(query.OriginalTitle != "" && strings.EqualFold(c, strings.TrimSpace(query.OriginalTitle)))
}
