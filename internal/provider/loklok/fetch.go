package loklok

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Digital-Shane/sora/internal/provider"
)

type episodeResponse struct {
	Data *struct {
		EpisodeCount *int   `json:"episodeCount"`
		Name         string `json:"name"`
	} `json:"data"`
	Sources []struct {
		Quality provider.Label `json:"quality"`
		URL     string         `json:"url"`
		IsM3U8  *bool          `json:"isM3U8"`
	} `json:"sources"`
	Subtitles []struct {
		Language string `json:"language"`
		Lang     string `json:"lang"`
		URL      string `json:"url"`
	} `json:"subtitles"`
}

// FetchEpisode looks the episode up by native id and zero-based episode index.
func (p *Provider) FetchEpisode(ctx context.Context, query provider.EpisodeQuery) (*provider.Payload, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	if query.NativeID == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "loklok fetch requires a native id",
		}
	}
	if query.Episode < 1 {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  fmt.Sprintf("invalid episode ordinal %d", query.Episode),
		}
	}

	params := url.Values{}
	params.Set("id", query.NativeID)
	params.Set("episode", strconv.Itoa(query.Episode-1))

	var resp episodeResponse
	if err := p.client.GetJSON(ctx, "/tv/episode", params, &resp); err != nil {
		return nil, err
	}

	return p.toPayload(&resp), nil
}

func (p *Provider) toPayload(resp *episodeResponse) *provider.Payload {
	payload := &provider.Payload{}
	if resp.Data != nil && resp.Data.EpisodeCount != nil {
		payload.EpisodeCount = provider.Count(*resp.Data.EpisodeCount)
	}

	for _, src := range resp.Sources {
		if src.URL == "" {
			continue
		}
		isM3U8 := true
		if src.IsM3U8 != nil {
			isM3U8 = *src.IsM3U8
		}
		payload.Streams = append(payload.Streams, provider.StreamVariant{
			Quality: string(src.Quality),
			URL:     src.URL,
			IsM3U8:  isM3U8,
		})
	}

	for _, sub := range resp.Subtitles {
		if sub.URL == "" {
			continue
		}
		payload.Subtitles = append(payload.Subtitles, provider.SubtitleVariant{
			Language: fmt.Sprintf("%s (%s)", sub.Language, sub.Lang),
			URL:      p.relaySubtitle(sub.URL),
		})
	}

	return payload
}

// relaySubtitle routes a subtitle through the service's relay endpoint.
func (p *Provider) relaySubtitle(raw string) string {
	return p.relayURL + "/subtitle?url=" + url.QueryEscape(raw)
}
