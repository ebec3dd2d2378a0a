package kisskh

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/Digital-Shane/sora/internal/provider"
	"go.uber.org/zap"
)

type dramaResponse struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	EpisodesCount int    `json:"episodesCount"`
	Episodes      []struct {
		ID     int     `json:"id"`
		Number float64 `json:"number"`
		Sub    int     `json:"sub"`
	} `json:"episodes"`
}

type streamResponse struct {
	Video      string `json:"Video"`
	ThirdParty string `json:"ThirdParty"`
}

type subtitleEntry struct {
	Src     string `json:"src"`
	Label   string `json:"label"`
	Land    string `json:"land"`
	Default bool   `json:"default"`
}

type searchEntry struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	EpisodesCount int    `json:"episodesCount"`
}

// FetchEpisode reads the drama listing, picks the episode by number, then
// fetches its stream and, when the episode declares subtitles, its tracks.
func (p *Provider) FetchEpisode(ctx context.Context, query provider.EpisodeQuery) (*provider.Payload, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}
	dramaID, err := strconv.Atoi(strings.TrimSpace(query.NativeID))
	if err != nil {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  fmt.Sprintf("kisskh native id must be numeric, got %q", query.NativeID),
		}
	}

	var drama dramaResponse
	if err := p.client.GetJSON(ctx, fmt.Sprintf("/api/DramaList/Drama/%d", dramaID), url.Values{"isq": {"false"}}, &drama); err != nil {
		return nil, err
	}

	payload := &provider.Payload{EpisodeCount: provider.Count(len(drama.Episodes))}

	episodeID, subCount, found := 0, 0, false
	for _, ep := range drama.Episodes {
		if ep.Number == float64(query.Episode) {
			episodeID, subCount, found = ep.ID, ep.Sub, true
			break
		}
	}
	if !found {
		return payload, nil
	}

	var (
		wg        sync.WaitGroup
		stream    streamResponse
		subs      []subtitleEntry
		streamErr error
		subsErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		streamErr = p.client.GetJSON(ctx, fmt.Sprintf("/api/DramaList/Episode/%d.png", episodeID), url.Values{"err": {"false"}}, &stream)
	}()

	if subCount > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subsErr = p.client.GetJSON(ctx, fmt.Sprintf("/api/Sub/%d", episodeID), nil, &subs)
		}()
	}
	wg.Wait()

	if streamErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// The listing still tells the caller whether a next episode exists.
		p.logger.Warn("episode stream lookup failed",
			zap.Int("drama_id", dramaID),
			zap.Int("episode_id", episodeID),
			zap.Error(streamErr))
		return payload, nil
	}

	if stream.Video != "" {
		payload.Streams = []provider.StreamVariant{{
			Quality: "auto",
			URL:     stream.Video,
			IsM3U8:  true,
		}}
	}

	// A missing subtitle list does not spoil a playable stream.
	if subsErr == nil {
		for _, sub := range subs {
			if sub.Src == "" {
				continue
			}
			payload.Subtitles = append(payload.Subtitles, provider.SubtitleVariant{
				Language: sub.Label,
				URL:      sub.Src,
				Default:  sub.Default,
			})
		}
	}

	return payload, nil
}

// Search looks a drama up by title.
func (p *Provider) Search(ctx context.Context, query provider.SearchQuery) ([]provider.Availability, error) {
	if p.client == nil {
		return nil, fmt.Errorf("provider not configured")
	}

	titles := []string{strings.TrimSpace(query.Title)}
	if orig := strings.TrimSpace(query.OriginalTitle); orig != "" && !strings.EqualFold(orig, titles[0]) {
		titles = append(titles, orig)
	}

	for _, title := range titles {
		if title == "" {
			continue
		}
		var results []searchEntry
		params := url.Values{"q": {title}, "type": {"0"}}
		if err := p.client.GetJSON(ctx, "/api/DramaList/Search", params, &results); err != nil {
			return nil, err
		}
		for _, r := range results {
			if matchesTitle(r.Title, title, query.Season) {
				return []provider.Availability{{
					Provider:     provider.TagKissKh,
					NativeID:     strconv.Itoa(r.ID),
					EpisodeCount: r.EpisodesCount,
				}}, nil
			}
		}
	}
	return nil, nil
}

// matchesTitle accepts "Title" for the first season and "Title Season N"
// for later ones, which is how KissKH names sequels.
func matchesTitle(candidate, title string, season int) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	t := strings.ToLower(title)
	if season > 1 {
		return c == fmt.Sprintf("%s season %d", t, season)
	}
	return c == t || c == t+" season 1"
}
