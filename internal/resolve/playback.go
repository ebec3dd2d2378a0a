package resolve

import (
	"fmt"

	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/embed"
	"github.com/Digital-Shane/sora/internal/selection"
)

// Playback is a resolved episode. It is assembled once and not modified
// afterwards.
type Playback struct {
	Request         Request                   `json:"request"`
	Provider        provider.Tag              `json:"provider"`
	NativeID        string                    `json:"nativeId,omitempty"`
	Title           string                    `json:"title"`
	Description     string                    `json:"description"`
	Series          *metadata.Series          `json:"series"`
	ImdbID          string                    `json:"imdbId"`
	Season          *metadata.Season          `json:"season,omitempty"`
	Translations    []metadata.Translation    `json:"translations,omitempty"`
	Localized       *metadata.Translation     `json:"localized,omitempty"`
	Rating          *metadata.Rating          `json:"rating,omitempty"`
	Recommendations []metadata.Recommendation `json:"recommendations"`

	Streams        []provider.StreamVariant   `json:"streams"`
	Subtitles      []provider.SubtitleVariant `json:"subtitles"`
	HasNextEpisode *bool                      `json:"hasNextEpisode"`
	NextRoute      string                     `json:"nextRoute,omitempty"`
	Selection      selection.Selection        `json:"selection"`
	Embed          []embed.Frame              `json:"embed,omitempty"`
	Availability   []provider.Availability    `json:"availability,omitempty"`
}

// UsesEmbed reports whether the shell must fall back to an embedded frame.
func (p *Playback) UsesEmbed() bool {
	return len(p.Streams) == 0
}

// CanAdvance reports whether a next episode is known to exist.
func (p *Playback) CanAdvance() bool {
	return p.HasNextEpisode != nil && *p.HasNextEpisode
}

// EpisodeName returns the catalog title of the requested episode, if any.
func (p *Playback) EpisodeName() string {
	if ep, ok := p.Season.Episode(p.Request.Episode); ok {
		return ep.Name
	}
	return ""
}

// DisplayName prefers the localized title when one was resolved.
func (p *Playback) DisplayName() string {
	if p.Localized != nil && p.Localized.Title != "" {
		return p.Localized.Title
	}
	if p.Series == nil {
		return ""
	}
	return p.Series.Name
}

// HasNextEpisode decides whether a next episode affordance is shown. It is
// nil when the provider reported no count.
func HasNextEpisode(current, total int, providerTotal *int) *bool {
	if providerTotal == nil {
		return nil
	}
	ok := total > current && *providerTotal > current
	return &ok
}

func pageTitle(name string, season, episode int) string {
	return fmt.Sprintf("Watch %s season %d episode %d HD online Free - Sora", name, season, episode)
}

func pageDescription(name string, season, episode int) string {
	return fmt.Sprintf("Watch %s season %d episode %d in full HD online with Subtitle", name, season, episode)
}
