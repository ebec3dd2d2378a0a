// Package embed registers the iframe player fallback. It never talks to an
// upstream; it only knows how to build player page URLs for an episode.
package embed

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
)

const providerName = "embed"

// Default player servers. {tmdb}, {imdb}, {season} and {episode} are
// substituted per episode.
var DefaultServers = []string{
	"https://www.2embed.cc/embedtv/{tmdb}&s={season}&e={episode}",
	"https://vidsrc.me/embed/tv?imdb={imdb}&season={season}&episode={episode}",
	"https://multiembed.mov/?video_id={tmdb}&tmdb=1&s={season}&e={episode}",
}

// Frame is one selectable embedded player.
type Frame struct {
	Server int    `json:"server"`
	URL    string `json:"url"`
}

// Target identifies the episode a frame should play.
type Target struct {
	TMDBID  int
	IMDbID  string
	Season  int
	Episode int
}

// Provider implements provider.Provider for embedded players.
type Provider struct {
	servers []string
	config  map[string]interface{}
}

// New creates an embed provider using the default servers
func New() *Provider {
	return &Provider{
		servers: append([]string(nil), DefaultServers...),
		config:  make(map[string]interface{}),
	}
}

// Tag returns the routing tag
func (p *Provider) Tag() provider.Tag {
	return provider.TagEmbed
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "Embedded player pages, used when no stream source applies"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{Priority: 10}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "servers",
				DisplayName: "Player Servers",
				Type:        provider.ConfigFieldTypeString,
				Default:     strings.Join(DefaultServers, ","),
				Description: "Comma separated URL templates using {tmdb}, {imdb}, {season} and {episode}",
			},
		},
	}
}

// Configure applies configuration to the provider. Accepts either a comma
// separated string or a []string under "servers".
func (p *Provider) Configure(config map[string]interface{}) error {
	var servers []string
	switch v := config["servers"].(type) {
	case nil:
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
	case []interface{}:
		for _, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("servers: expected strings, got %T", raw)
			}
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
	default:
		return fmt.Errorf("servers: unsupported type %T", v)
	}

	for _, s := range servers {
		if !strings.HasPrefix(s, "https://") && !strings.HasPrefix(s, "http://") {
			return fmt.Errorf("server template %q is not an http(s) URL", s)
		}
	}

	if len(servers) > 0 {
		p.servers = servers
	}
	p.config = config
	return nil
}

// FetchEpisode never reaches an upstream; embedded players resolve in the
// browser or the player itself.
func (p *Provider) FetchEpisode(ctx context.Context, query provider.EpisodeQuery) (*provider.Payload, error) {
	return &provider.Payload{}, nil
}

// Frames builds one player URL per configured server. Servers whose template
// needs an IMDb id are skipped when none is known.
func (p *Provider) Frames(target Target) []Frame {
	replacer := strings.NewReplacer(
		"{tmdb}", strconv.Itoa(target.TMDBID),
		"{imdb}", target.IMDbID,
		"{season}", strconv.Itoa(target.Season),
		"{episode}", strconv.Itoa(target.Episode),
	)

	frames := make([]Frame, 0, len(p.servers))
	for i, tmpl := range p.servers {
		if target.IMDbID == "" && strings.Contains(tmpl, "{imdb}") {
			continue
		}
		frames = append(frames, Frame{Server: i + 1, URL: replacer.Replace(tmpl)})
	}
	return frames
}
