// Package selection decides which stream and subtitle variants a player
// starts with and rewrites insecure URLs through an HTTPS relay.
package selection

import (
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
)

// DefaultRelay is the HTTPS proxy used for plain http variant URLs.
const DefaultRelay = "https://cors.proxy.consumet.org"

// Format is the caption container of a provider's subtitle tracks.
type Format string

const (
	FormatNone Format = ""
	FormatVTT  Format = "vtt"
	FormatSRT  Format = "srt"
)

// Selection is the outcome of applying the policy to one payload. Streams
// and Subtitles are the relayed option lists; only the chosen entries carry
// Default.
type Selection struct {
	Stream         *provider.StreamVariant    `json:"stream,omitempty"`
	Subtitle       *provider.SubtitleVariant  `json:"subtitle,omitempty"`
	SubtitleFormat Format                     `json:"subtitleFormat,omitempty"`
	Streams        []provider.StreamVariant   `json:"streams"`
	Subtitles      []provider.SubtitleVariant `json:"subtitles"`
}

// Policy applies provider preferences and the relay rewrite.
type Policy struct {
	relay string
}

// New returns a policy using relay for insecure URLs. An empty relay falls
// back to DefaultRelay.
func New(relay string) *Policy {
	relay = strings.TrimRight(strings.TrimSpace(relay), "/")
	if relay == "" {
		relay = DefaultRelay
	}
	return &Policy{relay: relay}
}

// Relay returns the proxy prefix in use.
func (p *Policy) Relay() string {
	return p.relay
}

// SelectDefaults picks the default stream and subtitle for tag and returns
// rewritten copies of both lists. The inputs are not modified.
func (p *Policy) SelectDefaults(streams []provider.StreamVariant, subtitles []provider.SubtitleVariant, tag provider.Tag) Selection {
	sel := Selection{SubtitleFormat: SubtitleFormat(tag)}

	if len(streams) > 0 {
		chosen := DefaultStream(streams, tag)
		sel.Streams = make([]provider.StreamVariant, len(streams))
		for i, s := range streams {
			s.URL = p.Rewrite(s.URL)
			s.Default = i == chosen
			sel.Streams[i] = s
		}
		stream := sel.Streams[chosen]
		sel.Stream = &stream
	}

	if len(subtitles) > 0 {
		chosen := DefaultSubtitle(subtitles, tag)
		sel.Subtitles = make([]provider.SubtitleVariant, len(subtitles))
		for i, s := range subtitles {
			s.URL = p.Rewrite(s.URL)
			s.Default = i == chosen
			sel.Subtitles[i] = s
		}
		if chosen >= 0 {
			sub := sel.Subtitles[chosen]
			sel.Subtitle = &sub
		}
	}

	return sel
}

// Rewrite routes an http URL through the relay. Anything else is returned
// unchanged.
func (p *Policy) Rewrite(raw string) string {
	if len(raw) >= 5 && strings.EqualFold(raw[:5], "http:") {
		return p.relay + "/" + raw
	}
	return raw
}

// DefaultStream returns the index of the preferred stream, or -1 for an
// empty list.
func DefaultStream(streams []provider.StreamVariant, tag provider.Tag) int {
	if len(streams) == 0 {
		return -1
	}
	switch tag {
	case provider.TagFlixhq:
		for i, s := range streams {
			if strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s.Quality)), "p") == "720" {
				return i
			}
		}
	case provider.TagKissKh:
		// single synthesized variant
	default:
		for i, s := range streams {
			if strings.EqualFold(strings.TrimSpace(s.Quality), "auto") {
				return i
			}
		}
	}
	return 0
}

// DefaultSubtitle returns the index of the preferred subtitle, or -1 when
// nothing qualifies.
func DefaultSubtitle(subtitles []provider.SubtitleVariant, tag provider.Tag) int {
	switch tag {
	case provider.TagLoklok:
		return indexOf(subtitles, func(s provider.SubtitleVariant) bool {
			return strings.Contains(s.Language, "English")
		})
	case provider.TagFlixhq:
		return indexOf(subtitles, func(s provider.SubtitleVariant) bool {
			return strings.Contains(strings.ToLower(s.Language), "en")
		})
	case provider.TagKissKh:
		if i := indexOf(subtitles, func(s provider.SubtitleVariant) bool { return s.Default }); i >= 0 {
			return i
		}
		return indexOf(subtitles, func(s provider.SubtitleVariant) bool {
			return strings.Contains(s.Language, "English")
		})
	}
	return -1
}

// SubtitleFormat reports the caption format a provider serves.
func SubtitleFormat(tag provider.Tag) Format {
	switch tag {
	case provider.TagLoklok, provider.TagFlixhq:
		return FormatVTT
	case provider.TagKissKh:
		return FormatSRT
	}
	return FormatNone
}

func indexOf(subtitles []provider.SubtitleVariant, match func(provider.SubtitleVariant) bool) int {
	for i, s := range subtitles {
		if match(s) {
			return i
		}
	}
	return -1
}
