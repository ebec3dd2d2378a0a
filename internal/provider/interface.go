package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Tag identifies an upstream stream source. It is the value carried in the
// provider query parameter of a playback route.
type Tag string

const (
	TagLoklok Tag = "Loklok"
	TagFlixhq Tag = "Flixhq"
	TagKissKh Tag = "KissKh"
	TagEmbed  Tag = "Embed"
)

// KnownTags lists the tags that ship with an adapter, in display order.
var KnownTags = []Tag{TagLoklok, TagFlixhq, TagKissKh, TagEmbed}

// RequiresNativeID reports whether a request for this tag must carry the
// provider's own identifier. Only the embed fallback works without one.
func (t Tag) RequiresNativeID() bool {
	return t != TagEmbed
}

func (t Tag) String() string {
	return string(t)
}

// Provider is the strategy every upstream adapter implements
type Provider interface {
	// Identification
	Tag() Tag
	Name() string
	Description() string

	// Capability discovery
	Capabilities() ProviderCapabilities

	// Configuration
	Configure(config map[string]interface{}) error
	ConfigSchema() ConfigSchema

	// FetchEpisode returns the playable variants for one episode together
	// with the provider's own idea of how many episodes exist.
	FetchEpisode(ctx context.Context, query EpisodeQuery) (*Payload, error)
}

// Searcher is implemented by providers that can look a title up by name.
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) ([]Availability, error)
}

// ProviderCapabilities describes what a provider can do
type ProviderCapabilities struct {
	Fetches      bool // Whether FetchEpisode talks to an upstream
	TwoStep      bool // Listing call must precede the stream call
	Searches     bool // Implements Searcher
	RequiresAuth bool // Whether credentials are needed
	Priority     int  // Ordering in listings (higher = preferred)
}

// ConfigSchema describes the configuration requirements for a provider
type ConfigSchema struct {
	Fields []ConfigField
}

// ConfigField describes a single configuration field
type ConfigField struct {
	Name        string                 // Field name
	DisplayName string                 // Human-readable name
	Type        ConfigFieldType        // Field type
	Required    bool                   // Whether this field is required
	Default     interface{}            // Default value
	Description string                 // Help text
	Validation  *ConfigFieldValidation // Validation rules
	Sensitive   bool                   // Whether this contains sensitive data (for masking)
}

// ConfigFieldType represents the type of a configuration field
type ConfigFieldType string

const (
	ConfigFieldTypeInt      ConfigFieldType = "int"
	ConfigFieldTypeBool     ConfigFieldType = "bool"
	ConfigFieldTypeString   ConfigFieldType = "string"
	ConfigFieldTypeURL      ConfigFieldType = "url"
	ConfigFieldTypePassword ConfigFieldType = "password"
)

// ConfigFieldValidation contains validation rules for a field
type ConfigFieldValidation struct {
	MinValue int
	MaxValue int
	Pattern  string
}

// EpisodeQuery addresses one episode in a provider's own id space
type EpisodeQuery struct {
	NativeID string
	Season   int
	Episode  int
}

// SearchQuery describes a title to look for on a provider
type SearchQuery struct {
	Title         string
	OriginalTitle string
	Year          int
	Season        int
}

// StreamVariant is one playable stream option
type StreamVariant struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	IsM3U8  bool   `json:"isM3U8"`
	Default bool   `json:"default,omitempty"`
}

// SubtitleVariant is one subtitle track option
type SubtitleVariant struct {
	Language string `json:"lang"`
	URL      string `json:"url"`
	Default  bool   `json:"default,omitempty"`
}

// Payload is the normalized result of a single adapter call.
// A nil EpisodeCount means the provider did not report one.
type Payload struct {
	Streams      []StreamVariant
	Subtitles    []SubtitleVariant
	EpisodeCount *int
}

// Empty reports whether the payload carries nothing playable.
func (p *Payload) Empty() bool {
	return p == nil || (len(p.Streams) == 0 && len(p.Subtitles) == 0)
}

// Availability records that another provider carries the same title.
type Availability struct {
	Provider     Tag    `json:"provider"`
	NativeID     string `json:"id,omitempty"`
	EpisodeCount int    `json:"episodesCount,omitempty"`
}

// Count returns a pointer to n, for filling Payload.EpisodeCount.
func Count(n int) *int {
	return &n
}

// Label is a quality label that upstreams send either as a JSON string or
// as a bare number.
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(strings.TrimSpace(s))
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*l = Label(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds the upstream asked us to wait
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Error codes shared by adapters.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeAuthFailed      = "AUTH_FAILED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeUnknown         = "UNKNOWN"
)

// IsCode reports whether err is a *ProviderError carrying code.
func IsCode(err error, code string) bool {
	var perr *ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Code == code
}
