package loklok

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/upstream"
)

const providerName = "loklok"

// Provider implements provider.Provider for the Loklok episode service.
// Episodes are addressed directly by zero-based index.
type Provider struct {
	client     *upstream.Client
	httpClient *http.Client
	baseURL    string
	relayURL   string
	config     map[string]interface{}
}

// New creates a new Loklok provider instance
func New() *Provider {
	return &Provider{config: make(map[string]interface{})}
}

// Tag returns the routing tag
func (p *Provider) Tag() provider.Tag {
	return provider.TagLoklok
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "Loklok direct episode streams with relayed subtitles"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		Fetches:  true,
		Priority: 80,
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "base_url",
				DisplayName: "Service URL",
				Type:        provider.ConfigFieldTypeURL,
				Required:    true,
				Description: "Root of the Loklok episode service",
			},
			{
				Name:        "relay_url",
				DisplayName: "Subtitle Relay",
				Type:        provider.ConfigFieldTypeURL,
				Required:    false,
				Description: "Endpoint serving /subtitle?url=; defaults to the service URL",
			},
			{
				Name:        "rate_limit",
				DisplayName: "Requests per 10s",
				Type:        provider.ConfigFieldTypeInt,
				Default:     20,
				Description: "Upper bound on requests sent to the service",
				Validation:  &provider.ConfigFieldValidation{MinValue: 1, MaxValue: 200},
			},
			{
				Name:        "cache_minutes",
				DisplayName: "Cache Duration (minutes)",
				Type:        provider.ConfigFieldTypeInt,
				Default:     10,
				Description: "How long episode payloads are reused",
				Validation:  &provider.ConfigFieldValidation{MinValue: 0, MaxValue: 1440},
			},
		},
	}
}

// Configure applies configuration to the provider
func (p *Provider) Configure(config map[string]interface{}) error {
	baseURL := provider.StringOption(config, "base_url")
	if baseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	p.baseURL = baseURL
	p.relayURL = provider.StringOption(config, "relay_url")
	if p.relayURL == "" {
		p.relayURL = baseURL
	}
	p.config = config

	p.client = upstream.New(providerName, baseURL,
		upstream.WithHTTPClient(p.httpClient),
		upstream.WithRateLimit(provider.IntOption(config, "rate_limit", 20), 10*time.Second),
		upstream.WithCache(time.Duration(provider.IntOption(config, "cache_minutes", 10))*time.Minute),
	)
	return nil
}
