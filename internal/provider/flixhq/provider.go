package flixhq

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/upstream"
	"go.uber.org/zap"
)

const providerName = "flixhq"

// Provider implements provider.Provider for a FlixHQ-style catalog. A series
// is listed as one flat episode list and each episode is streamed by its own id.
type Provider struct {
	client     *upstream.Client
	httpClient *http.Client
	baseURL    string
	config     map[string]interface{}
	logger     *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger for failures that do not abort a fetch.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger.Named(providerName)
		}
	}
}

// New creates a new FlixHQ provider instance
func New(opts ...Option) *Provider {
	p := &Provider{config: make(map[string]interface{}), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tag returns the routing tag
func (p *Provider) Tag() provider.Tag {
	return provider.TagFlixhq
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "FlixHQ series listings with per-episode stream links"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		Fetches:  true,
		TwoStep:  true,
		Searches: true,
		Priority: 100,
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
				Description: "Root of the FlixHQ API (serves /info, /watch and /search)",
			},
			{
				Name:        "rate_limit",
				DisplayName: "Requests per 10s",
				Type:        provider.ConfigFieldTypeInt,
				Default:     30,
				Validation:  &provider.ConfigFieldValidation{MinValue: 1, MaxValue: 200},
			},
			{
				Name:        "cache_minutes",
				DisplayName: "Cache Duration (minutes)",
				Type:        provider.ConfigFieldTypeInt,
				Default:     30,
				Description: "How long listings and stream links are reused",
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
	p.config = config
	p.client = upstream.New(providerName, baseURL,
		upstream.WithHTTPClient(p.httpClient),
		upstream.WithRateLimit(provider.IntOption(config, "rate_limit", 30), 10*time.Second),
		upstream.WithCache(time.Duration(provider.IntOption(config, "cache_minutes", 30))*time.Minute),
	)
	return nil
}
