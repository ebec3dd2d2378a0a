package kisskh

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/upstream"
	"go.uber.org/zap"
)

const providerName = "kisskh"

// Provider implements provider.Provider for KissKH drama listings.
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

// New creates a new KissKH provider instance
func New(opts ...Option) *Provider {
	p := &Provider{config: make(map[string]interface{}), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tag returns the routing tag
func (p *Provider) Tag() provider.Tag {
	return provider.TagKissKh
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "KissKH drama episodes with optional subtitle tracks"
}

// Capabilities returns what this provider can do
func (p *Provider) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{
		Fetches:  true,
		TwoStep:  true,
		Searches: true,
		Priority: 60,
	}
}

// ConfigSchema returns the configuration schema for this provider
func (p *Provider) ConfigSchema() provider.ConfigSchema {
	return provider.ConfigSchema{
		Fields: []provider.ConfigField{
			{
				Name:        "base_url",
				DisplayName: "Site URL",
				Type:        provider.ConfigFieldTypeURL,
				Required:    true,
				Default:     "https://kisskh.co",
				Description: "Root of the KissKH site serving /api/DramaList and /api/Sub",
			},
			{
				Name:        "rate_limit",
				DisplayName: "Requests per 10s",
				Type:        provider.ConfigFieldTypeInt,
				Default:     20,
				Validation:  &provider.ConfigFieldValidation{MinValue: 1, MaxValue: 200},
			},
			{
				Name:        "cache_minutes",
				DisplayName: "Cache Duration (minutes)",
				Type:        provider.ConfigFieldTypeInt,
				Default:     15,
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
		upstream.WithHeader("Referer", baseURL+"/"),
		upstream.WithRateLimit(provider.IntOption(config, "rate_limit", 20), 10*time.Second),
		upstream.WithCache(time.Duration(provider.IntOption(config, "cache_minutes", 15))*time.Minute),
	)
	return nil
}
