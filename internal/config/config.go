package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Digital-Shane/sora/internal/provider"
)

// History sinks
const (
	HistoryFile = "file"
	HistoryNATS = "nats"
	HistoryNone = "none"
)

// DefaultRelayURL is the HTTPS proxy put in front of insecure variant URLs.
const DefaultRelayURL = "https://cors.proxy.consumet.org"

// ProviderConfig enables a stream source and carries its options, which are
// handed to the provider's Configure as-is.
type ProviderConfig struct {
	Enabled bool                   `json:"enabled"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// Config holds every persisted sora setting
type Config struct {
	// Metadata
	TMDBAPIKey   string `json:"tmdb_api_key"`
	TMDBLanguage string `json:"tmdb_language"`
	OMDBAPIKey   string `json:"omdb_api_key"`
	TVDBAPIKey   string `json:"tvdb_api_key"`
	CacheMinutes int    `json:"cache_minutes"`

	// Resolution
	Locale    string                    `json:"locale"`
	RelayURL  string                    `json:"relay_url"`
	Providers map[string]ProviderConfig `json:"providers"`

	// Playback
	Player      string `json:"player"`
	PlayerPath  string `json:"player_path"`
	AutoAdvance bool   `json:"auto_advance"`
	ProbeStream bool   `json:"probe_stream"`

	// History
	UserID               string `json:"user_id"`
	HistorySink          string `json:"history_sink"`
	HistoryRetentionDays int    `json:"history_retention_days"`
	NATSURL              string `json:"nats_url"`
	NATSSubject          string `json:"nats_subject"`

	// Logging and serving
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	ListenAddr string `json:"listen_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TMDBLanguage: "en-US",
		CacheMinutes: 60,
		Locale:       "en",
		RelayURL:     DefaultRelayURL,
		Providers: map[string]ProviderConfig{
			string(provider.TagLoklok): {Enabled: false},
			string(provider.TagFlixhq): {
				Enabled: true,
				Options: map[string]interface{}{"base_url": "https://api.consumet.org/movies/flixhq"},
			},
			string(provider.TagKissKh): {
				Enabled: true,
				Options: map[string]interface{}{"base_url": "https://kisskh.co"},
			},
			string(provider.TagEmbed): {Enabled: true},
		},
		Player:               "mpv",
		AutoAdvance:          true,
		UserID:               "local",
		HistorySink:          HistoryFile,
		HistoryRetentionDays: 90,
		NATSURL:              "nats://127.0.0.1:4222",
		NATSSubject:          "sora.history",
		LogLevel:             "info",
		LogFormat:            "console",
		ListenAddr:           ":8080",
	}
}

// Dir returns the sora state directory (~/.sora)
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".sora"), nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from disk and applies SORA_* environment
// overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Decoding onto the defaults keeps fields the file leaves out,
		// booleans included.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.fillDefaults()
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) fillDefaults() {
	defaults := DefaultConfig()
	if cfg.TMDBLanguage == "" {
		cfg.TMDBLanguage = defaults.TMDBLanguage
	}
	if cfg.Locale == "" {
		cfg.Locale = defaults.Locale
	}
	if cfg.RelayURL == "" {
		cfg.RelayURL = defaults.RelayURL
	}
	if cfg.Player == "" {
		cfg.Player = defaults.Player
	}
	if cfg.HistorySink == "" {
		cfg.HistorySink = defaults.HistorySink
	}
	if cfg.HistoryRetentionDays == 0 {
		cfg.HistoryRetentionDays = defaults.HistoryRetentionDays
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = defaults.NATSSubject
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if cfg.Providers == nil {
		cfg.Providers = defaults.Providers
	}
}

// ApplyEnv overrides secrets and deployment settings from the environment.
func (cfg *Config) ApplyEnv(getenv func(string) string) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"SORA_TMDB_API_KEY", &cfg.TMDBAPIKey},
		{"SORA_OMDB_API_KEY", &cfg.OMDBAPIKey},
		{"SORA_TVDB_API_KEY", &cfg.TVDBAPIKey},
		{"SORA_NATS_URL", &cfg.NATSURL},
		{"SORA_LOG_LEVEL", &cfg.LogLevel},
		{"SORA_LISTEN_ADDR", &cfg.ListenAddr},
		{"SORA_RELAY_URL", &cfg.RelayURL},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(getenv(o.key)); v != "" {
			*o.target = v
		}
	}
}

// Validate checks enumerated settings.
func (cfg *Config) Validate() error {
	switch cfg.HistorySink {
	case HistoryFile, HistoryNATS, HistoryNone:
	default:
		return fmt.Errorf("history_sink must be %q, %q or %q, got %q", HistoryFile, HistoryNATS, HistoryNone, cfg.HistorySink)
	}
	switch cfg.Player {
	case "mpv", "vlc":
	default:
		return fmt.Errorf("player must be mpv or vlc, got %q", cfg.Player)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", cfg.LogFormat)
	}
	if cfg.HistoryRetentionDays < 0 {
		return fmt.Errorf("history_retention_days must not be negative")
	}
	for name := range cfg.Providers {
		if !isKnownTag(name) {
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	return nil
}

// Provider returns the settings for tag. Unlisted providers are disabled.
func (cfg *Config) Provider(tag provider.Tag) ProviderConfig {
	pc, ok := cfg.Providers[string(tag)]
	if !ok {
		return ProviderConfig{}
	}
	options := make(map[string]interface{}, len(pc.Options)+1)
	for k, v := range pc.Options {
		options[k] = v
	}
	if _, ok := options["cache_minutes"]; !ok && tag != provider.TagEmbed {
		options["cache_minutes"] = cfg.CacheMinutes
	}
	pc.Options = options
	return pc
}

// Save writes the configuration to disk
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// API keys live here, keep it private
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isKnownTag(name string) bool {
	for _, tag := range provider.KnownTags {
		if string(tag) == name {
			return true
		}
	}
	return false
}
