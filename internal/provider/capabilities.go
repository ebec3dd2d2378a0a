package provider

import (
	"fmt"
	"strings"
)

// ValidateCapabilities checks if provider capabilities are consistent with the tag
func ValidateCapabilities(tag Tag, caps ProviderCapabilities) error {
	if caps.TwoStep && !caps.Fetches {
		return fmt.Errorf("two-step lookup requires an upstream fetch")
	}
	if tag == TagEmbed && caps.Fetches {
		return fmt.Errorf("embed fallback must not fetch")
	}
	if tag != TagEmbed && !caps.Fetches {
		return fmt.Errorf("provider must fetch episode data")
	}
	if caps.Priority < 0 {
		return fmt.Errorf("priority must not be negative")
	}

	return nil
}

// StringOption extracts a trimmed string from a provider configuration map.
func StringOption(config map[string]interface{}, key string) string {
	raw, ok := config[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// IntOption extracts an int from a configuration map, accepting the float64
// values JSON decoding produces.
func IntOption(config map[string]interface{}, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
