package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider tags to adapters. It is the dispatch table the
// resolver consults for every request.
type Registry struct {
	mu            sync.RWMutex
	providers     map[Tag]Provider
	priorities    map[Tag]int
	enabledStatus map[Tag]bool
	configs       map[Tag]map[string]interface{}
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:     make(map[Tag]Provider),
		priorities:    make(map[Tag]int),
		enabledStatus: make(map[Tag]bool),
		configs:       make(map[Tag]map[string]interface{}),
	}
}

// Register adds a provider under its own tag. Providers start disabled.
func (r *Registry) Register(p Provider, priority int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag := p.Tag()
	if tag == "" {
		return fmt.Errorf("provider %s has no tag", p.Name())
	}
	if _, exists := r.providers[tag]; exists {
		return fmt.Errorf("provider %s already registered", tag)
	}

	if err := ValidateCapabilities(tag, p.Capabilities()); err != nil {
		return fmt.Errorf("invalid provider capabilities for %s: %w", tag, err)
	}

	r.providers[tag] = p
	r.priorities[tag] = priority
	r.enabledStatus[tag] = false

	return nil
}

// Get returns a provider by tag, enabled or not
func (r *Registry) Get(tag Tag) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[tag]
	return p, exists
}

// Lookup returns the provider for tag only when it is enabled.
func (r *Registry) Lookup(tag Tag) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.providers[tag]
	if !exists || !r.enabledStatus[tag] {
		return nil, false
	}
	return p, true
}

// List returns all registered tags, highest priority first
func (r *Registry) List() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]Tag, 0, len(r.providers))
	for tag := range r.providers {
		tags = append(tags, tag)
	}

	sort.Slice(tags, func(i, j int) bool {
		if r.priorities[tags[i]] == r.priorities[tags[j]] {
			return tags[i] < tags[j]
		}
		return r.priorities[tags[i]] > r.priorities[tags[j]]
	})

	return tags
}

// Enabled returns the enabled providers, highest priority first
func (r *Registry) Enabled() []Provider {
	tags := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(tags))
	for _, tag := range tags {
		if r.enabledStatus[tag] {
			out = append(out, r.providers[tag])
		}
	}
	return out
}

// IsEnabled reports whether tag is registered and enabled
func (r *Registry) IsEnabled(tag Tag) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledStatus[tag]
}

// Enable enables a provider
func (r *Registry) Enable(tag Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.providers[tag]
	if !exists {
		return fmt.Errorf("provider %s not found", tag)
	}

	if p.Capabilities().RequiresAuth {
		if config, hasConfig := r.configs[tag]; !hasConfig || len(config) == 0 {
			return fmt.Errorf("provider %s requires configuration", tag)
		}
	}

	r.enabledStatus[tag] = true
	return nil
}

// Disable disables a provider
func (r *Registry) Disable(tag Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[tag]; !exists {
		return fmt.Errorf("provider %s not found", tag)
	}
	r.enabledStatus[tag] = false
	return nil
}

// Configure sets configuration for a provider
func (r *Registry) Configure(tag Tag, config map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.providers[tag]
	if !exists {
		return fmt.Errorf("provider %s not found", tag)
	}

	if err := p.Configure(config); err != nil {
		return fmt.Errorf("failed to configure provider %s: %w", tag, err)
	}

	r.configs[tag] = config

	return nil
}
