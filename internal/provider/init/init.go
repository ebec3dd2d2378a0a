// Package init wires the built-in stream sources into a registry. It lives
// apart from provider to avoid import cycles.
package init

import (
	"fmt"

	"github.com/Digital-Shane/sora/internal/config"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/embed"
	"github.com/Digital-Shane/sora/internal/provider/flixhq"
	"github.com/Digital-Shane/sora/internal/provider/kisskh"
	"github.com/Digital-Shane/sora/internal/provider/loklok"
	"go.uber.org/zap"
)

// Builtin returns a fresh instance of every built-in provider.
func Builtin(logger *zap.Logger) []provider.Provider {
	return []provider.Provider{
		loklok.New(),
		flixhq.New(flixhq.WithLogger(logger)),
		kisskh.New(kisskh.WithLogger(logger)),
		embed.New(),
	}
}

// LoadBuiltinProviders registers the built-in providers with reg, then
// configures and enables the ones cfg turns on. Disabled providers stay
// registered so they can be listed.
func LoadBuiltinProviders(reg *provider.Registry, cfg *config.Config, logger *zap.Logger) error {
	for _, p := range Builtin(logger) {
		if err := reg.Register(p, p.Capabilities().Priority); err != nil {
			return fmt.Errorf("failed to register %s provider: %w", p.Name(), err)
		}
	}

	for _, tag := range provider.KnownTags {
		pc := cfg.Provider(tag)
		if !pc.Enabled {
			continue
		}
		if err := reg.Configure(tag, pc.Options); err != nil {
			return err
		}
		if err := reg.Enable(tag); err != nil {
			return fmt.Errorf("failed to enable %s provider: %w", tag, err)
		}
	}
	return nil
}
