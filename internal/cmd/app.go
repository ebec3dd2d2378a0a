package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Digital-Shane/sora/internal/config"
	"github.com/Digital-Shane/sora/internal/history"
	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/metadata/omdb"
	"github.com/Digital-Shane/sora/internal/metadata/tmdb"
	"github.com/Digital-Shane/sora/internal/metadata/tvdb"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/embed"
	providers "github.com/Digital-Shane/sora/internal/provider/init"
	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/Digital-Shane/sora/internal/selection"
	"go.uber.org/zap"
)

// app is everything a command needs to resolve episodes.
type app struct {
	registry *provider.Registry
	resolver *resolve.Resolver
	history  *history.Dispatcher
	closers  []func() error
}

// newGateway builds the catalog. Tests replace it to stay offline.
var newGateway = func(cfg *config.Config, logger *zap.Logger) (metadata.Gateway, func() error, error) {
	if cfg.TMDBAPIKey == "" {
		return nil, nil, errors.New("tmdb_api_key is required: set it in the config file or SORA_TMDB_API_KEY")
	}
	dir, err := config.Dir()
	if err != nil {
		return nil, nil, err
	}

	ttl := time.Duration(cfg.CacheMinutes) * time.Minute
	source, err := tmdb.New(cfg.TMDBAPIKey,
		tmdb.WithLanguage(cfg.TMDBLanguage),
		tmdb.WithCache(ttl),
		tmdb.WithCacheFile(filepath.Join(dir, "tmdb-cache.gob")),
	)
	if err != nil {
		return nil, nil, err
	}

	opts := []metadata.CatalogOption{metadata.WithLogger(logger)}
	if cfg.OMDBAPIKey != "" {
		ratings, err := omdb.New(cfg.OMDBAPIKey, omdb.WithCache(ttl))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, metadata.WithRatings(ratings))
	}
	if cfg.TVDBAPIKey != "" {
		// Cross referencing only fills gaps, so a failed login is not fatal.
		if crossRef, err := tvdb.Login(cfg.TVDBAPIKey); err != nil {
			logger.Warn("TheTVDB login failed, continuing without cross reference", zap.Error(err))
		} else {
			opts = append(opts, metadata.WithCrossReference(crossRef))
		}
	}

	return metadata.NewCatalog(source, opts...), source.SaveCache, nil
}

// newHistorySink picks where watch history goes.
var newHistorySink = func(cfg *config.Config, logger *zap.Logger) (history.Sink, func() error, error) {
	switch cfg.HistorySink {
	case config.HistoryNone:
		return nil, nil, nil
	case config.HistoryNATS:
		conn, cleanup, err := history.ConnectNATS(cfg.NATSURL, "sora", logger)
		if err != nil {
			return nil, nil, err
		}
		return history.NewNATSSink(conn, cfg.NATSSubject), func() error { cleanup(); return nil }, nil
	default:
		dir, err := history.DefaultDir()
		if err != nil {
			return nil, nil, err
		}
		store := history.NewFileStore(dir)
		if removed, err := store.Cleanup(cfg.HistoryRetentionDays); err != nil {
			logger.Warn("history cleanup failed", zap.Error(err))
		} else if removed > 0 {
			logger.Debug("removed old history entries", zap.Int("count", removed))
		}
		return store, nil, nil
	}
}

// newApp wires providers, catalog, history and the resolver from cfg.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{registry: provider.NewRegistry()}
	if err := providers.LoadBuiltinProviders(a.registry, cfg, logger); err != nil {
		return nil, err
	}

	gateway, saveCache, err := newGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	if saveCache != nil {
		a.closers = append(a.closers, saveCache)
	}

	sink, closeSink, err := newHistorySink(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("history sink: %w", err)
	}
	a.history = history.NewDispatcher(sink, logger)
	// Drain pending records before the sink goes away.
	a.closers = append(a.closers, func() error { a.history.Wait(); return nil })
	if closeSink != nil {
		a.closers = append(a.closers, closeSink)
	}

	opts := []resolve.Option{
		resolve.WithPolicy(selection.New(cfg.RelayURL)),
		resolve.WithHistory(a.history),
		resolve.WithLogger(logger),
		resolve.WithLanguage(cfg.TMDBLanguage),
	}
	if p, ok := a.registry.Get(provider.TagEmbed); ok {
		if framer, ok := p.(*embed.Provider); ok {
			opts = append(opts, resolve.WithFramer(framer))
		}
	}
	a.resolver = resolve.New(gateway, a.registry, opts...)
	return a, nil
}

// Close flushes history and persists caches.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// caller is the identity attached to CLI resolutions.
func caller(cfg *config.Config, req resolve.Request) resolve.Caller {
	return resolve.Caller{Locale: cfg.Locale, UserID: cfg.UserID, Route: req.Route()}
}
