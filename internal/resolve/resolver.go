// Package resolve turns an episode request into a playable result by
// combining catalog metadata with exactly one stream source.
package resolve

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Shane/sora/internal/history"
	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/embed"
	"github.com/Digital-Shane/sora/internal/selection"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Framer produces fallback embedded player URLs.
type Framer interface {
	Frames(target embed.Target) []embed.Frame
}

// Recorder receives watch history after a resolution succeeds.
type Recorder interface {
	Dispatch(entry history.Entry)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the track selection policy.
func WithPolicy(p *selection.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithFramer sets the source of fallback frames.
func WithFramer(f Framer) Option {
	return func(r *Resolver) { r.framer = f }
}

// WithHistory records watched episodes for identified callers.
func WithHistory(rec Recorder) Option {
	return func(r *Resolver) { r.history = rec }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l.Named("resolver")
		}
	}
}

// WithLanguage sets the catalog language used when the caller has no locale.
func WithLanguage(lang string) Option {
	return func(r *Resolver) {
		if lang != "" {
			r.language = lang
		}
	}
}

// WithAvailability toggles the search for other sources carrying the title.
func WithAvailability(enabled bool) Option {
	return func(r *Resolver) { r.availability = enabled }
}

// Resolver orchestrates one resolution per call. It is safe for concurrent
// use.
type Resolver struct {
	gateway      metadata.Gateway
	registry     *provider.Registry
	policy       *selection.Policy
	framer       Framer
	history      Recorder
	logger       *zap.Logger
	language     string
	availability bool
}

// New creates a resolver over a catalog and a provider registry.
func New(gateway metadata.Gateway, registry *provider.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		gateway:      gateway,
		registry:     registry,
		policy:       selection.New(""),
		logger:       zap.NewNop(),
		language:     "en-US",
		availability: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve validates req, gathers metadata and the source payload, and
// assembles the playback.
func (r *Resolver) Resolve(ctx context.Context, req Request, caller Caller) (*Playback, error) {
	start := time.Now()
	pb, err := r.resolve(ctx, req, caller)

	fields := []zap.Field{
		zap.Int("series_id", req.SeriesID),
		zap.Int("season", req.Season),
		zap.Int("episode", req.Episode),
		zap.String("provider", string(req.Provider)),
		zap.String("native_id", req.NativeID),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		r.logger.Info("resolution failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	r.logger.Info("resolution complete", append(fields,
		zap.Int("streams", len(pb.Streams)),
		zap.Int("subtitles", len(pb.Subtitles)),
		zap.Bool("embed", pb.UsesEmbed()))...)
	return pb, nil
}

type catalogResult struct {
	series          *metadata.Series
	imdbID          string
	recommendations []metadata.Recommendation
	season          *metadata.Season
}

type sourceResult struct {
	payload      *provider.Payload
	rating       *metadata.Rating
	translations []metadata.Translation
	availability []provider.Availability
}

func (r *Resolver) resolve(ctx context.Context, req Request, caller Caller) (*Playback, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lang := caller.Locale
	if lang == "" {
		lang = r.language
	}

	cat, err := r.fetchCatalog(ctx, req, lang)
	if err != nil {
		return nil, err
	}

	needsTranslation := cat.series.OriginalLanguage != "en" || BaseLanguage(caller.Locale) != "en"

	src := r.fetchSources(ctx, req, cat, needsTranslation)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pb := r.assemble(req, caller, cat, src)

	if caller.UserID != "" && r.history != nil {
		r.history.Dispatch(historyEntry(pb, caller))
	}
	return pb, nil
}

// fetchCatalog issues the four catalog reads at once and joins them.
func (r *Resolver) fetchCatalog(ctx context.Context, req Request, lang string) (catalogResult, error) {
	var (
		wg        sync.WaitGroup
		out       catalogResult
		seriesErr error
		imdbErr   error
		recsErr   error
		seasonErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		out.series, seriesErr = r.gateway.SeriesDetail(ctx, req.SeriesID, lang)
	}()
	go func() {
		defer wg.Done()
		out.imdbID, imdbErr = r.gateway.SeriesExternalID(ctx, req.SeriesID)
	}()
	go func() {
		defer wg.Done()
		out.recommendations, recsErr = r.gateway.Recommendations(ctx, req.SeriesID, lang)
	}()
	go func() {
		defer wg.Done()
		out.season, seasonErr = r.gateway.SeasonDetail(ctx, req.SeriesID, req.Season, lang)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return catalogResult{}, err
	}

	if seriesErr != nil || out.series == nil {
		return catalogResult{}, &NotFoundError{Kind: KindUpstreamUnresolvable, Message: "series not found", Err: seriesErr}
	}
	if imdbErr != nil || out.imdbID == "" {
		return catalogResult{}, &NotFoundError{Kind: KindUpstreamUnresolvable, Message: "no imdb cross-reference", Err: imdbErr}
	}
	if recsErr != nil {
		r.logger.Debug("recommendations unavailable", zap.Int("series_id", req.SeriesID), zap.Error(recsErr))
	}
	if seasonErr != nil {
		r.logger.Warn("season unavailable", zap.Int("series_id", req.SeriesID), zap.Int("season", req.Season), zap.Error(seasonErr))
		out.season = nil
	}
	return out, nil
}

// fetchSources runs the source call alongside the rating, translations and
// availability lookups. None of them can fail the resolution.
func (r *Resolver) fetchSources(ctx context.Context, req Request, cat catalogResult, needsTranslation bool) sourceResult {
	var (
		wg  sync.WaitGroup
		out sourceResult
	)

	if adapter, ok := r.adapterFor(req.Provider); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.payload = r.fetchPayload(ctx, adapter, req)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rating, err := r.gateway.Rating(ctx, cat.imdbID)
		if err != nil {
			r.logger.Debug("rating unavailable", zap.String("imdb_id", cat.imdbID), zap.Error(err))
			return
		}
		out.rating = rating
	}()

	if needsTranslation {
		wg.Add(1)
		go func() {
			defer wg.Done()
			translations, err := r.gateway.Translations(ctx, req.SeriesID)
			if err != nil {
				r.logger.Warn("translations unavailable", zap.Int("series_id", req.SeriesID), zap.Error(err))
				return
			}
			out.translations = translations
		}()
	}

	if r.availability {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.availability = r.searchAvailability(ctx, req, cat.series)
		}()
	}

	wg.Wait()
	return out
}

// adapterFor returns the adapter to call for tag. Unknown, disabled and
// non-fetching sources such as the embed fallback are not called.
func (r *Resolver) adapterFor(tag provider.Tag) (provider.Provider, bool) {
	if r.registry == nil {
		return nil, false
	}
	adapter, ok := r.registry.Lookup(tag)
	if !ok {
		switch {
		case tag == provider.TagEmbed:
		case slices.Contains(provider.KnownTags, tag) && r.registered(tag):
			r.logger.Warn("requested provider is disabled, falling back to embeddable players",
				zap.String("provider", string(tag)))
		default:
			r.logger.Debug("no enabled adapter", zap.String("provider", string(tag)))
		}
		return nil, false
	}
	if !adapter.Capabilities().Fetches {
		return nil, false
	}
	return adapter, true
}

func (r *Resolver) registered(tag provider.Tag) bool {
	_, ok := r.registry.Get(tag)
	return ok
}

func (r *Resolver) fetchPayload(ctx context.Context, adapter provider.Provider, req Request) *provider.Payload {
	payload, err := adapter.FetchEpisode(ctx, provider.EpisodeQuery{
		NativeID: req.NativeID,
		Season:   req.Season,
		Episode:  req.Episode,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("provider fetch failed",
				zap.String("provider", string(req.Provider)),
				zap.String("native_id", req.NativeID),
				zap.Error(err))
		}
		return nil
	}
	return payload
}

func (r *Resolver) searchAvailability(ctx context.Context, req Request, series *metadata.Series) []provider.Availability {
	if r.registry == nil {
		return nil
	}
	query := provider.SearchQuery{
		Title:         series.Name,
		OriginalTitle: series.OriginalName,
		Year:          series.Year(),
		Season:        req.Season,
	}

	enabled := r.registry.Enabled()
	found := make([][]provider.Availability, len(enabled))

	var wg sync.WaitGroup
	for i, p := range enabled {
		searcher, ok := p.(provider.Searcher)
		if !ok || !p.Capabilities().Searches {
			continue
		}
		wg.Add(1)
		go func(i int, tag provider.Tag, searcher provider.Searcher) {
			defer wg.Done()
			results, err := searcher.Search(ctx, query)
			if err != nil {
				r.logger.Debug("availability search failed", zap.String("provider", string(tag)), zap.Error(err))
				return
			}
			found[i] = results
		}(i, p.Tag(), searcher)
	}
	wg.Wait()

	var out []provider.Availability
	for _, results := range found {
		out = append(out, results...)
	}
	return out
}

func (r *Resolver) assemble(req Request, caller Caller, cat catalogResult, src sourceResult) *Playback {
	pb := &Playback{
		Request:         req,
		Provider:        req.Provider,
		NativeID:        req.NativeID,
		Title:           pageTitle(cat.series.Name, req.Season, req.Episode),
		Description:     pageDescription(cat.series.Name, req.Season, req.Episode),
		Series:          cat.series,
		ImdbID:          cat.imdbID,
		Season:          cat.season,
		Translations:    src.translations,
		Rating:          src.rating,
		Recommendations: cat.recommendations,
		Availability:    src.availability,
	}

	if len(src.translations) > 0 {
		locale := caller.Locale
		if locale == "" {
			locale = r.language
		}
		if t, ok := metadata.FindTranslation(src.translations, locale); ok {
			pb.Localized = &t
		}
	}

	if src.payload != nil {
		pb.Streams = slices.Clone(src.payload.Streams)
		pb.Subtitles = slices.Clone(src.payload.Subtitles)
		pb.HasNextEpisode = HasNextEpisode(req.Episode, cat.season.EpisodeCount(), src.payload.EpisodeCount)
	}
	if pb.CanAdvance() {
		pb.NextRoute = req.Next().Route()
	}

	pb.Selection = r.policy.SelectDefaults(pb.Streams, pb.Subtitles, req.Provider)

	if pb.UsesEmbed() && r.framer != nil {
		pb.Embed = r.framer.Frames(embed.Target{
			TMDBID:  req.SeriesID,
			IMDbID:  cat.imdbID,
			Season:  req.Season,
			Episode: req.Episode,
		})
	}
	return pb
}

func historyEntry(pb *Playback, caller Caller) history.Entry {
	route := caller.Route
	if route == "" {
		route = pb.Request.Route()
	}
	return history.Entry{
		UserID:    caller.UserID,
		MediaType: history.MediaTV,
		MediaID:   pb.Request.SeriesID,
		Route:     route,
		Provider:  string(pb.Provider),
		NativeID:  pb.NativeID,
		Season:    pb.Request.Season,
		Episode:   pb.Request.Episode,
		Title:     pb.Series.Name,
		Overview:  pb.Series.Overview,
		Poster:    metadata.ImageURL(pb.Series.BackdropPath, "w300"),
		Duration:  pb.Series.RunTime() * 60,
	}
}

// BaseLanguage reduces a locale such as "pt-BR" to "pt". Empty or
// unparseable locales are treated as English.
func BaseLanguage(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
