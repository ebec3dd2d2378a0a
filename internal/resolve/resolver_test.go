package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Digital-Shane/sora/internal/history"
	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/provider/embed"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeGateway struct {
	series       *metadata.Series
	imdbID       string
	season       *metadata.Season
	translations []metadata.Translation

	gate    chan struct{}
	started chan string

	translationCalls atomic.Int32
}

func newGateway() *fakeGateway {
	return &fakeGateway{
		series: &metadata.Series{
			ID:               70523,
			Name:             "Dark",
			OriginalName:     "Dark",
			OriginalLanguage: "en",
			FirstAirDate:     "2017-12-01",
			PosterPath:       "/poster.jpg",
			BackdropPath:     "/backdrop.jpg",
			Overview:         "A missing child sets four families on a frantic hunt.",
			EpisodeRunTime:   []int{53},
		},
		imdbID: "tt5753856",
		season: &metadata.Season{SeasonNumber: 1, Episodes: []metadata.EpisodeSummary{
			{Number: 1, Name: "Secrets"}, {Number: 2, Name: "Lies"}, {Number: 3, Name: "Past and Present"},
		}},
		translations: []metadata.Translation{
			{Code: "de", Name: "Deutsch", Title: "Dark"},
			{Code: "pt", Name: "Português", Title: "Dark (pt)"},
		},
	}
}

func (g *fakeGateway) block(ctx context.Context, name string) {
	if g.started != nil {
		g.started <- name
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
		}
	}
}

func (g *fakeGateway) SeriesDetail(ctx context.Context, id int, language string) (*metadata.Series, error) {
	g.block(ctx, "series")
	if g.series == nil {
		return nil, metadata.ErrNotFound
	}
	s := *g.series
	return &s, nil
}

func (g *fakeGateway) SeriesExternalID(ctx context.Context, id int) (string, error) {
	g.block(ctx, "imdb")
	if g.imdbID == "" {
		return "", metadata.ErrNotFound
	}
	return g.imdbID, nil
}

func (g *fakeGateway) Recommendations(ctx context.Context, id int, language string) ([]metadata.Recommendation, error) {
	g.block(ctx, "recommendations")
	return []metadata.Recommendation{{ID: 1, Name: "1899"}}, nil
}

func (g *fakeGateway) SeasonDetail(ctx context.Context, id, season int, language string) (*metadata.Season, error) {
	g.block(ctx, "season")
	if g.season == nil {
		return nil, metadata.ErrNotFound
	}
	return g.season, nil
}

func (g *fakeGateway) Translations(ctx context.Context, id int) ([]metadata.Translation, error) {
	g.translationCalls.Add(1)
	return g.translations, nil
}

func (g *fakeGateway) Rating(ctx context.Context, imdbID string) (*metadata.Rating, error) {
	return &metadata.Rating{Value: 8.7, Source: "imdb"}, nil
}

type fakeAdapter struct {
	tag     provider.Tag
	payload *provider.Payload
	err     error
	calls   atomic.Int32
	found   []provider.Availability
}

func (f *fakeAdapter) Tag() provider.Tag                      { return f.tag }
func (f *fakeAdapter) Name() string                           { return string(f.tag) }
func (f *fakeAdapter) Description() string                    { return "fake" }
func (f *fakeAdapter) Configure(map[string]interface{}) error { return nil }
func (f *fakeAdapter) ConfigSchema() provider.ConfigSchema    { return provider.ConfigSchema{} }
func (f *fakeAdapter) Capabilities() provider.ProviderCapabilities {
	return provider.ProviderCapabilities{Fetches: true, TwoStep: true, Searches: true, Priority: 50}
}

func (f *fakeAdapter) FetchEpisode(ctx context.Context, query provider.EpisodeQuery) (*provider.Payload, error) {
	f.calls.Add(1)
	return f.payload, f.err
}

func (f *fakeAdapter) Search(ctx context.Context, query provider.SearchQuery) ([]provider.Availability, error) {
	return f.found, nil
}

func flixPayload() *provider.Payload {
	return &provider.Payload{
		Streams: []provider.StreamVariant{
			{Quality: "480", URL: "https://cdn.example/480.m3u8", IsM3U8: true},
			{Quality: "720", URL: "http://cdn.example/720.m3u8", IsM3U8: true},
		},
		Subtitles: []provider.SubtitleVariant{
			{Language: "German", URL: "https://subs.example/de.vtt"},
			{Language: "English", URL: "https://subs.example/en.vtt"},
		},
		EpisodeCount: provider.Count(3),
	}
}

func newRegistry(t *testing.T, adapters ...provider.Provider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, a := range adapters {
		if err := reg.Register(a, a.Capabilities().Priority); err != nil {
			t.Fatalf("Register(%s) error = %v", a.Tag(), err)
		}
		if err := reg.Enable(a.Tag()); err != nil {
			t.Fatalf("Enable(%s) error = %v", a.Tag(), err)
		}
	}
	return reg
}

type recorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *recorder) Dispatch(entry history.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func flixRequest(episode int) Request {
	return Request{SeriesID: 70523, Season: 1, Episode: episode, Provider: provider.TagFlixhq, NativeID: "tv/watch-dark-19950"}
}

func TestResolveEmbedInvokesNoAdapter(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}
	frames := embed.New()
	r := New(newGateway(), newRegistry(t, flix, frames), WithFramer(frames), WithAvailability(false))

	pb, err := r.Resolve(context.Background(), Request{SeriesID: 70523, Season: 1, Episode: 2, Provider: provider.TagEmbed}, Caller{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if flix.calls.Load() != 0 {
		t.Errorf("adapter called %d times, want 0", flix.calls.Load())
	}
	if len(pb.Streams) != 0 || len(pb.Subtitles) != 0 {
		t.Errorf("variants = %+v / %+v, want none", pb.Streams, pb.Subtitles)
	}
	if !pb.UsesEmbed() || len(pb.Embed) != 3 {
		t.Errorf("Embed = %+v, want three fallback frames", pb.Embed)
	}
	if pb.HasNextEpisode != nil {
		t.Errorf("HasNextEpisode = %v, want indeterminate", *pb.HasNextEpisode)
	}
}

func TestResolveWarnsWhenRequestedProviderIsDisabled(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}
	reg := provider.NewRegistry()
	if err := reg.Register(flix, flix.Capabilities().Priority); err != nil {
		t.Fatal(err)
	}
	frames := embed.New()
	core, logs := observer.New(zap.InfoLevel)
	r := New(newGateway(), reg, WithFramer(frames), WithAvailability(false), WithLogger(zap.New(core)))

	pb, err := r.Resolve(context.Background(), flixRequest(2), Caller{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if flix.calls.Load() != 0 {
		t.Errorf("disabled adapter called %d times", flix.calls.Load())
	}
	if !pb.UsesEmbed() || len(pb.Embed) != 3 {
		t.Errorf("Embed = %+v, want the fallback frames", pb.Embed)
	}

	warnings := logs.FilterLevelExact(zap.WarnLevel).FilterField(zap.String("provider", "Flixhq")).All()
	if len(warnings) != 1 {
		t.Errorf("warnings = %+v, want one naming Flixhq", logs.All())
	}
}

func TestResolveRejectsIncompleteRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing series", Request{Season: 1, Episode: 1, Provider: provider.TagFlixhq, NativeID: "x"}, ErrRequestInvalid},
		{"missing season", Request{SeriesID: 1, Episode: 1, Provider: provider.TagKissKh, NativeID: "1"}, ErrRequestInvalid},
		{"missing episode", Request{SeriesID: 1, Season: 1, Provider: provider.TagEmbed}, ErrRequestInvalid},
		{"missing provider", Request{SeriesID: 1, Season: 1, Episode: 1, NativeID: "x"}, ErrRequestInvalid},
		{"missing everything", Request{}, ErrRequestInvalid},
		{"missing native id", Request{SeriesID: 1, Season: 1, Episode: 1, Provider: provider.TagLoklok}, ErrProviderDataMissing},
		{"missing episode and native id", Request{SeriesID: 1, Season: 1, Provider: provider.TagFlixhq}, ErrRequestInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}
			r := New(newGateway(), newRegistry(t, flix))
			_, err := r.Resolve(context.Background(), tt.req, Caller{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.want)
			}
			if flix.calls.Load() != 0 {
				t.Error("adapter was called for an invalid request")
			}
		})
	}
}

func TestResolveUpstreamUnresolvable(t *testing.T) {
	noSeries := newGateway()
	noSeries.series = nil
	noImdb := newGateway()
	noImdb.imdbID = ""

	for name, gw := range map[string]*fakeGateway{"series": noSeries, "imdb": noImdb} {
		t.Run(name, func(t *testing.T) {
			r := New(gw, newRegistry(t, &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}))
			_, err := r.Resolve(context.Background(), flixRequest(1), Caller{})
			if !errors.Is(err, ErrUpstreamUnresolvable) {
				t.Fatalf("Resolve() error = %v, want UpstreamUnresolvable", err)
			}
			nf, ok := AsNotFound(err)
			if !ok || nf.Response() != "Not Found" {
				t.Errorf("AsNotFound() = %v, %v", nf, ok)
			}
		})
	}
}

func TestResolveFullPlayback(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}
	gw := newGateway()
	r := New(gw, newRegistry(t, flix), WithAvailability(false), WithLogger(zaptest.NewLogger(t)))

	pb, err := r.Resolve(context.Background(), flixRequest(2), Caller{Locale: "en-US"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if gw.translationCalls.Load() != 0 {
		t.Error("translations fetched for an English series and locale")
	}
	if pb.Translations != nil {
		t.Errorf("Translations = %+v, want omitted", pb.Translations)
	}
	if !pb.CanAdvance() {
		t.Error("CanAdvance() = false, want true")
	}
	if pb.NextRoute != "/tv-shows/70523/season/1/episode/3?id=tv%2Fwatch-dark-19950&provider=Flixhq" {
		t.Errorf("NextRoute = %q", pb.NextRoute)
	}
	if pb.Selection.Stream == nil || pb.Selection.Stream.Quality != "720" {
		t.Fatalf("default stream = %+v, want 720", pb.Selection.Stream)
	}
	if pb.Selection.Stream.URL != "https://cors.proxy.consumet.org/http://cdn.example/720.m3u8" {
		t.Errorf("default stream URL = %q, want relayed", pb.Selection.Stream.URL)
	}
	if pb.Selection.Subtitle == nil || pb.Selection.Subtitle.Language != "English" {
		t.Errorf("default subtitle = %+v, want English", pb.Selection.Subtitle)
	}
	if pb.Streams[1].URL != "http://cdn.example/720.m3u8" {
		t.Errorf("raw streams were modified: %+v", pb.Streams)
	}
	if pb.Rating == nil || pb.Rating.Value != 8.7 {
		t.Errorf("Rating = %+v", pb.Rating)
	}
	if pb.Embed != nil {
		t.Errorf("Embed = %+v, want none when streams exist", pb.Embed)
	}
	if pb.EpisodeName() != "Lies" {
		t.Errorf("EpisodeName() = %q", pb.EpisodeName())
	}
	if pb.Title != "Watch Dark season 1 episode 2 HD online Free - Sora" {
		t.Errorf("Title = %q", pb.Title)
	}
}

func TestResolveTranslationBranch(t *testing.T) {
	tests := []struct {
		name      string
		original  string
		locale    string
		wantFetch bool
		wantLocal string
	}{
		{"english series and locale", "en", "en", false, ""},
		{"foreign locale", "en", "pt-BR", true, "Dark (pt)"},
		{"foreign original language", "de", "en", true, ""},
		{"no locale defaults to english", "en", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway()
			gw.series.OriginalLanguage = tt.original
			r := New(gw, newRegistry(t, &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}), WithAvailability(false))

			pb, err := r.Resolve(context.Background(), flixRequest(1), Caller{Locale: tt.locale})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if fetched := gw.translationCalls.Load() == 1; fetched != tt.wantFetch {
				t.Errorf("translations fetched = %v, want %v", fetched, tt.wantFetch)
			}
			got := ""
			if pb.Localized != nil {
				got = pb.Localized.Title
			}
			if got != tt.wantLocal {
				t.Errorf("Localized title = %q, want %q", got, tt.wantLocal)
			}
		})
	}
}

func TestResolveNoMatchingEpisodeFallsBackToEmbed(t *testing.T) {
	kiss := &fakeAdapter{tag: provider.TagKissKh, payload: &provider.Payload{EpisodeCount: provider.Count(16)}}
	r := New(newGateway(), newRegistry(t, kiss), WithFramer(embed.New()), WithAvailability(false))

	pb, err := r.Resolve(context.Background(), Request{SeriesID: 70523, Season: 1, Episode: 2, Provider: provider.TagKissKh, NativeID: "4620"}, Caller{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !pb.UsesEmbed() || len(pb.Embed) == 0 {
		t.Errorf("expected embed fallback, got %+v", pb)
	}
	if pb.Selection.Stream != nil {
		t.Errorf("Selection.Stream = %+v, want nil", pb.Selection.Stream)
	}
}

func TestResolveAdapterFailureDegrades(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, err: &provider.ProviderError{Provider: "flixhq", Code: provider.CodeUnavailable}}
	r := New(newGateway(), newRegistry(t, flix), WithAvailability(false))

	pb, err := r.Resolve(context.Background(), flixRequest(1), Caller{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !pb.UsesEmbed() || pb.HasNextEpisode != nil {
		t.Errorf("playback = %+v, want metadata only", pb)
	}
}

func TestResolveUnknownTagIsMetadataOnly(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}
	r := New(newGateway(), newRegistry(t, flix), WithAvailability(false))

	pb, err := r.Resolve(context.Background(), Request{SeriesID: 70523, Season: 1, Episode: 1, Provider: "Vidcloud", NativeID: "x"}, Caller{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if flix.calls.Load() != 0 || !pb.UsesEmbed() {
		t.Errorf("unknown tag reached an adapter or produced streams")
	}
	if pb.Series == nil || pb.Series.Name != "Dark" {
		t.Errorf("Series = %+v", pb.Series)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	flix := &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload(), found: []provider.Availability{{Provider: provider.TagFlixhq, NativeID: "tv/watch-dark-19950"}}}
	kiss := &fakeAdapter{tag: provider.TagKissKh, found: []provider.Availability{{Provider: provider.TagKissKh, NativeID: "4620", EpisodeCount: 10}}}
	r := New(newGateway(), newRegistry(t, flix, kiss), WithFramer(embed.New()))

	first, err := r.Resolve(context.Background(), flixRequest(2), Caller{Locale: "de"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve(context.Background(), flixRequest(2), Caller{Locale: "de"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("resolutions differ (-first +second):\n%s", diff)
	}
	if len(first.Availability) != 2 {
		t.Errorf("Availability = %+v, want both sources", first.Availability)
	}
}

func TestResolveIssuesCatalogReadsConcurrently(t *testing.T) {
	gw := newGateway()
	gw.gate = make(chan struct{})
	gw.started = make(chan string, 4)
	r := New(gw, newRegistry(t, &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}), WithAvailability(false))

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), flixRequest(1), Caller{})
		done <- err
	}()

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 4 {
		select {
		case name := <-gw.started:
			seen[name] = true
		case <-timeout:
			t.Fatalf("only %v started while the others were blocked", seen)
		}
	}
	close(gw.gate)

	if err := <-done; err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func TestResolveCancelled(t *testing.T) {
	gw := newGateway()
	gw.gate = make(chan struct{})
	r := New(gw, newRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, flixRequest(1), Caller{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestResolveRecordsHistoryForIdentifiedCallers(t *testing.T) {
	rec := &recorder{}
	r := New(newGateway(), newRegistry(t, &fakeAdapter{tag: provider.TagFlixhq, payload: flixPayload()}), WithHistory(rec), WithAvailability(false))

	if _, err := r.Resolve(context.Background(), flixRequest(2), Caller{}); err != nil {
		t.Fatal(err)
	}
	if len(rec.entries) != 0 {
		t.Fatalf("anonymous resolution recorded %d entries", len(rec.entries))
	}

	if _, err := r.Resolve(context.Background(), flixRequest(2), Caller{UserID: "u-42"}); err != nil {
		t.Fatal(err)
	}
	want := history.Entry{
		UserID:    "u-42",
		MediaType: history.MediaTV,
		MediaID:   70523,
		Route:     "/tv-shows/70523/season/1/episode/2?id=tv%2Fwatch-dark-19950&provider=Flixhq",
		Provider:  "Flixhq",
		NativeID:  "tv/watch-dark-19950",
		Season:    1,
		Episode:   2,
		Title:     "Dark",
		Overview:  "A missing child sets four families on a frantic hunt.",
		Poster:    "https://image.tmdb.org/t/p/w300/backdrop.jpg",
		Duration:  53 * 60,
	}
	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	if diff := cmp.Diff(want, rec.entries[0]); diff != "" {
		t.Errorf("history entry mismatch (-want +got):\n%s", diff)
	}
}

func TestHasNextEpisode(t *testing.T) {
	tests := []struct {
		name          string
		current       int
		total         int
		providerTotal *int
		want          *bool
	}{
		{"both have more", 2, 10, provider.Count(10), boolPtr(true)},
		{"catalog exhausted", 10, 10, provider.Count(12), boolPtr(false)},
		{"provider behind", 5, 10, provider.Count(5), boolPtr(false)},
		{"no provider count", 1, 10, nil, nil},
		{"no season", 1, 0, provider.Count(3), boolPtr(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, HasNextEpisode(tt.current, tt.total, tt.providerTotal)); diff != "" {
				t.Errorf("HasNextEpisode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestBaseLanguage(t *testing.T) {
	tests := map[string]string{"": "en", "en-US": "en", "pt-BR": "pt", "ja": "ja", "!!": "en"}
	for in, want := range tests {
		if got := BaseLanguage(in); got != want {
			t.Errorf("BaseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
