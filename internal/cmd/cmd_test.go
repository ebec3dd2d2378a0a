package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Shane/sora/internal/config"
	"github.com/Digital-Shane/sora/internal/history"
	"github.com/Digital-Shane/sora/internal/metadata"
	"github.com/Digital-Shane/sora/internal/playback"
	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type fakeGateway struct{}

func (fakeGateway) SeriesDetail(ctx context.Context, id int, language string) (*metadata.Series, error) {
	if id != 70523 {
		return nil, metadata.ErrNotFound
	}
	return &metadata.Series{ID: 70523, Name: "Dark", OriginalLanguage: "en", EpisodeRunTime: []int{55}}, nil
}

func (fakeGateway) SeriesExternalID(ctx context.Context, id int) (string, error) {
	return "tt5753856", nil
}

func (fakeGateway) Recommendations(ctx context.Context, id int, language string) ([]metadata.Recommendation, error) {
	return nil, nil
}

func (fakeGateway) SeasonDetail(ctx context.Context, id, season int, language string) (*metadata.Season, error) {
	return &metadata.Season{SeasonNumber: season, Episodes: []metadata.EpisodeSummary{{Number: 1, Name: "Secrets"}, {Number: 2, Name: "Lies"}}}, nil
}

func (fakeGateway) Translations(ctx context.Context, id int) ([]metadata.Translation, error) {
	return nil, nil
}

func (fakeGateway) Rating(ctx context.Context, imdbID string) (*metadata.Rating, error) {
	return &metadata.Rating{Value: 8.7, Source: "imdb"}, nil
}

// setupHome points config and history at a temp dir with only Embed enabled,
// so nothing reaches the network.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"SORA_TMDB_API_KEY", "SORA_OMDB_API_KEY", "SORA_TVDB_API_KEY"} {
		t.Setenv(key, "")
	}

	raw := `{
  "providers": {
    "Flixhq": {"enabled": false},
    "KissKh": {"enabled": false},
    "Embed": {"enabled": true}
  },
  "log_level": "error"
}`
	dir := filepath.Join(home, ".sora")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}
	return home
}

func offlineGateway(t *testing.T) {
	t.Helper()
	orig := newGateway
	newGateway = func(*config.Config, *zap.Logger) (metadata.Gateway, func() error, error) {
		return fakeGateway{}, nil, nil
	}
	t.Cleanup(func() { newGateway = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logLevel, logFormat, locale, userID = "", "", "", ""
	resolveProvider, resolveNativeID, resolveJSON = "Embed", "", false
	historyLimit, configForce = 20, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveEmbedAsJSON(t *testing.T) {
	setupHome(t)
	offlineGateway(t)

	out, err := execute(t, "resolve", "70523", "1", "2", "--provider", "Embed", "--json")
	if err != nil {
		t.Fatalf("resolve error = %v\n%s", err, out)
	}

	var pb resolve.Playback
	if err := json.Unmarshal([]byte(out), &pb); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if pb.Title != "Watch Dark season 1 episode 2 HD online Free - Sora" {
		t.Errorf("Title = %q", pb.Title)
	}
	if len(pb.Embed) != 3 {
		t.Errorf("Embed = %d frames, want 3", len(pb.Embed))
	}
	if !pb.UsesEmbed() {
		t.Error("an Embed resolution should have no streams")
	}
}

func TestResolveRecordsHistory(t *testing.T) {
	setupHome(t)
	offlineGateway(t)

	out, err := execute(t, "resolve", "70523", "1", "1", "--user", "viewer-7")
	if err != nil {
		t.Fatalf("resolve error = %v\n%s", err, out)
	}
	for _, want := range []string{"Dark S01E01 Secrets", "Rating:     8.7 (imdb)", "Source:     Embed", "Embeddable players"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	dir, err := history.DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	entries, err := history.NewFileStore(dir).Read(0)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	e := entries[0]
	got := []interface{}{e.UserID, e.MediaID, e.Title, e.Season, e.Episode, e.Provider, e.Duration, e.Route}
	want := []interface{}{"viewer-7", 70523, "Dark", 1, 1, "Embed", 3300, "/tv-shows/70523/season/1/episode/1?provider=Embed"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history entry mismatch (-want +got):\n%s", diff)
	}

	listed, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(listed, "S01E01") || !strings.Contains(listed, "Dark") {
		t.Errorf("history output:\n%s", listed)
	}
}

func TestResolveRejectsBadRequests(t *testing.T) {
	setupHome(t)
	offlineGateway(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "non-numeric series", args: []string{"resolve", "dark", "1", "1"}, want: resolve.ErrRequestInvalid},
		{name: "zero episode", args: []string{"resolve", "70523", "1", "0"}, want: resolve.ErrRequestInvalid},
		{name: "missing native id", args: []string{"resolve", "70523", "1", "1", "--provider", "Flixhq"}, want: resolve.ErrProviderDataMissing},
		{name: "unknown series", args: []string{"resolve", "1", "1", "1"}, want: resolve.ErrUpstreamUnresolvable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolveNeedsTMDBKey(t *testing.T) {
	setupHome(t)

	_, err := execute(t, "resolve", "70523", "1", "1")
	if err == nil || !strings.Contains(err.Error(), "tmdb_api_key") {
		t.Errorf("error = %v, want missing tmdb_api_key", err)
	}
}

func TestProvidersCommand(t *testing.T) {
	setupHome(t)

	out, err := execute(t, "providers")
	if err != nil {
		t.Fatalf("providers error = %v", err)
	}
	enabled := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		cells := tableCells(line)
		if len(cells) < 2 {
			continue
		}
		enabled[cells[0]] = cells[1]
	}
	want := map[string]string{"TAG": "ENABLED"}
	for _, tag := range provider.KnownTags {
		want[string(tag)] = "no"
	}
	want[string(provider.TagEmbed)] = "yes"
	if diff := cmp.Diff(want, enabled); diff != "" {
		t.Errorf("providers table mismatch (-want +got):\n%s", diff)
	}
}

// tableCells splits a rendered table row into trimmed cells.
func tableCells(line string) []string {
	var cells []string
	for _, cell := range strings.Split(line, "│") {
		if cell = strings.TrimSpace(cell); cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

func TestConfigInitAndShow(t *testing.T) {
	home := setupHome(t)
	if err := os.Remove(filepath.Join(home, ".sora", "config.json")); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".sora", "config.json"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("second init should refuse to overwrite")
	}

	t.Setenv("SORA_TMDB_API_KEY", "0123456789abcdef")
	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("config show leaked the TMDB key")
	}
	var shown config.Config
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("config show output is not JSON: %v", err)
	}
	if shown.TMDBAPIKey != "****cdef" {
		t.Errorf("TMDBAPIKey = %q, want ****cdef", shown.TMDBAPIKey)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"abc":      "****",
		"abcdefgh": "****efgh",
	}
	for in, want := range tests {
		if got := maskSecret(in); got != want {
			t.Errorf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunPlain(t *testing.T) {
	pb := &resolve.Playback{
		Request:  resolve.Request{SeriesID: 70523, Season: 1, Episode: 1, Provider: provider.TagEmbed},
		Provider: provider.TagEmbed,
		Series:   &metadata.Series{Name: "Dark"},
	}
	next := pb.Request.Next()
	run := func(ctx context.Context, observe func(playback.Update)) error {
		observe(playback.Update{State: playback.StatePlaying, Playback: pb})
		observe(playback.Update{State: playback.StateEnded, Playback: pb, Next: &next})
		return context.Canceled
	}

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runPlain(ctx, &out, run); err != nil {
		t.Fatalf("runPlain() error = %v", err)
	}
	want := "playing  Dark S01E01\nnext     /tv-shows/70523/season/1/episode/2?provider=Embed\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("runPlain() output mismatch (-want +got):\n%s", diff)
	}
}
