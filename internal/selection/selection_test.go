package selection

import (
	"testing"

	"github.com/Digital-Shane/sora/internal/provider"
	"github.com/google/go-cmp/cmp"
)

func streams(qualities ...string) []provider.StreamVariant {
	out := make([]provider.StreamVariant, len(qualities))
	for i, q := range qualities {
		out[i] = provider.StreamVariant{Quality: q, URL: "https://cdn.example/" + q + ".m3u8", IsM3U8: true}
	}
	return out
}

func subs(labels ...string) []provider.SubtitleVariant {
	out := make([]provider.SubtitleVariant, len(labels))
	for i, l := range labels {
		out[i] = provider.SubtitleVariant{Language: l, URL: "https://subs.example/" + l}
	}
	return out
}

func TestDefaultStream(t *testing.T) {
	tests := []struct {
		name    string
		streams []provider.StreamVariant
		tag     provider.Tag
		want    int
	}{
		{"loklok prefers auto", streams("360", "auto"), provider.TagLoklok, 1},
		{"loklok falls back to first", streams("360", "1080"), provider.TagLoklok, 0},
		{"flixhq prefers 720", streams("480", "720"), provider.TagFlixhq, 1},
		{"flixhq accepts 720p", streams("1080p", "720p"), provider.TagFlixhq, 1},
		{"flixhq falls back to first", streams("480", "auto"), provider.TagFlixhq, 0},
		{"kisskh uses the single variant", streams("auto"), provider.TagKissKh, 0},
		{"embed prefers auto", streams("720", "auto"), provider.TagEmbed, 1},
		{"unknown behaves like embed", streams("720", "auto"), provider.Tag("Other"), 1},
		{"empty list", nil, provider.TagLoklok, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultStream(tt.streams, tt.tag); got != tt.want {
				t.Errorf("DefaultStream() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDefaultSubtitle(t *testing.T) {
	hinted := subs("Indonesia", "English", "Korean")
	hinted[2].Default = true

	tests := []struct {
		name string
		subs []provider.SubtitleVariant
		tag  provider.Tag
		want int
	}{
		{"loklok English label", subs("Spanish (es)", "English (en)"), provider.TagLoklok, 1},
		{"loklok is case sensitive", subs("english (en)"), provider.TagLoklok, -1},
		{"flixhq any en substring", subs("German", "French"), provider.TagFlixhq, 1},
		{"flixhq case insensitive", subs("Arabic", "ENGLISH"), provider.TagFlixhq, 1},
		{"flixhq no match", subs("Arabic", "Polski"), provider.TagFlixhq, -1},
		{"kisskh hint wins", hinted, provider.TagKissKh, 2},
		{"kisskh English without hint", subs("Indonesia", "English"), provider.TagKissKh, 1},
		{"embed never defaults", subs("English"), provider.TagEmbed, -1},
		{"empty", nil, provider.TagLoklok, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultSubtitle(tt.subs, tt.tag); got != tt.want {
				t.Errorf("DefaultSubtitle() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSubtitleFormat(t *testing.T) {
	want := map[provider.Tag]Format{
		provider.TagLoklok: FormatVTT,
		provider.TagFlixhq: FormatVTT,
		provider.TagKissKh: FormatSRT,
		provider.TagEmbed:  FormatNone,
	}
	for tag, format := range want {
		if got := SubtitleFormat(tag); got != format {
			t.Errorf("SubtitleFormat(%s) = %q, want %q", tag, got, format)
		}
	}
}

func TestRewrite(t *testing.T) {
	p := New("")
	tests := []struct {
		in, want string
	}{
		{"http://cdn.example/a.m3u8", "https://cors.proxy.consumet.org/http://cdn.example/a.m3u8"},
		{"HTTP://cdn.example/a.m3u8", "https://cors.proxy.consumet.org/HTTP://cdn.example/a.m3u8"},
		{"https://cdn.example/a.m3u8", "https://cdn.example/a.m3u8"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Rewrite(tt.in); got != tt.want {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	custom := New(" https://relay.example/ ")
	if got := custom.Rewrite("http://x/y"); got != "https://relay.example/http://x/y" {
		t.Errorf("custom relay Rewrite() = %q", got)
	}
}

func TestSelectDefaults(t *testing.T) {
	p := New("https://relay.example")
	in := []provider.StreamVariant{
		{Quality: "480", URL: "https://cdn.example/480.m3u8", IsM3U8: true},
		{Quality: "720", URL: "http://cdn.example/720.m3u8", IsM3U8: true, Default: true},
	}
	inSubs := []provider.SubtitleVariant{
		{Language: "German", URL: "http://subs.example/de.vtt", Default: true},
		{Language: "Arabic", URL: "https://subs.example/ar.vtt"},
	}

	got := p.SelectDefaults(in, inSubs, provider.TagFlixhq)

	want := Selection{
		Stream:         &provider.StreamVariant{Quality: "720", URL: "https://relay.example/http://cdn.example/720.m3u8", IsM3U8: true, Default: true},
		SubtitleFormat: FormatVTT,
		Streams: []provider.StreamVariant{
			{Quality: "480", URL: "https://cdn.example/480.m3u8", IsM3U8: true},
			{Quality: "720", URL: "https://relay.example/http://cdn.example/720.m3u8", IsM3U8: true, Default: true},
		},
		Subtitles: []provider.SubtitleVariant{
			{Language: "German", URL: "https://relay.example/http://subs.example/de.vtt"},
			{Language: "Arabic", URL: "https://subs.example/ar.vtt"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SelectDefaults() mismatch (-want +got):\n%s", diff)
	}

	if in[1].URL != "http://cdn.example/720.m3u8" || !inSubs[0].Default {
		t.Error("SelectDefaults() modified its input")
	}
}

func TestSelectDefaultsEmpty(t *testing.T) {
	got := New("").SelectDefaults(nil, nil, provider.TagEmbed)
	if diff := cmp.Diff(Selection{}, got); diff != "" {
		t.Errorf("SelectDefaults() mismatch (-want +got):\n%s", diff)
	}
}
