// Package theme holds the colors, glyphs and lipgloss styles of the watch view.
package theme

import (
	"maps"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// Palette names the colors by role.
type Palette struct {
	Title  lipgloss.Color
	Footer lipgloss.Color
	Frame  lipgloss.Color
	Ink    lipgloss.Color
	Dim    lipgloss.Color
	Good   lipgloss.Color
	Bad    lipgloss.Color
}

// Glyphs maps a semantic name such as "next" or "subtitles" to what is drawn.
type Glyphs map[string]string

// Tone picks a badge color.
type Tone int

const (
	ToneInfo Tone = iota
	ToneGood
	ToneBad
	ToneDim
)

// Theme is immutable once built.
type Theme struct {
	palette Palette
	glyphs  Glyphs
	border  lipgloss.Border
	padding int
}

// Option adjusts a Theme while it is built.
type Option func(*Theme)

// WithPalette replaces the colors.
func WithPalette(p Palette) Option {
	return func(t *Theme) { t.palette = p }
}

// WithGlyphs replaces glyphs by name. Names it leaves out keep their
// current value.
func WithGlyphs(g Glyphs) Option {
	return func(t *Theme) { maps.Copy(t.glyphs, g) }
}

// WithBorder replaces the card border.
func WithBorder(b lipgloss.Border) Option {
	return func(t *Theme) { t.border = b }
}

// WithPadding sets the horizontal padding inside cards and the footer.
func WithPadding(n int) Option {
	return func(t *Theme) {
		if n >= 0 {
			t.padding = n
		}
	}
}

// Plain draws ASCII glyphs only.
func Plain() Option {
	return func(t *Theme) { t.glyphs = maps.Clone(asciiGlyphs) }
}

var defaultPalette = Palette{
	Title:  lipgloss.Color("#2f3e72"),
	Footer: lipgloss.Color("#4a5a9a"),
	Frame:  lipgloss.Color("#e0a458"),
	Ink:    lipgloss.Color("#f5f5f7"),
	Dim:    lipgloss.Color("#8a8fa8"),
	Good:   lipgloss.Color("#5dc796"),
	Bad:    lipgloss.Color("#f04c56"),
}

// New builds a theme. Emoji glyphs are used unless the terminal is likely
// to mangle them.
func New(opts ...Option) Theme {
	t := Theme{
		palette: defaultPalette,
		border:  lipgloss.RoundedBorder(),
		padding: 1,
	}
	if emojiCapable() {
		t.glyphs = maps.Clone(emojiGlyphs)
	} else {
		t.glyphs = maps.Clone(asciiGlyphs)
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Default returns New().
func Default() Theme { return New() }

// Palette returns the colors.
func (t Theme) Palette() Palette { return t.palette }

// Glyph returns what to draw for name, or "" when unknown.
func (t Theme) Glyph(name string) string { return t.glyphs[name] }

func (t Theme) Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).
		Foreground(t.palette.Ink).Background(t.palette.Title).
		Padding(0, 1)
}

func (t Theme) Footer() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(t.palette.Ink).Background(t.palette.Footer).
		Padding(0, t.padding)
}

func (t Theme) Card() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(t.border).BorderForeground(t.palette.Frame).
		Padding(0, t.padding)
}

func (t Theme) Label() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.palette.Dim)
}

func (t Theme) Busy() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.palette.Frame)
}

// Badge is a short bold label on a colored background.
func (t Theme) Badge(tone Tone) lipgloss.Style {
	bg := map[Tone]lipgloss.Color{
		ToneGood: t.palette.Good,
		ToneBad:  t.palette.Bad,
		ToneDim:  t.palette.Dim,
	}[tone]
	if bg == "" {
		bg = t.palette.Frame
	}
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).
		Foreground(t.palette.Ink).Background(bg)
}

// emojiCapable is false over SSH and on Windows consoles.
func emojiCapable() bool {
	for _, key := range []string{"SSH_CLIENT", "SSH_TTY", "SSH_CONNECTION"} {
		if os.Getenv(key) != "" {
			return false
		}
	}
	return runtime.GOOS != "windows"
}

var emojiGlyphs = Glyphs{
	"tv":        "📺",
	"episode":   "🎬",
	"stream":    "🎥",
	"subtitles": "💬",
	"rating":    "⭐",
	"globe":     "🌐",
	"next":      "⏭",
	"play":      "▶",
	"pause":     "⏸",
	"ended":     "⏹",
	"frame":     "🪟",
	"error":     "❌",
	"success":   "✅",
}

var asciiGlyphs = Glyphs{
	"tv":        "[TV]",
	"episode":   "[E]",
	"stream":    "[V]",
	"subtitles": "[S]",
	"rating":    "[*]",
	"globe":     "[G]",
	"next":      ">>",
	"play":      ">",
	"pause":     "||",
	"ended":     "[]",
	"frame":     "[#]",
	"error":     "[!]",
	"success":   "[v]",
}
