// Package watch is the terminal view shown while episodes play.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Digital-Shane/sora/internal/playback"
	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/Digital-Shane/sora/internal/tui/theme"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// RunFunc drives playback and reports progress through observe.
type RunFunc func(ctx context.Context, observe func(playback.Update)) error

type updateMsg playback.Update

type doneMsg struct{ err error }

// Model follows a playback.Runner and renders its progress.
type Model struct {
	run    RunFunc
	ctx    context.Context
	cancel context.CancelFunc
	msgCh  chan tea.Msg

	spinner spinner.Model
	theme   theme.Theme
	width   int
	height  int

	current *resolve.Playback
	probe   *playback.StreamInfo
	state   playback.State
	next    *resolve.Request
	played  []string
	err     error
	done    bool
}

// New creates the model. run starts when the program starts.
func New(run RunFunc, th theme.Theme) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = th.Busy()
	return &Model{
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		msgCh:   make(chan tea.Msg, 64),
		spinner: s,
		theme:   th,
		width:   80,
		height:  20,
	}
}

// Init starts the runner.
func (m *Model) Init() tea.Cmd {
	go m.runAsync()
	return tea.Batch(m.spinner.Tick, m.waitForMsg())
}

func (m *Model) waitForMsg() tea.Cmd { return func() tea.Msg { return <-m.msgCh } }

func (m *Model) runAsync() {
	err := m.run(m.ctx, func(u playback.Update) {
		select {
		case m.msgCh <- updateMsg(u):
		case <-m.ctx.Done():
		}
	})
	m.msgCh <- doneMsg{err: err}
}

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		}
	case updateMsg:
		m.apply(playback.Update(msg))
		return m, m.waitForMsg()
	case doneMsg:
		m.done = true
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		// Keep the fallback frames or the error on screen until dismissed.
		if m.err != nil {
			return m, nil
		}
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(u playback.Update) {
	if u.Err != nil {
		return
	}
	if u.Playback != nil {
		if m.current == nil || m.current.Request != u.Playback.Request {
			m.played = append(m.played, playback.DisplayTitle(u.Playback))
			m.probe = nil
		}
		m.current = u.Playback
	}
	if u.Probe != nil {
		m.probe = u.Probe
	}
	m.state = u.State
	m.next = u.Next
}

// View renders the screen.
func (m *Model) View() string {
	width := max(m.width, 20)
	sections := []string{m.theme.Title().Width(width).Render(m.truncate(m.title(), width-2))}

	if m.current == nil {
		if m.err != nil {
			sections = append(sections, m.errorLine())
		} else {
			sections = append(sections, m.spinner.View()+" Resolving episode...")
		}
		sections = append(sections, m.status(width))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	panel := m.theme.Card()
	panelWidth := max(width-panel.GetHorizontalFrameSize(), 0)
	sections = append(sections, panel.Width(panelWidth).Render(strings.Join(m.details(panelWidth), "\n")))

	if m.err != nil {
		sections = append(sections, m.errorLine())
	}
	sections = append(sections, m.status(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) title() string {
	if m.current == nil {
		return m.theme.Glyph("tv") + " sora"
	}
	return m.theme.Glyph("tv") + " " + playback.DisplayTitle(m.current)
}

func (m *Model) details(width int) []string {
	pb := m.current
	label := m.theme.Label()
	var lines []string

	row := func(icon, name, value string) {
		line := fmt.Sprintf("%s %s %s", m.theme.Glyph(icon), label.Render(name+":"), value)
		lines = append(lines, m.truncate(line, width))
	}

	row("episode", "Source", string(pb.Provider))
	if sel := pb.Selection.Stream; sel != nil {
		row("stream", "Stream", fmt.Sprintf("%s (%d available)", sel.Quality, len(pb.Streams)))
	}
	if m.probe != nil && m.probe.Resolution != "" {
		row("stream", "Probe", strings.TrimSpace(m.probe.Resolution+" "+m.probe.VideoCodec+" "+m.probe.Container))
	}
	if sub := pb.Selection.Subtitle; sub != nil {
		row("subtitles", "Subtitles", fmt.Sprintf("%s [%s]", sub.Language, pb.Selection.SubtitleFormat))
	} else if len(pb.Subtitles) > 0 {
		row("subtitles", "Subtitles", fmt.Sprintf("%d tracks, none preferred", len(pb.Subtitles)))
	}
	if pb.Rating != nil {
		row("rating", "Rating", fmt.Sprintf("%.1f %s", pb.Rating.Value, pb.Rating.Source))
	}
	if pb.Localized != nil && pb.Localized.Name != "" {
		row("globe", "Language", pb.Localized.Name)
	}

	switch {
	case m.next != nil:
		row("next", "Next", fmt.Sprintf("S%02dE%02d", m.next.Season, m.next.Episode))
	case pb.HasNextEpisode == nil:
		row("next", "Next", "unknown")
	case *pb.HasNextEpisode:
		row("next", "Next", "available")
	default:
		row("next", "Next", "last episode")
	}

	if pb.UsesEmbed() && len(pb.Embed) > 0 {
		lines = append(lines, "", label.Render("No direct stream. Open one of these players:"))
		for _, f := range pb.Embed {
			lines = append(lines, m.truncate(fmt.Sprintf("%s %d  %s", m.theme.Glyph("frame"), f.Server, f.URL), width))
		}
	}
	return lines
}

func (m *Model) errorLine() string {
	return m.theme.Badge(theme.ToneBad).Render("error") + " " + m.err.Error()
}

func (m *Model) status(width int) string {
	var state string
	switch {
	case m.err != nil:
		state = m.theme.Glyph("error") + " stopped"
	case m.done:
		state = m.theme.Glyph("success") + " finished"
	case m.state == playback.StatePlaying:
		state = m.theme.Glyph("play") + " playing " + m.spinner.View()
	case m.state == playback.StateEnded:
		state = m.theme.Glyph("ended") + " ended"
	default:
		state = m.spinner.View() + " " + m.state.String()
	}
	return m.theme.Footer().Width(width).Render(state + "  q: quit")
}

func (m *Model) truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Err returns the error that stopped playback, if any.
func (m *Model) Err() error { return m.err }

// Playback returns the most recent resolution.
func (m *Model) Playback() *resolve.Playback { return m.current }

// Played lists the episodes started, in order.
func (m *Model) Played() []string { return append([]string(nil), m.played...) }
