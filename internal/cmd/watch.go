package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/Digital-Shane/sora/internal/playback"
	"github.com/Digital-Shane/sora/internal/resolve"
	"github.com/Digital-Shane/sora/internal/tui/theme"
	"github.com/Digital-Shane/sora/internal/tui/watch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <series-id> <season> <episode>",
	Short: "Play an episode in mpv or vlc and keep going",
	Long: `Watch resolves the episode, launches the configured player with the default stream
and subtitle, and moves on to the next episode when the player exits, as long as
auto-advance is on and the source knows there is one.`,
	Example: `  sora watch 70523 1 1 --provider Flixhq --id tv/watch-dark-19950
  sora watch 96162 1 3 --provider KissKh --id 4620 --start 12m`,
	Args: cobra.ExactArgs(3),
	RunE: runWatch,
}

var (
	watchProvider string
	watchNativeID string
	watchStart    time.Duration
	watchPlain    bool
	watchNoNext   bool
)

func init() {
	addRequestFlags(watchCmd, &watchProvider, &watchNativeID)
	watchCmd.Flags().DurationVar(&watchStart, "start", 0, "Resume offset into the first episode, e.g. 12m30s")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print progress lines instead of the interactive view")
	watchCmd.Flags().BoolVar(&watchNoNext, "no-auto-advance", false, "Stop after the first episode")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	req, err := resolve.ParseRequest(args[0], args[1], args[2], watchProvider, watchNativeID)
	if err != nil {
		return err
	}

	player, err := playback.NewPlayer(cfg.Player, cfg.PlayerPath, log)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	run := func(ctx context.Context, observe func(playback.Update)) error {
		opts := []playback.RunnerOption{
			playback.WithAutoAdvance(cfg.AutoAdvance && !watchNoNext),
			playback.WithCaller(caller(cfg, req)),
			playback.WithObserver(observe),
			playback.WithRunnerLogger(log),
		}
		if cfg.ProbeStream {
			opts = append(opts, playback.WithProber(playback.NewProber(0)))
		}
		runner := playback.NewRunner(a.resolver, player, playback.NewShell(log), opts...)
		return runner.Run(ctx, req, watchStart)
	}

	if watchPlain {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runPlain(ctx, cmd.OutOrStdout(), run)
	}

	model := watch.New(run, theme.Default())
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return fmt.Errorf("failed to run watch UI: %w", err)
	}
	if err := model.Err(); err != nil {
		if pb := model.Playback(); pb != nil && errors.Is(err, playback.ErrEmbedOnly) {
			printPlayback(cmd.OutOrStdout(), pb)
		}
		return err
	}
	return nil
}

// runPlain reports each state change as a line.
func runPlain(ctx context.Context, w io.Writer, run watch.RunFunc) error {
	var last *resolve.Playback
	err := run(ctx, func(u playback.Update) {
		if u.Err != nil {
			return
		}
		if u.Playback != nil {
			last = u.Playback
		}
		switch {
		case u.Probe != nil:
			fmt.Fprintf(w, "probe    %s %s %s\n", u.Probe.Resolution, u.Probe.VideoCodec, u.Probe.Container)
		case u.Next != nil:
			fmt.Fprintf(w, "next     %s\n", u.Next.Route())
		case u.Playback != nil:
			fmt.Fprintf(w, "%-8s %s\n", u.State, playback.DisplayTitle(u.Playback))
		}
	})
	if errors.Is(err, playback.ErrEmbedOnly) && last != nil {
		printPlayback(w, last)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
