package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Digital-Shane/sora/internal/resolve"
	"go.uber.org/zap"
)

// ErrEmbedOnly means the episode resolved without a stream the external
// player can open; the playback carries fallback frames instead.
var ErrEmbedOnly = errors.New("no direct stream, use an embedded player")

// Resolver is the part of resolve.Resolver the runner needs.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request, caller resolve.Caller) (*resolve.Playback, error)
}

// Update is reported to the observer as playback progresses.
type Update struct {
	State    State
	Playback *resolve.Playback
	Probe    *StreamInfo
	Next     *resolve.Request
	Err      error
}

// Runner resolves an episode, plays it and follows auto-advance until the
// series runs out or the context ends.
type Runner struct {
	resolver    Resolver
	launcher    Launcher
	shell       *Shell
	prober      *Prober
	autoAdvance bool
	caller      resolve.Caller
	observe     func(Update)
	logger      *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithProber probes the default stream before launching.
func WithProber(p *Prober) RunnerOption {
	return func(r *Runner) { r.prober = p }
}

// WithAutoAdvance toggles playing the next episode on end.
func WithAutoAdvance(enabled bool) RunnerOption {
	return func(r *Runner) { r.autoAdvance = enabled }
}

// WithCaller sets the identity and locale used for every resolution.
func WithCaller(c resolve.Caller) RunnerOption {
	return func(r *Runner) { r.caller = c }
}

// WithObserver receives every Update. It must not block.
func WithObserver(fn func(Update)) RunnerOption {
	return func(r *Runner) { r.observe = fn }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner that plays through shell.
func NewRunner(resolver Resolver, launcher Launcher, shell *Shell, opts ...RunnerOption) *Runner {
	r := &Runner{
		resolver:    resolver,
		launcher:    launcher,
		shell:       shell,
		autoAdvance: true,
		observe:     func(Update) {},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("runner")
	return r
}

// Run plays req, starting start into the episode, and keeps going while
// the machine asks for a next episode. The shell is released on return.
func (r *Runner) Run(ctx context.Context, req resolve.Request, start time.Duration) error {
	defer r.shell.Close()

	for {
		next, ok, err := r.playOne(ctx, req, start)
		if err != nil {
			r.observe(Update{State: StateEnded, Err: err})
			return err
		}
		if !ok {
			return nil
		}
		r.logger.Info("advancing", zap.String("request", next.String()))
		req, start = next, 0
	}
}

func (r *Runner) playOne(ctx context.Context, req resolve.Request, start time.Duration) (resolve.Request, bool, error) {
	pb, err := r.resolver.Resolve(ctx, req, r.caller)
	if err != nil {
		return resolve.Request{}, false, err
	}
	r.observe(Update{State: StateIdle, Playback: pb})

	if pb.UsesEmbed() || pb.Selection.Stream == nil {
		return resolve.Request{}, false, fmt.Errorf("%s: %w", req, ErrEmbedOnly)
	}

	var info *StreamInfo
	if r.prober != nil {
		info, err = r.prober.Probe(ctx, pb.Selection.Stream.URL)
		if err != nil {
			r.logger.Warn("probe failed", zap.Error(err))
		} else {
			r.logger.Info("stream probed",
				zap.String("container", info.Container),
				zap.String("resolution", info.Resolution),
				zap.String("video_codec", info.VideoCodec))
		}
	}

	machine := NewMachine(pb, r.autoAdvance)
	sess, err := r.launcher.Launch(ctx, MediaFor(pb, start))
	if err != nil {
		return resolve.Request{}, false, err
	}
	if err := r.shell.Attach(sess); err != nil {
		r.logger.Warn("previous session did not close cleanly", zap.Error(err))
	}
	machine.Ready()
	machine.Play()
	r.observe(Update{State: machine.State(), Playback: pb, Probe: info})

	select {
	case <-ctx.Done():
		return resolve.Request{}, false, ctx.Err()
	case <-sess.Done():
	}

	next, ok := machine.End()
	update := Update{State: machine.State(), Playback: pb, Probe: info}
	if ok {
		update.Next = &next
	}
	r.observe(update)
	return next, ok, nil
}

// MediaFor builds the player input from the selected defaults.
func MediaFor(pb *resolve.Playback, start time.Duration) Media {
	media := Media{Title: DisplayTitle(pb), Start: start}
	if pb.Selection.Stream != nil {
		media.URL = pb.Selection.Stream.URL
	}
	if pb.Selection.Subtitle != nil {
		media.Subtitle = pb.Selection.Subtitle.URL
	}
	return media
}

// DisplayTitle reads like "Dark S01E02 Lies".
func DisplayTitle(pb *resolve.Playback) string {
	title := fmt.Sprintf("%s S%02dE%02d", pb.DisplayName(), pb.Request.Season, pb.Request.Episode)
	if name := pb.EpisodeName(); name != "" {
		title += " " + name
	}
	return title
}
