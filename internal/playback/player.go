package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Media is what the external player is asked to open.
type Media struct {
	URL      string
	Subtitle string
	Title    string
	Start    time.Duration
}

// Launcher starts a player for media.
type Launcher interface {
	Launch(ctx context.Context, media Media) (Session, error)
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Player runs mpv or vlc as a child process.
type Player struct {
	kind    string
	path    string
	command commandFunc
	logger  *zap.Logger
}

// NewPlayer returns a launcher for kind ("mpv" or "vlc"). An empty path
// uses the binary name from PATH.
func NewPlayer(kind, path string, logger *zap.Logger) (*Player, error) {
	switch kind {
	case "mpv", "vlc":
	default:
		return nil, fmt.Errorf("unsupported player type: %s", kind)
	}
	if path == "" {
		path = kind
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{
		kind:    kind,
		path:    path,
		command: exec.CommandContext,
		logger:  logger.Named("player"),
	}, nil
}

// Args builds the command line for media.
func (p *Player) Args(media Media) []string {
	var args []string
	switch p.kind {
	case "mpv":
		if media.Title != "" {
			args = append(args, "--force-media-title="+media.Title)
		}
		if media.Subtitle != "" {
			args = append(args, "--sub-file="+media.Subtitle)
		}
		if media.Start > 0 {
			args = append(args, "--start="+strconv.Itoa(int(media.Start.Seconds())))
		}
	case "vlc":
		if media.Title != "" {
			args = append(args, "--meta-title="+media.Title)
		}
		if media.Subtitle != "" {
			args = append(args, "--sub-file="+media.Subtitle)
		}
		if media.Start > 0 {
			args = append(args, "--start-time="+strconv.Itoa(int(media.Start.Seconds())))
		}
		args = append(args, "--play-and-exit")
	}
	return append(args, media.URL)
}

// Launch starts the player. The session ends when the player exits, when
// ctx is cancelled or when it is closed.
func (p *Player) Launch(ctx context.Context, media Media) (Session, error) {
	if media.URL == "" {
		return nil, errors.New("no stream to play")
	}

	cmd := p.command(ctx, p.path, p.Args(media)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.kind, err)
	}
	p.logger.Info("player started",
		zap.String("player", p.kind),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("title", media.Title))

	proc := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		proc.err = cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

// Close kills the player if it is still running and waits for it to exit.
func (p *process) Close() error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = killErr
			return
		}
		<-p.done
	})
	return err
}
