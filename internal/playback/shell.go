package playback

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Session is an attached player. Done closes when it exits on its own.
type Session interface {
	Done() <-chan struct{}
	Close() error
}

// Shell holds at most one session.
type Shell struct {
	mu      sync.Mutex
	current Session
	logger  *zap.Logger
}

// NewShell creates an empty shell.
func NewShell(logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{logger: logger.Named("shell")}
}

// Attach releases the current session, if any, then holds sess.
func (s *Shell) Attach(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.current != nil {
		err = s.current.Close()
		if err != nil {
			s.logger.Warn("failed to release previous session", zap.Error(err))
		}
	}
	s.current = sess
	return err
}

// Current returns the held session or nil.
func (s *Shell) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close releases the held session. It is safe to call more than once.
func (s *Shell) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	if err != nil {
		return errors.Join(errors.New("release session"), err)
	}
	return nil
}
