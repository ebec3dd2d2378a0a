package resolve

import (
	"context"
	"sync"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

type scope struct {
	id     uint64
	cancel context.CancelFunc
}

// Scopes tracks the in-flight resolution of each playback surface. Starting
// a new one on a surface cancels the one it supersedes.
type Scopes struct {
	mu     sync.Mutex
	seq    uint64
	active *csmap.CsMap[string, *scope]
}

// NewScopes creates an empty scope table.
func NewScopes() *Scopes {
	return &Scopes{active: csmap.Create[string, *scope]()}
}

// Begin cancels any resolution running for key and returns a context for the
// new one. The returned release func must be called when the work is done.
func (s *Scopes) Begin(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	s.seq++
	current := &scope{id: s.seq, cancel: cancel}
	previous, superseded := s.active.Load(key)
	s.active.Store(key, current)
	s.mu.Unlock()

	if superseded {
		previous.cancel()
	}

	release := func() {
		s.mu.Lock()
		if stored, ok := s.active.Load(key); ok && stored.id == current.id {
			s.active.Delete(key)
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Active is the number of surfaces with a resolution in flight.
func (s *Scopes) Active() int {
	return int(s.active.Count())
}
