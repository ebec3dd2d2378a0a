// Package playback owns the external player session and decides what
// happens when an episode finishes.
package playback

import (
	"sync"

	"github.com/Digital-Shane/sora/internal/resolve"
)

// State is the player lifecycle.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	}
	return "idle"
}

// Machine tracks one episode's playback and the title overlay.
type Machine struct {
	mu          sync.Mutex
	state       State
	hovering    bool
	ended       bool
	autoAdvance bool

	request resolve.Request
	canNext bool
}

// NewMachine starts idle for pb.
func NewMachine(pb *resolve.Playback, autoAdvance bool) *Machine {
	return &Machine{
		autoAdvance: autoAdvance,
		request:     pb.Request,
		canNext:     pb.CanAdvance(),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Overlay reports whether the title overlay is visible.
func (m *Machine) Overlay() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StatePlaying || m.hovering
}

// Play starts or resumes playback.
func (m *Machine) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StatePlaying
	m.hovering = false
}

// Pause pauses playback.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePlaying {
		m.state = StatePaused
	}
}

// Hover records whether the pointer is over the surface.
func (m *Machine) Hover(over bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hovering = over
}

// Ready marks a freshly attached source, clearing a previous end.
func (m *Machine) Ready() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = false
	if m.state == StateEnded {
		m.state = StateIdle
	}
}

// End moves to Ended. The first call after Ready returns the next request
// when auto-advance is on and a next episode exists.
func (m *Machine) End() (resolve.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateEnded
	if m.ended {
		return resolve.Request{}, false
	}
	m.ended = true

	if !m.autoAdvance || !m.canNext {
		return resolve.Request{}, false
	}
	if m.request.Provider == "" || (m.request.Provider.RequiresNativeID() && m.request.NativeID == "") {
		return resolve.Request{}, false
	}
	return m.request.Next(), true
}
