// Package session tracks connected clients and owns the streaming-active
// flag. All set mutations and the empty/non-empty transition happen under
// one lock so exactly one caller observes each start/stop edge.
package session

import (
	"errors"
	"fmt"
	"sync"

	"hostcast/internal/geometry"
)

// Mode selects what a connected client receives and may do.
type Mode string

const (
	ModeMirror      Mode = "mirror"
	ModeExtended    Mode = "extended"
	ModeControlOnly Mode = "control-only"
)

// Valid reports whether m is a known display mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeMirror, ModeExtended, ModeControlOnly:
		return true
	}
	return false
}

// ErrUnknownSession is returned when an event references a session id that
// is no longer in the registry.
var ErrUnknownSession = errors.New("session: unknown session")

// Session is one connected client. Registry methods hand out value copies,
// so a Session held by a caller is a snapshot, never shared mutable state.
type Session struct {
	ID             string
	Mode           Mode
	Position       geometry.Position
	Resolution     geometry.Size
	DisplayName    string
	ControlEnabled bool
}

// Bounds computes the session's virtual rectangle for the given host screen.
// Only meaningful for extended-mode sessions.
func (s Session) Bounds(host geometry.Size) (geometry.Bounds, error) {
	return geometry.ForPosition(s.Position, host, s.Resolution)
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	active   bool
	edges    uint64
	host     geometry.Size
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Connect creates a session with defaults. The returned edge is nonzero
// when this connect transitioned the registry from empty to non-empty, i.e.
// the caller must start streaming. Edge numbers are strictly increasing
// across starts and stops, so the scheduler can recognize a call that was
// overtaken by a later transition and discard it.
func (r *Registry) Connect(id string) (Session, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &Session{
		ID:          id,
		Mode:        ModeMirror,
		Position:    geometry.PositionRight,
		Resolution:  geometry.Size{Width: 1920, Height: 1080},
		DisplayName: defaultDisplayName(id),
	}
	r.sessions[id] = sess

	var edge uint64
	if !r.active {
		r.edges++
		edge = r.edges
	}
	r.active = true
	return *sess, edge
}

// Disconnect removes the session. The returned edge is nonzero when this
// was the last session, i.e. the caller must stop streaming.
func (r *Registry) Disconnect(id string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	if len(r.sessions) == 0 && r.active {
		r.active = false
		r.edges++
		return r.edges
	}
	return 0
}

// Configure replaces the session's display configuration. A malformed mode,
// position or resolution rejects the whole event and leaves the previous
// configuration intact.
func (r *Registry) Configure(id string, mode Mode, pos geometry.Position, res geometry.Size, displayName string) (Session, error) {
	if !mode.Valid() {
		return Session{}, fmt.Errorf("session: invalid mode %q", mode)
	}
	if !pos.Valid() {
		return Session{}, fmt.Errorf("session: invalid position %q", pos)
	}
	if res.Width <= 0 || res.Height <= 0 {
		return Session{}, fmt.Errorf("session: invalid resolution %dx%d", res.Width, res.Height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrUnknownSession
	}
	sess.Mode = mode
	sess.Position = pos
	sess.Resolution = res
	if displayName != "" {
		sess.DisplayName = displayName
	}
	return *sess, nil
}

// SetControl toggles the session's control gate. Only the owning session id
// ever reaches this call; there is no cross-session authorization.
func (r *Registry) SetControl(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	sess.ControlEnabled = enabled
	return nil
}

// Get returns a snapshot of one session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Snapshot returns value copies of all sessions for one scheduler tick.
func (r *Registry) Snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, *sess)
	}
	return out
}

func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SetHostScreen publishes the capture surface dimensions. Written once per
// streaming run by the capture subsystem, read by everyone else.
func (r *Registry) SetHostScreen(s geometry.Size) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host = s
}

func (r *Registry) HostScreen() geometry.Size {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func defaultDisplayName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "Display-" + id
}
