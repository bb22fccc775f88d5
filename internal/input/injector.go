// Package input translates client events into host input-device actions.
// Every entry point is gated on the session's controlEnabled flag: with the
// gate closed the call is a silent no-op, not an error. Injection failures
// are logged and never propagate.
package input

import (
	"log"
	"math"

	"hostcast/internal/session"
	"hostcast/internal/types"
)

// scrollDivisor normalizes raw wheel deltas (client pixels) to host scroll
// units.
const scrollDivisor = 50

type Injector struct {
	registry *session.Registry
	driver   types.InputDriver
}

func New(registry *session.Registry, driver types.InputDriver) *Injector {
	return &Injector{registry: registry, driver: driver}
}

// MouseMove moves the host cursor. Relative [0,1] coordinates are mapped
// against the host screen for mirror sessions and against the session's
// virtual bounds for extended sessions.
func (in *Injector) MouseMove(sessionID string, rx, ry float64) {
	sess, ok := in.gate(sessionID)
	if !ok {
		return
	}

	host := in.registry.HostScreen()
	if host.Width <= 0 || host.Height <= 0 {
		return
	}

	var x, y int
	if sess.Mode == session.ModeExtended {
		bounds, err := sess.Bounds(host)
		if err != nil {
			log.Printf("input: bounds for %s: %v", sessionID, err)
			return
		}
		x, y = bounds.ToAbsolute(rx, ry)
	} else {
		x = clampInt(int(math.Round(rx*float64(host.Width))), 0, host.Width-1)
		y = clampInt(int(math.Round(ry*float64(host.Height))), 0, host.Height-1)
	}

	in.driver.MoveMouse(x, y)
}

// MouseClick performs a button action: down, up, click or double.
func (in *Injector) MouseClick(sessionID, button, action string) {
	if _, ok := in.gate(sessionID); !ok {
		return
	}

	btn := normalizeButton(button)
	switch action {
	case "down":
		if err := in.driver.ToggleButton(btn, true); err != nil {
			log.Printf("input: button down %s: %v", btn, err)
		}
	case "up":
		if err := in.driver.ToggleButton(btn, false); err != nil {
			log.Printf("input: button up %s: %v", btn, err)
		}
	case "click":
		in.driver.Click(btn, false)
	case "double", "double-click":
		in.driver.Click(btn, true)
	}
}

// MouseScroll converts wheel deltas to host scroll units. Vertical deltas
// are inverted: a positive browser deltaY means scroll content down.
func (in *Injector) MouseScroll(sessionID string, deltaX, deltaY float64) {
	if _, ok := in.gate(sessionID); !ok {
		return
	}

	dx := int(deltaX / scrollDivisor)
	dy := -int(deltaY / scrollDivisor)
	if dx == 0 && dy == 0 {
		return
	}
	in.driver.Scroll(dx, dy)
}

// KeyEvent presses or releases a key. Named keys go through the symbolic
// table; unmapped single characters pass through unchanged.
func (in *Injector) KeyEvent(sessionID, key, action string) {
	if _, ok := in.gate(sessionID); !ok {
		return
	}

	mapped, ok := mapKey(key)
	if !ok {
		log.Printf("input: unmapped key %q", key)
		return
	}

	switch action {
	case "down":
		if err := in.driver.ToggleKey(mapped, true); err != nil {
			log.Printf("input: key down %q: %v", key, err)
		}
	case "up":
		if err := in.driver.ToggleKey(mapped, false); err != nil {
			log.Printf("input: key up %q: %v", key, err)
		}
	}
}

// gate looks the session up and checks its control flag. Unknown sessions
// and disabled control both drop the event silently.
func (in *Injector) gate(sessionID string) (session.Session, bool) {
	sess, ok := in.registry.Get(sessionID)
	if !ok || !sess.ControlEnabled {
		return session.Session{}, false
	}
	return sess, true
}

func normalizeButton(button string) string {
	switch button {
	case "left", "right", "middle":
		return button
	}
	return "left"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
