package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostcast/internal/geometry"
)

func TestConnectDefaults(t *testing.T) {
	r := NewRegistry()

	sess, edge := r.Connect("abcdef123456")
	assert.NotZero(t, edge)
	assert.Equal(t, ModeMirror, sess.Mode)
	assert.False(t, sess.ControlEnabled)
	assert.Equal(t, "Display-abcdef12", sess.DisplayName)
	assert.True(t, r.Active())

	// Second client does not trigger another start.
	_, edge = r.Connect("second")
	assert.Zero(t, edge)
}

func TestDisconnectStopsOnLastSession(t *testing.T) {
	r := NewRegistry()
	r.Connect("a")
	r.Connect("b")

	assert.Zero(t, r.Disconnect("a"))
	assert.True(t, r.Active())
	assert.NotZero(t, r.Disconnect("b"))
	assert.False(t, r.Active())
}

// Edge numbers increase across starts and stops so a late consumer can
// order any two transitions it is handed.
func TestTransitionEdgesAreMonotonic(t *testing.T) {
	r := NewRegistry()

	_, e1 := r.Connect("a")
	e2 := r.Disconnect("a")
	_, e3 := r.Connect("b")
	e4 := r.Disconnect("b")

	assert.Less(t, e1, e2)
	assert.Less(t, e2, e3)
	assert.Less(t, e3, e4)
}

func TestConfigure(t *testing.T) {
	r := NewRegistry()
	r.Connect("a")

	sess, err := r.Configure("a", ModeExtended, geometry.PositionLeft,
		geometry.Size{Width: 1280, Height: 720}, "Tablet")
	require.NoError(t, err)
	assert.Equal(t, ModeExtended, sess.Mode)
	assert.Equal(t, "Tablet", sess.DisplayName)

	// Invalid updates are rejected and leave the previous config intact.
	_, err = r.Configure("a", "hologram", geometry.PositionLeft,
		geometry.Size{Width: 1280, Height: 720}, "x")
	assert.Error(t, err)
	_, err = r.Configure("a", ModeExtended, "diagonal",
		geometry.Size{Width: 1280, Height: 720}, "x")
	assert.Error(t, err)
	_, err = r.Configure("a", ModeExtended, geometry.PositionLeft,
		geometry.Size{Width: 0, Height: 720}, "x")
	assert.Error(t, err)

	kept, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Tablet", kept.DisplayName)
	assert.Equal(t, geometry.Size{Width: 1280, Height: 720}, kept.Resolution)
}

func TestConfigureUnknownSession(t *testing.T) {
	r := NewRegistry()
	_, err := r.Configure("ghost", ModeMirror, geometry.PositionRight,
		geometry.Size{Width: 1920, Height: 1080}, "")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestSetControlPerSession(t *testing.T) {
	r := NewRegistry()
	r.Connect("a")
	r.Connect("b")

	require.NoError(t, r.SetControl("a", true))

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.True(t, a.ControlEnabled)
	assert.False(t, b.ControlEnabled)

	assert.ErrorIs(t, r.SetControl("ghost", true), ErrUnknownSession)
}

// The active flag must track set emptiness under concurrent churn, with
// every start edge matched by exactly one stop edge.
func TestActiveFlagUnderConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	const workers = 32
	const rounds = 50

	var starts, stops int
	var counterMu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				id := fmt.Sprintf("c%d-%d", w, i)
				_, started := r.Connect(id)
				stopped := r.Disconnect(id)
				counterMu.Lock()
				if started != 0 {
					starts++
				}
				if stopped != 0 {
					stops++
				}
				counterMu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, starts, stops, "every start must be matched by one stop")
	assert.False(t, r.Active())
	assert.Equal(t, 0, r.Count())
}

func TestSessionBounds(t *testing.T) {
	r := NewRegistry()
	r.Connect("a")
	sess, err := r.Configure("a", ModeExtended, geometry.PositionRight,
		geometry.Size{Width: 1920, Height: 1080}, "")
	require.NoError(t, err)

	b, err := sess.Bounds(geometry.Size{Width: 1920, Height: 1080})
	require.NoError(t, err)
	assert.Equal(t, geometry.Bounds{XMin: 1920, XMax: 3840, YMin: 0, YMax: 1080}, b)
}
