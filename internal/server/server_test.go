package server

import (
	"encoding/json"
	"image"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostcast/internal/audio"
	"hostcast/internal/geometry"
	"hostcast/internal/protocol"
	"hostcast/internal/types"
)

type fakeCapturer struct {
	width, height int
}

func (c *fakeCapturer) Grab() (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, c.width, c.height)), nil
}
func (c *fakeCapturer) Width() int  { return c.width }
func (c *fakeCapturer) Height() int { return c.height }
func (c *fakeCapturer) Close()      {}

type fakeDriver struct {
	mu    sync.Mutex
	moves [][2]int
	keys  []string
}

func (d *fakeDriver) MoveMouse(x, y int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moves = append(d.moves, [2]int{x, y})
}
func (d *fakeDriver) ToggleButton(string, bool) error { return nil }
func (d *fakeDriver) Click(string, bool)              {}
func (d *fakeDriver) Scroll(int, int)                 {}
func (d *fakeDriver) ToggleKey(key string, down bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
	return nil
}
func (d *fakeDriver) CursorPos() (int, int) { return 0, 0 }
func (d *fakeDriver) Close()                {}

func (d *fakeDriver) moveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.moves)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeDriver) {
	t.Helper()
	drv := &fakeDriver{}
	s, err := New(Config{
		FPS:         100,
		TargetWidth: 320,
		Quality:     70,
		NewCapturer: func() (types.ScreenCapturer, error) {
			return &fakeCapturer{width: 1920, height: 1080}, nil
		},
		NewAudio: func() (types.AudioCapturer, error) {
			return nil, audio.ErrNoDevice
		},
		NewDriver: func() (types.InputDriver, error) { return drv, nil },
	})
	require.NoError(t, err)

	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hs.Close()
		s.Teardown()
	})
	return s, hs, drv
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

// readUntil skips interleaved frame/audio traffic until the wanted event
// arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.NewEnvelope(event, payload)))
}

func waitCond(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %v", timeout)
}

func TestConnectStartsStreamingAndDeliversFrames(t *testing.T) {
	s, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()

	env := readUntil(t, conn, protocol.EventScreenInfo)
	var info protocol.ScreenInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)

	env = readUntil(t, conn, protocol.EventFrame)
	var b64 string
	require.NoError(t, json.Unmarshal(env.Data, &b64))
	assert.NotEmpty(t, b64)

	assert.True(t, s.Registry().Active())
	assert.Equal(t, 1, s.Registry().Count())
}

func TestConfigureExtendedRepliesWithBounds(t *testing.T) {
	_, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()
	readUntil(t, conn, protocol.EventScreenInfo)

	sendEvent(t, conn, protocol.EventSetDisplayMode, protocol.DisplayModeRequest{
		Mode:        "extended",
		Position:    "right",
		Resolution:  geometry.Size{Width: 1920, Height: 1080},
		DisplayName: "Tablet",
	})

	env := readUntil(t, conn, protocol.EventDisplayConfigured)
	var reply protocol.DisplayConfigured
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, geometry.Bounds{XMin: 1920, XMax: 3840, YMin: 0, YMax: 1080}, reply.VirtualBounds)
	assert.Equal(t, protocol.ScreenInfo{Width: 1920, Height: 1080}, reply.HostScreen)
}

func TestControlGateOverTransport(t *testing.T) {
	_, hs, drv := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()
	readUntil(t, conn, protocol.EventScreenInfo)

	// Before enabling control, input events are no-ops.
	sendEvent(t, conn, protocol.EventMouseMove, protocol.MouseMove{X: 0.5, Y: 0.5})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, drv.moveCount())

	sendEvent(t, conn, protocol.EventEnableControl, protocol.EnableControl{Enabled: true})
	env := readUntil(t, conn, protocol.EventControlStatus)
	var status protocol.ControlStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Enabled)

	sendEvent(t, conn, protocol.EventMouseMove, protocol.MouseMove{X: 0.5, Y: 0.5})
	waitCond(t, time.Second, func() bool { return drv.moveCount() == 1 })

	drv.mu.Lock()
	assert.Equal(t, [2]int{960, 540}, drv.moves[0])
	drv.mu.Unlock()
}

func TestPingPong(t *testing.T) {
	_, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()
	readUntil(t, conn, protocol.EventScreenInfo)

	sendEvent(t, conn, protocol.EventPing, nil)
	readUntil(t, conn, protocol.EventPong)
}

func TestLastDisconnectStopsStreamingAndReconnectWorks(t *testing.T) {
	s, hs, _ := newTestServer(t)

	first := dial(t, hs)
	readUntil(t, first, protocol.EventFrame)
	second := dial(t, hs)
	readUntil(t, second, protocol.EventFrame)

	first.Close()
	waitCond(t, time.Second, func() bool { return s.Registry().Count() == 1 })
	assert.True(t, s.Registry().Active())

	// The remaining client keeps receiving frames.
	readUntil(t, second, protocol.EventFrame)

	second.Close()
	waitCond(t, 2*time.Second, func() bool { return !s.Registry().Active() })

	// A reconnect starts a fresh run and produces frames again.
	again := dial(t, hs)
	defer again.Close()
	readUntil(t, again, protocol.EventFrame)
}

func TestHandleEventToleratesMalformedPayloads(t *testing.T) {
	s, _, _ := newTestServer(t)

	assert.NotPanics(t, func() {
		s.handleEvent("ghost", protocol.Envelope{Event: protocol.EventSetDisplayMode, Data: json.RawMessage(`{`)})
		s.handleEvent("ghost", protocol.Envelope{Event: protocol.EventMouseMove, Data: json.RawMessage(`"nope"`)})
		s.handleEvent("ghost", protocol.Envelope{Event: "unknown_event"})
	})
}

func TestConnectDeliversScreenInfoExactlyOnce(t *testing.T) {
	_, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()

	infos := 0
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env protocol.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Event == protocol.EventScreenInfo {
			infos++
		}
		if env.Event == protocol.EventFrame {
			break
		}
	}
	assert.Equal(t, 1, infos, "connect must announce the host screen once")
}

func TestConfigureOmittedFieldsKeepCurrentSettings(t *testing.T) {
	s, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()
	readUntil(t, conn, protocol.EventScreenInfo)

	waitCond(t, time.Second, func() bool { return s.Registry().Count() == 1 })
	sessions := s.Registry().Snapshot()
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	s.handleEvent(id, protocol.NewEnvelope(protocol.EventSetDisplayMode, protocol.DisplayModeRequest{
		Mode:       "extended",
		Position:   "left",
		Resolution: geometry.Size{Width: 1280, Height: 720},
	}))

	// A resolution-only update leaves mode and position alone.
	s.handleEvent(id, protocol.NewEnvelope(protocol.EventSetDisplayMode, protocol.DisplayModeRequest{
		Resolution: geometry.Size{Width: 800, Height: 600},
	}))

	sess, ok := s.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, "extended", string(sess.Mode))
	assert.Equal(t, "left", string(sess.Position))
	assert.Equal(t, geometry.Size{Width: 800, Height: 600}, sess.Resolution)
}

func TestConfigureRejectsBadPositionKeepingOldConfig(t *testing.T) {
	s, hs, _ := newTestServer(t)

	conn := dial(t, hs)
	defer conn.Close()
	readUntil(t, conn, protocol.EventScreenInfo)

	waitCond(t, time.Second, func() bool { return s.Registry().Count() == 1 })
	sessions := s.Registry().Snapshot()
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	s.handleEvent(id, protocol.NewEnvelope(protocol.EventSetDisplayMode, protocol.DisplayModeRequest{
		Mode:       "extended",
		Position:   "diagonal",
		Resolution: geometry.Size{Width: 800, Height: 600},
	}))

	sess, ok := s.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, "mirror", string(sess.Mode), "rejected configure must keep defaults")
}
