// Package protocol defines the event names and payloads exchanged over the
// websocket transport. Every message is an Envelope; the Data field carries
// the event-specific payload as raw JSON.
package protocol

import (
	"encoding/json"

	"hostcast/internal/geometry"
)

// Client-to-server events.
const (
	EventSetDisplayMode = "set_display_mode"
	EventEnableControl  = "enable_control"
	EventMouseMove      = "mouse_move"
	EventMouseClick     = "mouse_click"
	EventMouseScroll    = "mouse_scroll"
	EventKeyEvent       = "key_event"
	EventPing           = "ping"

	// Aliases used by extended-display clients. Same payloads, same effect.
	EventClientMouseMove   = "client_mouse_move"
	EventClientMouseClick  = "client_mouse_click"
	EventClientMouseScroll = "client_mouse_scroll"
	EventClientKeyEvent    = "client_key_event"
)

// Server-to-client events.
const (
	EventFrame             = "frame"
	EventAudio             = "audio"
	EventScreenInfo        = "screen_info"
	EventDisplayConfigured = "display_configured"
	EventControlStatus     = "control_status"
	EventPong              = "pong"
)

// Envelope is the wire format for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope. Marshal failures are a
// programming error; the envelope is returned with empty data in that case.
func NewEnvelope(event string, payload any) Envelope {
	if payload == nil {
		return Envelope{Event: event}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{Event: event}
	}
	return Envelope{Event: event, Data: data}
}

// ScreenInfo publishes the host capture surface dimensions.
type ScreenInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DisplayModeRequest configures a session's mode, placement and resolution.
type DisplayModeRequest struct {
	Mode        string        `json:"mode"`
	Position    string        `json:"position"`
	Resolution  geometry.Size `json:"resolution"`
	DisplayName string        `json:"display_name"`
}

// DisplayConfigured is the reply to a set_display_mode event.
type DisplayConfigured struct {
	VirtualBounds geometry.Bounds `json:"virtual_bounds"`
	HostScreen    ScreenInfo      `json:"host_screen"`
}

// AudioPayload carries one base64 PCM chunk with its stream parameters.
type AudioPayload struct {
	Data     string `json:"data"`
	Rate     int    `json:"rate"`
	Channels int    `json:"channels"`
}

// MouseMove carries a cursor position in [0,1] relative coordinates.
type MouseMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MouseClick carries a button event. Action is one of down, up, click,
// double.
type MouseClick struct {
	Button string `json:"button"`
	Action string `json:"action"`
}

// MouseScroll carries raw wheel deltas in client pixels.
type MouseScroll struct {
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

// KeyEvent carries a keyboard event. Action is down or up.
type KeyEvent struct {
	Key    string `json:"key"`
	Action string `json:"action"`
}

// EnableControl opts a session in or out of input injection.
type EnableControl struct {
	Enabled bool `json:"enabled"`
}

// ControlStatus is the reply to an enable_control event.
type ControlStatus struct {
	Enabled bool `json:"enabled"`
}
