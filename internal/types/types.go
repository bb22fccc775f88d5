package types

import "image"

// PCMChunk is one block of S16LE samples read from the loopback device.
type PCMChunk struct {
	Data     []byte
	Rate     int
	Channels int
}

// ScreenCapturer grabs frames from the host's primary display.
type ScreenCapturer interface {
	Grab() (*image.RGBA, error)
	Width() int
	Height() int
	Close()
}

// AudioCapturer reads fixed-size PCM chunks from a loopback device.
// ReadChunk blocks until a full chunk is available; Close unblocks any
// pending read.
type AudioCapturer interface {
	ReadChunk() (*PCMChunk, error)
	Close()
}

// InputDriver performs the actual host input calls. It is an interface so
// the injector can be exercised in tests without a display.
type InputDriver interface {
	MoveMouse(x, y int)
	ToggleButton(button string, down bool) error
	Click(button string, double bool)
	Scroll(dx, dy int)
	ToggleKey(key string, down bool) error
	CursorPos() (x, y int)
	Close()
}
