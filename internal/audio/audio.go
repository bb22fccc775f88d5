// Package audio captures the host's own audio output (loopback) as raw
// S16LE PCM chunks. On platforms without a loopback path the constructor
// fails and the audio feature degrades for the run; video is unaffected.
package audio

import "errors"

var (
	// ErrNoDevice means no loopback-capable device exists on this host.
	ErrNoDevice = errors.New("audio: no loopback device")

	// ErrClosed marks a read against a closed capture.
	ErrClosed = errors.New("audio: capture closed")
)

const (
	// ChunkFrames is the number of sample frames per transported chunk.
	ChunkFrames = 2048

	// SampleRate and Channels are the requested record parameters; the
	// device-native values are reported in every chunk.
	SampleRate = 48000
	Channels   = 2

	bytesPerSample = 2 // S16LE
)
