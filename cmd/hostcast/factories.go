package main

import (
	"hostcast/internal/audio"
	"hostcast/internal/capture"
	"hostcast/internal/input"
	"hostcast/internal/scheduler"
	"hostcast/internal/types"
)

func newCapturer(display int) scheduler.CapturerFactory {
	return func() (types.ScreenCapturer, error) {
		return capture.NewScreen(display)
	}
}

func newAudio() (types.AudioCapturer, error) {
	return audio.NewLoopback()
}

func newDriver() (types.InputDriver, error) {
	return input.NewDriver()
}
