// Package capture grabs frames from the host display and renders the
// synthetic frames shown on extended virtual displays.
package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"hostcast/internal/geometry"
	"hostcast/internal/types"
)

// ErrUnavailable marks a transient capture failure (device lost, permission
// denied). Callers retry after a backoff instead of terminating.
var ErrUnavailable = errors.New("capture: screen unavailable")

// Screen captures the primary display. It holds no state beyond the display
// index and the dimensions queried at construction time.
type Screen struct {
	display int
	width   int
	height  int
}

// NewScreen opens the given display for capture and queries its dimensions.
func NewScreen(display int) (*Screen, error) {
	n := screenshot.NumActiveDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("capture: display %d not available (%d active)", display, n)
	}
	b := screenshot.GetDisplayBounds(display)
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("capture: display %d reports empty bounds", display)
	}
	return &Screen{display: display, width: b.Dx(), height: b.Dy()}, nil
}

func (s *Screen) Grab() (*image.RGBA, error) {
	img, err := screenshot.CaptureDisplay(s.display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return img, nil
}

func (s *Screen) Width() int  { return s.width }
func (s *Screen) Height() int { return s.height }

func (s *Screen) Close() {}

// Dimensions queries the primary display size without keeping a capturer.
func Dimensions(display int) (geometry.Size, error) {
	if display < 0 || display >= screenshot.NumActiveDisplays() {
		return geometry.Size{}, fmt.Errorf("capture: display %d not available", display)
	}
	b := screenshot.GetDisplayBounds(display)
	return geometry.Size{Width: b.Dx(), Height: b.Dy()}, nil
}

var _ types.ScreenCapturer = (*Screen)(nil)
