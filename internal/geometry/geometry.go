// Package geometry maps extended-display clients into the host's virtual
// coordinate space. A client declares which edge of the host screen it sits
// on and its resolution; everything else is derived from that.
package geometry

import (
	"fmt"
	"math"
)

// Position is the host screen edge an extended display is adjacent to.
type Position string

const (
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
)

// Valid reports whether p is one of the four placement positions.
func (p Position) Valid() bool {
	switch p {
	case PositionLeft, PositionRight, PositionTop, PositionBottom:
		return true
	}
	return false
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds is the rectangle a virtual display occupies in host coordinates.
// It is always recomputed from the session's position and resolution, never
// stored.
type Bounds struct {
	XMin int `json:"x_min"`
	XMax int `json:"x_max"`
	YMin int `json:"y_min"`
	YMax int `json:"y_max"`
}

// ForPosition computes the virtual rectangle for a client display adjacent
// to the given edge of the host screen.
func ForPosition(pos Position, host, client Size) (Bounds, error) {
	switch pos {
	case PositionRight:
		return Bounds{XMin: host.Width, XMax: host.Width + client.Width, YMin: 0, YMax: client.Height}, nil
	case PositionLeft:
		return Bounds{XMin: -client.Width, XMax: 0, YMin: 0, YMax: client.Height}, nil
	case PositionTop:
		return Bounds{XMin: 0, XMax: client.Width, YMin: -client.Height, YMax: 0}, nil
	case PositionBottom:
		return Bounds{XMin: 0, XMax: client.Width, YMin: host.Height, YMax: host.Height + client.Height}, nil
	}
	return Bounds{}, fmt.Errorf("geometry: unknown position %q", pos)
}

func (b Bounds) Width() int  { return b.XMax - b.XMin }
func (b Bounds) Height() int { return b.YMax - b.YMin }

// Contains reports whether the host point lies inside the rectangle,
// edges included.
func (b Bounds) Contains(x, y int) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// ToRelative converts a host point to [0,1] coordinates within the
// rectangle. Points outside are clamped, not rejected.
func (b Bounds) ToRelative(x, y int) (rx, ry float64) {
	rx = float64(x-b.XMin) / float64(b.Width())
	ry = float64(y-b.YMin) / float64(b.Height())
	return clamp01(rx), clamp01(ry)
}

// ToAbsolute converts [0,1] coordinates within the rectangle back to a host
// point, rounded to integer pixels.
func (b Bounds) ToAbsolute(rx, ry float64) (x, y int) {
	x = int(math.Round(float64(b.XMin) + clamp01(rx)*float64(b.Width())))
	y = int(math.Round(float64(b.YMin) + clamp01(ry)*float64(b.Height())))
	return x, y
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
