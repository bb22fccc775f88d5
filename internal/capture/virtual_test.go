package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVirtualDimensions(t *testing.T) {
	img := RenderVirtual(640, 360, "Tablet", nil)
	require.NotNil(t, img)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 360, img.Bounds().Dy())
}

func TestRenderVirtualBorder(t *testing.T) {
	img := RenderVirtual(320, 240, "x", nil)

	// All four edges carry the green border.
	assert.Equal(t, virtualBorder, img.RGBAAt(0, 120))
	assert.Equal(t, virtualBorder, img.RGBAAt(319, 120))
	assert.Equal(t, virtualBorder, img.RGBAAt(160, 0))
	assert.Equal(t, virtualBorder, img.RGBAAt(160, 239))

	// Interior away from grid lines and text is the background.
	assert.Equal(t, virtualBackground, img.RGBAAt(41, 41))
}

func TestRenderVirtualCursor(t *testing.T) {
	mark := &CursorMark{RX: 0.5, RY: 0.5}
	img := RenderVirtual(400, 400, "x", mark)

	// The cursor crosshair passes through the projected position.
	assert.Equal(t, virtualCursor, img.RGBAAt(200, 200))

	// Without a mark the same pixel is not magenta.
	plain := RenderVirtual(400, 400, "x", nil)
	assert.NotEqual(t, virtualCursor, plain.RGBAAt(200, 200))
}

func TestRenderVirtualCursorAtEdgeStaysInBounds(t *testing.T) {
	// Must not panic when the ring would extend past the frame.
	img := RenderVirtual(200, 200, "x", &CursorMark{RX: 0, RY: 0})
	require.NotNil(t, img)
	img = RenderVirtual(200, 200, "x", &CursorMark{RX: 1, RY: 1})
	require.NotNil(t, img)
}
