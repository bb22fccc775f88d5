package capture

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Virtual frame palette and layout. An extended display shows a dark grid
// with a label and, when the host cursor is inside the client's bounds, a
// magenta cursor marker.
var (
	virtualBackground = color.RGBA{15, 15, 25, 255}
	virtualBorder     = color.RGBA{0, 255, 0, 255}
	virtualGrid       = color.RGBA{35, 35, 45, 255}
	virtualLabel      = color.RGBA{100, 255, 100, 255}
	virtualCursor     = color.RGBA{255, 0, 255, 255}
)

const (
	borderWidth     = 5
	gridSpacing     = 80
	crosshairArm    = 50
	cursorRadius    = 20
	cursorRingWidth = 4
	cursorOverhang  = 10
)

// CursorMark is the host cursor position projected into a client's bounds,
// in [0,1] relative coordinates.
type CursorMark struct {
	RX float64
	RY float64
}

// RenderVirtual draws one synthetic extended-display frame: border, grid,
// center crosshair, the display label and optionally the host cursor.
func RenderVirtual(width, height int, displayName string, cursor *CursorMark) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	fill(img, virtualBackground)

	for x := 0; x < width; x += gridSpacing {
		vline(img, x, 0, height, virtualGrid)
	}
	for y := 0; y < height; y += gridSpacing {
		hline(img, 0, width, y, virtualGrid)
	}

	for i := 0; i < borderWidth; i++ {
		hline(img, 0, width, i, virtualBorder)
		hline(img, 0, width, height-1-i, virtualBorder)
		vline(img, i, 0, height, virtualBorder)
		vline(img, width-1-i, 0, height, virtualBorder)
	}

	cx, cy := width/2, height/2
	hline(img, cx-crosshairArm, cx+crosshairArm, cy, virtualBorder)
	hline(img, cx-crosshairArm, cx+crosshairArm, cy+1, virtualBorder)
	vline(img, cx, cy-crosshairArm, cy+crosshairArm, virtualBorder)
	vline(img, cx+1, cy-crosshairArm, cy+crosshairArm, virtualBorder)

	drawCentered(img, "Extended Display", cy-60, virtualBorder)
	drawCentered(img, displayName, cy+30, virtualLabel)
	drawCentered(img, fmt.Sprintf("%dx%d", width, height), cy+50, virtualLabel)

	if cursor != nil {
		px := int(cursor.RX * float64(width))
		py := int(cursor.RY * float64(height))
		drawRing(img, px, py, cursorRadius, cursorRingWidth, virtualCursor)
		arm := cursorRadius + cursorOverhang
		for t := -1; t <= 1; t++ {
			hline(img, px-arm, px+arm, py+t, virtualCursor)
			vline(img, px+t, py-arm, py+arm, virtualCursor)
		}
	}

	return img
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x0, b.Min.X); x < min(x1, b.Max.X); x++ {
		img.SetRGBA(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y0, b.Min.Y); y < min(y1, b.Max.Y); y++ {
		img.SetRGBA(x, y, c)
	}
}

func drawRing(img *image.RGBA, cx, cy, radius, width int, c color.RGBA) {
	inner := (radius - width) * (radius - width)
	outer := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d >= inner && d <= outer {
				x, y := cx+dx, cy+dy
				if image.Pt(x, y).In(img.Bounds()) {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

func drawCentered(img *image.RGBA, text string, y int, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	w := d.MeasureString(text).Ceil()
	d.Dot = fixed.P((img.Bounds().Dx()-w)/2, y)
	d.DrawString(text)
}
