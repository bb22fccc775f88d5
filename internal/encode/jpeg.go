// Package encode turns captured frames into transport-ready JPEG payloads.
package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Encoder downscales frames wider than TargetWidth (preserving aspect
// ratio) and compresses them to JPEG at the configured quality.
type Encoder struct {
	TargetWidth int
	Quality     int
}

func New(targetWidth, quality int) *Encoder {
	return &Encoder{TargetWidth: targetWidth, Quality: quality}
}

// Encode returns the JPEG bytes for img. Frames at or below TargetWidth
// pass through unscaled.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("encode: empty frame %dx%d", b.Dx(), b.Dy())
	}

	if e.TargetWidth > 0 && b.Dx() > e.TargetWidth {
		targetHeight := b.Dy() * e.TargetWidth / b.Dx()
		if targetHeight < 1 {
			targetHeight = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, e.TargetWidth, targetHeight))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("encode: jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
