// Package capture freezes the current frame of a live stream into an upload-ready JPEG.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/andresmejia3/votecam/internal/types"
	"github.com/disintegration/imaging"
)

const (
	// DefaultLabel is submitted when the candidate field is left blank.
	DefaultLabel = "unknown"

	// Raster size used while the stream has not reported its dimensions yet.
	FallbackWidth  = 320
	FallbackHeight = 240

	// Quality is the JPEG quality (0.9 on a 0-1 scale).
	Quality = 90

	Filename = "capture.jpg"
	MIMEType = "image/jpeg"
)

// Source is the slice of a live stream a capture needs.
type Source interface {
	Dimensions() (width, height int)
	Frame() image.Image
}

// ResolveLabel returns raw verbatim unless it is empty or only whitespace.
func ResolveLabel(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return DefaultLabel
	}
	return raw
}

// Dimensions picks the raster size for a capture. If either reported
// dimension is unset the whole raster falls back to 320x240.
func Dimensions(width, height int) (int, int) {
	if width <= 0 || height <= 0 {
		return FallbackWidth, FallbackHeight
	}
	return width, height
}

// Render draws frame onto a fresh width x height raster. A nil frame leaves
// the raster blank, which is what a camera without data would show.
func Render(frame image.Image, width, height int) *image.NRGBA {
	canvas := imaging.New(width, height, color.Black)
	if frame == nil {
		return canvas
	}

	size := frame.Bounds().Size()
	if size.X != width || size.Y != height {
		frame = imaging.Resize(frame, width, height, imaging.Linear)
	}
	return imaging.Paste(canvas, frame, image.Point{})
}

// Encode compresses img as a JPEG at the capture quality.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(Quality)); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Take snapshots src. A nil src behaves like a stream that never loaded.
func Take(src Source) (*types.Capture, error) {
	var (
		frame image.Image
		w, h  int
	)
	if src != nil {
		w, h = src.Dimensions()
		frame = src.Frame()
	}
	w, h = Dimensions(w, h)

	data, err := Encode(Render(frame, w, h))
	if err != nil {
		return nil, err
	}
	return &types.Capture{Data: data, Width: w, Height: h}, nil
}
