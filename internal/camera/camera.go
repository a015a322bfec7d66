// Package camera acquires a live video stream and keeps its latest frame in memory.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/andresmejia3/votecam/internal/logging"
	"go.uber.org/zap"
)

// Sources
const (
	SourceWebcam = "webcam"
	SourceFFmpeg = "ffmpeg"
)

// Default constraints used when the caller leaves a value at zero.
const (
	IdealWidth     = 640
	IdealHeight    = 480
	IdealFrameRate = 30.0
)

var errNoVideoTrack = errors.New("no video track in media stream")

// Stream is a live video source. Frame and Dimensions reflect whatever was
// most recently rendered, like a <video> element bound to a camera.
type Stream interface {
	// Dimensions reports the current frame size, or 0, 0 until known.
	Dimensions() (width, height int)
	// Frame returns the latest frame, or nil until one has arrived.
	Frame() image.Image
	Close() error
}

// Opener requests access to a camera.
type Opener func(ctx context.Context) (Stream, error)

// Config selects and constrains the video source.
type Config struct {
	Source    string  // "webcam" (mediadevices) or "ffmpeg"
	Device    string  // mediadevices device ID / label, or ffmpeg input
	Format    string  // ffmpeg demuxer, e.g. "v4l2"
	Width     int     // 0 = ideal
	Height    int     // 0 = ideal
	FrameRate float32 // 0 = ideal
}

// Validate checks the config before any device is touched.
func (c Config) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("got illegal negative dimensions (%d, %d) for width and height", c.Width, c.Height)
	}
	if c.FrameRate < 0 {
		return fmt.Errorf("got illegal negative frame rate (%.2f)", c.FrameRate)
	}
	switch c.Source {
	case SourceWebcam:
	case SourceFFmpeg:
		if c.Device == "" {
			return errors.New("ffmpeg source requires a device or input")
		}
	default:
		return fmt.Errorf("unknown camera source %q (want %s or %s)", c.Source, SourceWebcam, SourceFFmpeg)
	}
	return nil
}

// Open requests the configured video source and starts rendering frames.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger).With(zap.String("source", cfg.Source), zap.String("device", cfg.Device))

	switch cfg.Source {
	case SourceFFmpeg:
		return openFFmpeg(ctx, cfg, logger)
	default:
		return openWebcam(ctx, cfg, logger)
	}
}

// NewOpener binds a config so the stream can be requested later.
func NewOpener(cfg Config, logger *zap.Logger) Opener {
	return func(ctx context.Context) (Stream, error) {
		return Open(ctx, cfg, logger)
	}
}

// frameBuffer holds the latest rendered frame. Readers never see a frame
// that is still owned by the driver.
type frameBuffer struct {
	mu     sync.RWMutex
	img    image.Image
	width  int
	height int
}

func (b *frameBuffer) set(img image.Image) {
	bounds := img.Bounds()
	b.mu.Lock()
	b.img = img
	b.width = bounds.Dx()
	b.height = bounds.Dy()
	b.mu.Unlock()
}

// setDimensions records reported metadata before any frame has been decoded.
func (b *frameBuffer) setDimensions(w, h int) {
	b.mu.Lock()
	if b.img == nil {
		b.width = w
		b.height = h
	}
	b.mu.Unlock()
}

func (b *frameBuffer) Frame() image.Image {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.img
}

func (b *frameBuffer) Dimensions() (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.width, b.height
}
