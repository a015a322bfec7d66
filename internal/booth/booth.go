// Package booth is the capture-and-submit client: it binds a live camera
// stream to a status display and turns user triggers into submissions.
package booth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/andresmejia3/votecam/internal/ballot"
	"github.com/andresmejia3/votecam/internal/camera"
	"github.com/andresmejia3/votecam/internal/capture"
	"github.com/andresmejia3/votecam/internal/logging"
	"github.com/andresmejia3/votecam/internal/status"
	"github.com/andresmejia3/votecam/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrCameraUnavailable wraps any failure to acquire the video stream.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrBusy is returned in exclusive mode while another submission is in flight.
	ErrBusy = errors.New("a submission is already in flight")
	// ErrNameRequired is returned when registering without a name.
	ErrNameRequired = errors.New("name is required")
)

// Submitter is the server side of a booth.
type Submitter interface {
	Vote(ctx context.Context, requestID string, c *types.Capture, candidate string) (*types.Result, error)
	Register(ctx context.Context, requestID string, c *types.Capture, name string) (*types.Result, error)
}

var _ Submitter = (*ballot.Client)(nil)

// Options tune a Booth.
type Options struct {
	Logger *zap.Logger
	// Exclusive rejects a trigger while another submission is still in flight.
	// Off by default: overlapping triggers each POST and the last response wins.
	Exclusive bool
}

// Booth owns one stream and one display for the lifetime of a session.
type Booth struct {
	display   *status.Display
	submitter Submitter
	logger    *zap.Logger
	exclusive bool
	inflight  atomic.Bool

	mu     sync.RWMutex
	stream camera.Stream
}

// New creates a booth with no stream bound yet.
func New(display *status.Display, submitter Submitter, opts Options) *Booth {
	return &Booth{
		display:   display,
		submitter: submitter,
		logger:    logging.OrNop(opts.Logger),
		exclusive: opts.Exclusive,
	}
}

// Start requests camera access and binds the stream. On failure the display
// shows why and the booth stays usable; captures then send a blank raster.
func (b *Booth) Start(ctx context.Context, open camera.Opener) error {
	s, err := open(ctx)
	if err != nil {
		b.display.SetErrorf("", "Unable to access camera: %v", err)
		b.logger.Warn("camera access failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}

	b.mu.Lock()
	b.stream = s
	b.mu.Unlock()
	b.logger.Debug("stream bound")
	return nil
}

// Stream returns the bound stream, or nil if Start failed or was never called.
func (b *Booth) Stream() camera.Stream {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stream
}

// Snapshot freezes the current frame into a JPEG.
func (b *Booth) Snapshot() (*types.Capture, error) {
	return capture.Take(b.Stream())
}

// CaptureAndSubmit snapshots the current frame and posts it with the resolved label to /vote.
func (b *Booth) CaptureAndSubmit(ctx context.Context, rawLabel string) (*types.Result, error) {
	candidate := capture.ResolveLabel(rawLabel)
	return b.run(ctx, "vote", candidate, b.submitter.Vote)
}

// Register snapshots the current frame and enrolls it under name via /register.
func (b *Booth) Register(ctx context.Context, name string) (*types.Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		b.display.SetErrorf("", "Registration failed: %v", ErrNameRequired)
		return nil, ErrNameRequired
	}
	return b.run(ctx, "register", name, b.submitter.Register)
}

type submitFunc func(ctx context.Context, requestID string, c *types.Capture, value string) (*types.Result, error)

func (b *Booth) run(ctx context.Context, action, value string, submit submitFunc) (*types.Result, error) {
	id := uuid.NewString()
	log := b.logger.With(zap.String("request_id", id), zap.String("action", action))

	if b.exclusive {
		if !b.inflight.CompareAndSwap(false, true) {
			b.display.SetErrorf(id, "Submission failed: %v", ErrBusy)
			return nil, ErrBusy
		}
		defer b.inflight.Store(false)
	}

	// 1. Freeze and encode the frame
	capt, err := b.Snapshot()
	if err != nil {
		b.display.SetErrorf(id, "Capture failed: %v", err)
		return nil, fmt.Errorf("capture: %w", err)
	}
	log.Debug("frame captured", zap.Int("width", capt.Width), zap.Int("height", capt.Height), zap.Int("bytes", len(capt.Data)))

	// 2. Pending always precedes this invocation's outcome
	b.display.SetPending(id)

	// 3. Round trip
	res, err := submit(ctx, id, capt, value)
	if err != nil {
		b.display.SetErrorf(id, "Submission failed: %v", err)
		log.Warn("submission failed", zap.Error(err))
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	b.display.SetResult(id, res.Text)
	return res, nil
}

// Close releases the camera.
func (b *Booth) Close() error {
	b.mu.Lock()
	s := b.stream
	b.stream = nil
	b.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
