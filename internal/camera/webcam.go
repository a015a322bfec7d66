package camera

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pion/mediadevices"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"
)

// Device describes a video input that can be passed to --device.
type Device struct {
	ID    string
	Label string
}

// ListDevices enumerates the video inputs visible to mediadevices.
func ListDevices() []Device {
	mediadevicescamera.Initialize()
	var devices []Device
	for _, info := range mediadevices.EnumerateDevices() {
		if info.Kind != mediadevices.VideoInput {
			continue
		}
		label := strings.Split(info.Label, mediadevicescamera.LabelSeparator)[0]
		devices = append(devices, Device{ID: info.DeviceID, Label: label})
	}
	return devices
}

// makeConstraints translates our config into mediadevices constraints,
// the same knobs getUserMedia({video: ...}) exposes in a browser.
func makeConstraints(cfg Config) mediadevices.MediaStreamConstraints {
	return mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if cfg.Device != "" {
				c.DeviceID = prop.StringExact(resolveDeviceID(cfg.Device))
			}
			if cfg.Width > 0 {
				c.Width = prop.IntExact(cfg.Width)
			} else {
				c.Width = prop.IntRanged{Min: 0, Ideal: IdealWidth, Max: 4096}
			}
			if cfg.Height > 0 {
				c.Height = prop.IntExact(cfg.Height)
			} else {
				c.Height = prop.IntRanged{Min: 0, Ideal: IdealHeight, Max: 2160}
			}
			if cfg.FrameRate > 0 {
				c.FrameRate = prop.FloatExact(cfg.FrameRate)
			} else {
				c.FrameRate = prop.FloatRanged{Min: 0, Ideal: IdealFrameRate, Max: 140}
			}
			c.FrameFormat = prop.FrameFormatOneOf{
				frame.FormatI420,
				frame.FormatYUY2,
				frame.FormatUYVY,
				frame.FormatRGBA,
				frame.FormatMJPEG,
				frame.FormatNV12,
			}
		},
	}
}

// resolveDeviceID accepts either a device ID or a label such as /dev/video0.
func resolveDeviceID(device string) string {
	for _, d := range ListDevices() {
		if d.ID == device || d.Label == device {
			return d.ID
		}
	}
	return device
}

// closeTimeout bounds how long Close waits for the pump to drain.
const closeTimeout = 2 * time.Second

// webcam keeps a mediadevices track rendering into a frameBuffer.
type webcam struct {
	frameBuffer

	track  mediadevices.Track
	reader video.Reader
	logger *zap.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func openWebcam(ctx context.Context, cfg Config, logger *zap.Logger) (*webcam, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mediadevicescamera.Initialize()

	stream, err := mediadevices.GetUserMedia(makeConstraints(cfg))
	if err != nil {
		return nil, err
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, errNoVideoTrack
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		_ = tracks[0].Close()
		return nil, fmt.Errorf("unexpected track type %T", tracks[0])
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	w := &webcam{
		track:  vt,
		reader: vt.NewReader(false),
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.pump(pumpCtx)

	logger.Debug("webcam opened", zap.String("track", vt.ID()))
	return w, nil
}

// pump renders frames until the track is closed.
func (w *webcam) pump(ctx context.Context) {
	defer close(w.done)
	for {
		img, release, err := w.reader.Read()
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("webcam read failed", zap.Error(err))
			}
			return
		}
		// The driver reuses its buffer after release, so keep our own copy.
		w.set(imaging.Clone(img))
		release()

		if ctx.Err() != nil {
			return
		}
	}
}

func (w *webcam) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		w.closeErr = w.track.Close()
		select {
		case <-w.done:
		case <-time.After(closeTimeout):
			w.logger.Warn("webcam reader did not stop after close")
		}
	})
	return w.closeErr
}
