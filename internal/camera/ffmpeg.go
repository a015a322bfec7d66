package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/andresmejia3/votecam/internal/utils"
	"github.com/disintegration/imaging"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const megabyte = 1024 * 1024

// startupTimeout bounds how long Open waits for ffmpeg to either render a
// frame or exit. Slow inputs (RTSP) that outlive it are still returned.
var startupTimeout = 3 * time.Second

var errNoOutput = errors.New("ffmpeg exited without producing a frame")

// ffmpegStream renders an ffmpeg MJPEG pipe into a frameBuffer.
type ffmpegStream struct {
	frameBuffer

	cmd    *utils.SafeCommand
	stdout io.ReadCloser
	logger *zap.Logger

	done      chan struct{}
	mu        sync.Mutex
	pumpErr   error
	closeOnce sync.Once
	closeErr  error
}

func openFFmpeg(ctx context.Context, cfg Config, logger *zap.Logger) (*ffmpegStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := utils.NewCaptureCmd(cfg.Device, cfg.Format, cfg.FrameRate)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cmd:    cmd,
		stdout: stdout,
		logger: logger,
		done:   make(chan struct{}),
	}

	// Metadata first so dimensions are known before the first frame decodes.
	if w, h := utils.ProbeDimensions(cfg.Device, cfg.Format); w > 0 && h > 0 {
		s.setDimensions(w, h)
		logger.Debug("probed input", zap.Int("width", w), zap.Int("height", h))
	}

	go func() {
		defer close(s.done)
		err := pumpMJPEG(stdout, &s.frameBuffer, logger)
		s.mu.Lock()
		s.pumpErr = err
		s.mu.Unlock()
	}()

	if err := s.awaitStart(ctx, startupTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

// awaitStart returns once the first frame renders or timeout elapses. An ffmpeg
// that exits first (missing device, bad format) is reaped and reported.
func (s *ffmpegStream) awaitStart(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		if s.Frame() != nil {
			return nil
		}
		select {
		case <-s.done:
			// A short input may deliver its only frame right before EOF.
			if s.Frame() != nil {
				return nil
			}
			s.Close()
			return s.exitErr()
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-deadline.C:
			s.logger.Debug("no frame yet, continuing", zap.Duration("waited", timeout))
			return nil
		case <-tick.C:
		}
	}
}

// exitErr explains a pipe that has stopped, preferring ffmpeg's own words.
func (s *ffmpegStream) exitErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return errNoOutput
}

// pumpMJPEG splits a concatenated JPEG stream and renders every frame that decodes.
// It returns when r is exhausted or fails.
func pumpMJPEG(r io.Reader, buf *frameBuffer, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	frames := 0
	for scanner.Scan() {
		img, err := imaging.Decode(bytes.NewReader(scanner.Bytes()))
		if err != nil {
			logger.Debug("dropping undecodable frame", zap.Int("frame", frames), zap.Error(err))
			continue
		}
		buf.set(img)
		frames++
	}
	return scanner.Err()
}

// Err reports why the pipe stopped, including ffmpeg's own stderr.
func (s *ffmpegStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpErr != nil {
		return s.pumpErr
	}
	if logs := strings.TrimSpace(s.cmd.Stderr.String()); logs != "" {
		return fmt.Errorf("ffmpeg: %s", logs)
	}
	return nil
}

// Command exposes the underlying process so fatal errors can dump its logs.
func (s *ffmpegStream) Command() *utils.SafeCommand {
	return s.cmd
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		var err error
		if s.cmd.Process != nil {
			if kerr := s.cmd.Process.Kill(); !errors.Is(kerr, os.ErrProcessDone) {
				err = multierr.Append(err, kerr)
			}
		}
		err = multierr.Append(err, s.stdout.Close())
		<-s.done
		// Wait reports the kill we just sent; that is expected.
		_ = s.cmd.Wait()
		s.closeErr = err
	})
	return s.closeErr
}

// WaitForFrame blocks until the stream has rendered a frame or timeout elapses.
// It returns false on timeout; the stream is still usable and will capture
// a fallback-sized raster.
func WaitForFrame(ctx context.Context, s Stream, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		if s.Frame() != nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}

// Diagnose returns the capture process behind s, if any, and why it stopped.
func Diagnose(s Stream) (*utils.SafeCommand, error) {
	fs, ok := s.(*ffmpegStream)
	if !ok {
		return nil, nil
	}
	return fs.Command(), fs.Err()
}
