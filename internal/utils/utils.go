package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// --- 1. Capture process wrapping ---

// StderrBuffer collects a child's stderr. os/exec copies into it from its own
// goroutine, so every access takes the lock.
type StderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *StderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *StderrBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// String returns a snapshot of everything written so far.
func (b *StderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SafeCommand is an exec.Cmd whose stderr is kept, so a camera pipe that
// dies can be reported with ffmpeg's own explanation.
type SafeCommand struct {
	*exec.Cmd
	Stderr *StderrBuffer
}

// NewSafeCommand prepares, but does not start, name with its stderr captured.
func NewSafeCommand(name string, args ...string) *SafeCommand {
	cmd := exec.Command(name, args...)
	stderr := &StderrBuffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// Die ends a one-shot command (vote, register, snapshot) that cannot continue.
// The capture process's stderr is appended when s is non-nil.
func Die(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 VOTECAM ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	if s != nil {
		if logs := s.Stderr.String(); logs != "" {
			fmt.Fprintf(os.Stderr, "\nFFMPEG LOGS:\n%s\n", logs)
		}
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	os.Exit(1)
}

// --- 2. Capture Engine (ffmpeg camera source) ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// ProbeDimensions asks ffprobe for the width and height of the first video stream.
// It returns 0, 0 when the input cannot be probed; callers treat that as "metadata not loaded yet".
func ProbeDimensions(input, format string) (int, int) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return 0, 0
	}

	type ffprobeOutput struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
	}

	args := []string{"-v", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, "-select_streams", "v:0", "-show_entries", "stream=width,height", "-of", "json", input)

	out, err := exec.Command("ffprobe", args...).Output()
	if err != nil {
		return 0, 0
	}

	var res ffprobeOutput
	if err := json.Unmarshal(out, &res); err != nil || len(res.Streams) == 0 {
		return 0, 0
	}
	return res.Streams[0].Width, res.Streams[0].Height
}

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// CaptureArgs builds the ffmpeg arguments for a live MJPEG pipe.
// format is the ffmpeg demuxer (e.g. "v4l2", "avfoundation"); empty lets ffmpeg guess.
func CaptureArgs(input, format string, fps float32) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if format != "" {
		args = append(args, "-f", format)
	}
	if fps > 0 {
		args = append(args, "-framerate", fmt.Sprintf("%g", fps))
	}
	// Using -vcodec mjpeg ensures we get JPEGs Go can split
	return append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// NewCaptureCmd creates the ffmpeg process that feeds a live camera stream.
func NewCaptureCmd(input, format string, fps float32) *SafeCommand {
	return NewSafeCommand("ffmpeg", CaptureArgs(input, format, fps)...)
}
