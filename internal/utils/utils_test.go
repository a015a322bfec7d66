package utils

import (
	"bufio"
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestSplitJpeg(t *testing.T) {
	// Construct a stream containing: [Garbage] [JPEG] [Garbage]
	// SOI (Start of Image): FF D8
	// EOI (End of Image):   FF D9

	jpegData := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}

	streamData := []byte{0x00, 0x00} // Garbage at start
	streamData = append(streamData, jpegData...)
	streamData = append(streamData, []byte{0x00, 0x00}...) // Garbage at end

	scanner := bufio.NewScanner(bytes.NewReader(streamData))
	scanner.Split(SplitJpeg)

	// Scan() should skip the first garbage bytes and find the JPEG
	if !scanner.Scan() {
		t.Fatal("Expected to find a token, got EOF")
	}

	if !bytes.Equal(scanner.Bytes(), jpegData) {
		t.Errorf("Expected %X, got %X", jpegData, scanner.Bytes())
	}

	// Trailing garbage is not a JPEG
	if scanner.Scan() {
		t.Error("Expected only one token, found more")
	}
}

func TestSplitJpeg_BackToBack(t *testing.T) {
	a := []byte{0xFF, 0xD8, 0xAA, 0xFF, 0xD9}
	b := []byte{0xFF, 0xD8, 0xBB, 0xBB, 0xFF, 0xD9}

	scanner := bufio.NewScanner(bytes.NewReader(append(append([]byte{}, a...), b...)))
	scanner.Split(SplitJpeg)

	var got [][]byte
	for scanner.Scan() {
		got = append(got, append([]byte(nil), scanner.Bytes()...))
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(got))
	}
	if !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Errorf("Frames split incorrectly: %X", got)
	}
}

func TestCaptureArgs(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format string
		fps    float32
		want   string
	}{
		{
			name:  "Guess format",
			input: "rtsp://cam/stream",
			want:  "-hide_banner -loglevel error -i rtsp://cam/stream -f image2pipe -vcodec mjpeg -",
		},
		{
			name:   "V4L2 device with framerate",
			input:  "/dev/video0",
			format: "v4l2",
			fps:    30,
			want:   "-hide_banner -loglevel error -f v4l2 -framerate 30 -i /dev/video0 -f image2pipe -vcodec mjpeg -",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.Join(CaptureArgs(tt.input, tt.format, tt.fps), " ")
			if got != tt.want {
				t.Errorf("CaptureArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewSafeCommandCapturesStderr(t *testing.T) {
	s := NewSafeCommand("ffmpeg", "-version")
	if s.Cmd.Stderr != s.Stderr {
		t.Fatal("Stderr buffer is not attached to the command")
	}
}

func TestStderrBufferConcurrentAccess(t *testing.T) {
	var buf StderrBuffer
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			buf.Write([]byte("x"))
		}
	}()

	// Readers run while the writer is still appending
	for i := 0; i < 500; i++ {
		_ = buf.Len()
		_ = buf.String()
	}
	wg.Wait()

	if buf.Len() != 500 {
		t.Errorf("Expected 500 bytes, got %d", buf.Len())
	}
}
