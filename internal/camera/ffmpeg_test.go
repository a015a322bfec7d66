package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeFFmpeg puts a shell script named ffmpeg first on PATH.
func fakeFFmpeg(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func withStartupTimeout(t *testing.T, d time.Duration) {
	t.Helper()
	prev := startupTimeout
	startupTimeout = d
	t.Cleanup(func() { startupTimeout = prev })
}

func ffmpegConfig() Config {
	return Config{Source: SourceFFmpeg, Device: "/dev/video9"}
}

func TestOpenFFmpegEarlyExit(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantMsg string
		wantIs  error
	}{
		{
			name:    "Missing device",
			script:  "echo '/dev/video9: No such file or directory' >&2\nexit 1\n",
			wantMsg: "/dev/video9: No such file or directory",
		},
		{
			name:   "Silent exit",
			script: "exit 0\n",
			wantIs: errNoOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeFFmpeg(t, tt.script)
			withStartupTimeout(t, 5*time.Second)

			start := time.Now()
			s, err := Open(context.Background(), ffmpegConfig(), zap.NewNop())
			if err == nil {
				s.Close()
				t.Fatal("Expected Open to fail when ffmpeg exits before a frame")
			}
			if time.Since(start) >= startupTimeout {
				t.Errorf("Open waited the full startup timeout instead of noticing the exit")
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Error %q does not carry ffmpeg's stderr", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Expected %v, got %v", tt.wantIs, err)
			}
		})
	}
}

func TestOpenFFmpegRendersFirstFrame(t *testing.T) {
	frame := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(frame, encodeFrame(t, 32, 24), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOTECAM_TEST_FRAME", frame)
	fakeFFmpeg(t, "cat \"$VOTECAM_TEST_FRAME\"\nexec sleep 5\n")
	withStartupTimeout(t, 5*time.Second)

	s, err := Open(context.Background(), ffmpegConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.Frame() == nil {
		t.Fatal("Expected Open to return with a rendered frame")
	}
	if w, h := s.Dimensions(); w != 32 || h != 24 {
		t.Errorf("Expected 32x24, got %dx%d", w, h)
	}
}

func TestOpenFFmpegCancelled(t *testing.T) {
	fakeFFmpeg(t, "exec sleep 5\n")
	withStartupTimeout(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := Open(ctx, ffmpegConfig(), zap.NewNop()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestDiagnoseWhileFFmpegWrites(t *testing.T) {
	// Only shell builtins in the loop so the kill on Close reaches the writer
	fakeFFmpeg(t, "i=0\nwhile [ $i -lt 20000 ]; do echo \"decode error $i\" >&2; i=$((i+1)); done\nexec sleep 5\n")
	withStartupTimeout(t, 20*time.Millisecond)

	s, err := Open(context.Background(), ffmpegConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Diagnose(s)
			}
		}()
	}
	wg.Wait()

	sc, derr := Diagnose(s)
	for deadline := time.Now().Add(2 * time.Second); derr == nil && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
		sc, derr = Diagnose(s)
	}
	if sc == nil {
		t.Fatal("Expected the ffmpeg command to be exposed")
	}
	if derr == nil || !strings.Contains(derr.Error(), "decode error") {
		t.Errorf("Expected stderr in diagnosis, got %v", derr)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
