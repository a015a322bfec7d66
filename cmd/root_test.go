package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/votecam/internal/ballot"
	"github.com/andresmejia3/votecam/internal/camera"
	"github.com/andresmejia3/votecam/internal/status"
	"go.uber.org/zap"
)

func TestOpenBoothSurvivesFFmpegFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\necho '/dev/video9: No such file or directory' >&2\nexit 1\n"
	if err := os.WriteFile(filepath.Join(dir, "ffmpeg"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	prevCfg := camCfg
	t.Cleanup(func() { camCfg = prevCfg })
	camCfg = camera.Config{Source: camera.SourceFFmpeg, Device: "/dev/video9"}

	var out bytes.Buffer
	Display = status.New(&out)
	Logger = zap.NewNop()
	var err error
	if Client, err = ballot.New("http://localhost:5000"); err != nil {
		t.Fatal(err)
	}

	// A fatal exit here would end the test binary, so returning at all is the check
	b := openBooth(context.Background(), Options{Warmup: 300 * time.Millisecond}, false)
	defer b.Close()

	if b.Stream() != nil {
		t.Error("Expected no stream to be bound")
	}
	if Display.Phase() != status.Failed {
		t.Errorf("Expected error phase, got %v", Display.Phase())
	}
	want := "Unable to access camera: "
	if got := Display.Text(); !strings.HasPrefix(got, want) || !strings.Contains(got, "No such file or directory") {
		t.Errorf("Display = %q, want %q followed by ffmpeg's reason", got, want)
	}

	// Still usable: a capture falls back to a blank raster
	capt, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot after camera failure: %v", err)
	}
	if capt.Width != 320 || capt.Height != 240 {
		t.Errorf("Expected 320x240 fallback, got %dx%d", capt.Width, capt.Height)
	}
}
