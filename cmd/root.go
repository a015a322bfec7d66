package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresmejia3/votecam/internal/ballot"
	"github.com/andresmejia3/votecam/internal/booth"
	"github.com/andresmejia3/votecam/internal/camera"
	"github.com/andresmejia3/votecam/internal/capture"
	"github.com/andresmejia3/votecam/internal/logging"
	"github.com/andresmejia3/votecam/internal/status"
	"github.com/andresmejia3/votecam/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds shared configuration for the capture commands
type Options struct {
	Candidate string
	Warmup    time.Duration
	Exclusive bool
	Output    string
}

var (
	// Client is the ballot client shared by subcommands
	Client *ballot.Client
	// Display is the single status surface for the session
	Display *status.Display
	// Logger is nop unless --verbose is set
	Logger *zap.Logger

	serverURL string
	timeout   time.Duration
	verbose   bool
	camCfg    camera.Config
)

// Version is the application version.
const Version = "0.0.1"

const defaultServer = "http://localhost:5000"

var rootCmd = &cobra.Command{
	Use:     "votecam",
	Short:   "Camera capture client for face-verified voting",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// If no flag was provided, fall back to the environment, then to a local server
		if serverURL == "" {
			serverURL = os.Getenv("VOTECAM_SERVER")
		}
		if serverURL == "" {
			serverURL = defaultServer
		}

		var err error
		Logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		Client, err = ballot.New(serverURL,
			ballot.WithHTTPClient(ballot.NewHTTPClient(timeout)),
			ballot.WithLogger(Logger),
		)
		if err != nil {
			return err
		}

		Display = status.New(os.Stdout)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Display != nil {
			Display.Close()
		}
		if Logger != nil {
			_ = Logger.Sync()
		}
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&serverURL, "server", "", "Voting server base URL (default: $VOTECAM_SERVER or "+defaultServer+")")
	pf.DurationVar(&timeout, "timeout", ballot.DefaultTimeout, "HTTP timeout per submission (0 disables)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")

	pf.StringVar(&camCfg.Source, "source", camera.SourceWebcam, "Camera backend: webcam or ffmpeg")
	pf.StringVarP(&camCfg.Device, "device", "d", "", "Webcam ID/label, or ffmpeg input (e.g. /dev/video0, rtsp://...)")
	pf.StringVar(&camCfg.Format, "format", "", "ffmpeg input format (e.g. v4l2, avfoundation)")
	pf.IntVar(&camCfg.Width, "width", 0, "Requested frame width (0 = camera default)")
	pf.IntVar(&camCfg.Height, "height", 0, "Requested frame height (0 = camera default)")
	pf.Float32Var(&camCfg.FrameRate, "fps", 0, "Requested frame rate (0 = camera default)")
}

// openBooth binds the camera to a new booth. When required is set a camera
// failure is fatal; otherwise the booth keeps running and captures blank frames.
func openBooth(ctx context.Context, opts Options, required bool) *booth.Booth {
	b := booth.New(Display, Client, booth.Options{Logger: Logger, Exclusive: opts.Exclusive})

	fmt.Fprintf(os.Stderr, "📷 Opening camera (%s)...\n", camCfg.Source)
	if err := b.Start(ctx, camera.NewOpener(camCfg, Logger)); err != nil {
		if required {
			utils.Die("Unable to access camera", err, nil)
		}
		return b
	}

	if opts.Warmup <= 0 {
		return b
	}
	if camera.WaitForFrame(ctx, b.Stream(), opts.Warmup) {
		w, h := b.Stream().Dimensions()
		fmt.Fprintf(os.Stderr, "🎥 Live at %dx%d\n", w, h)
		return b
	}

	if sc, err := camera.Diagnose(b.Stream()); err != nil {
		if required {
			b.Close()
			utils.Die("Camera produced no frames", err, sc)
		}
		Logger.Warn("camera stalled", zap.Error(err))
	}
	fmt.Fprintf(os.Stderr, "⚠️  No frame after %s, capture will be a blank %dx%d\n", opts.Warmup, capture.FallbackWidth, capture.FallbackHeight)
	return b
}
