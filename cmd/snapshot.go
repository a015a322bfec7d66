package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/votecam/internal/capture"
	"github.com/andresmejia3/votecam/internal/utils"
	"github.com/spf13/cobra"
)

var snapshotOpts Options

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture one frame to a local JPEG without submitting it",
	Run: func(cmd *cobra.Command, args []string) {
		runSnapshot(cmd, snapshotOpts)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapshotOpts.Output, "output", "o", capture.Filename, "Where to write the JPEG")
	snapshotCmd.Flags().DurationVar(&snapshotOpts.Warmup, "warmup", time.Second, "How long to wait for the first frame")
}

func runSnapshot(cmd *cobra.Command, opts Options) {
	b := openBooth(cmd.Context(), opts, true)
	defer b.Close()

	capt, err := b.Snapshot()
	if err != nil {
		b.Close()
		utils.Die("Failed to capture frame", err, nil)
	}

	if err := os.WriteFile(opts.Output, capt.Data, 0o644); err != nil {
		b.Close()
		utils.Die("Failed to write snapshot", err, nil)
	}

	fmt.Fprintf(os.Stderr, "✅ Wrote %dx%d frame to %s (%d bytes)\n", capt.Width, capt.Height, opts.Output, len(capt.Data))
}
