package cmd

import (
	"time"

	"github.com/andresmejia3/votecam/internal/utils"
	"github.com/spf13/cobra"
)

var voteOpts Options

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Capture one frame and submit it as a vote",
	Run: func(cmd *cobra.Command, args []string) {
		runVote(cmd, voteOpts)
	},
}

func init() {
	rootCmd.AddCommand(voteCmd)
	voteCmd.Flags().StringVarP(&voteOpts.Candidate, "candidate", "c", "", "Candidate label (blank sends \"unknown\")")
	voteCmd.Flags().DurationVar(&voteOpts.Warmup, "warmup", time.Second, "How long to wait for the first frame")
}

func runVote(cmd *cobra.Command, opts Options) {
	ctx := cmd.Context()

	// 1. Acquire the camera; a one-shot vote has nothing to do without it
	b := openBooth(ctx, opts, true)
	defer b.Close()

	// 2. Capture and submit. The display already carries the outcome.
	if _, err := b.CaptureAndSubmit(ctx, opts.Candidate); err != nil {
		b.Close()
		utils.Die("Vote was not recorded", err, nil)
	}
}
