package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

var boothOpts Options

var boothCmd = &cobra.Command{
	Use:   "booth",
	Short: "Keep the camera live and submit a vote for every line read from stdin",
	Long: `Keep the camera live and submit a vote for every line read from stdin.

Each line is a candidate label; an empty line votes "unknown". Submissions
run concurrently and the most recent response to arrive is what stays on
screen. Use --exclusive to reject a trigger while another is in flight.`,
	Run: func(cmd *cobra.Command, args []string) {
		runBooth(cmd, boothOpts)
	},
}

func init() {
	rootCmd.AddCommand(boothCmd)
	boothCmd.Flags().BoolVar(&boothOpts.Exclusive, "exclusive", false, "Reject triggers while a submission is in flight")
	boothCmd.Flags().DurationVar(&boothOpts.Warmup, "warmup", time.Second, "How long to wait for the first frame")
}

func runBooth(cmd *cobra.Command, opts Options) {
	ctx := cmd.Context()

	// 1. Camera failure is reported on the display but the booth stays open
	b := openBooth(ctx, opts, false)
	defer b.Close()

	fmt.Fprintln(os.Stderr, "🗳️  Type a candidate and press Enter to vote (Ctrl+D to quit)")

	// 2. One goroutine per trigger; errors already land on the display
	n := serveTriggers(ctx, os.Stdin, func(label string) {
		_, _ = b.CaptureAndSubmit(ctx, label)
	})

	Logger.Sugar().Debugf("booth closed after %d triggers", n)
}

// serveTriggers calls fire in its own goroutine for every line read from in,
// then waits for all of them. Cancelling ctx stops reading but still waits.
func serveTriggers(ctx context.Context, in io.Reader, fire func(label string)) int {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	count := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			count++
			wg.Add(1)
			go func() {
				defer wg.Done()
				fire(line)
			}()
		}
	}

	wg.Wait()
	return count
}
