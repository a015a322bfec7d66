package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/votecam/internal/camera"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List video input devices visible to the webcam backend",
	Run: func(cmd *cobra.Command, args []string) {
		runDevices()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices() {
	devices := camera.ListDevices()
	if len(devices) == 0 {
		fmt.Println("No video input devices found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL")
	fmt.Fprintln(w, "--\t-----")

	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Label)
	}
	w.Flush()
}
