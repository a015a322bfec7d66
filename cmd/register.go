package cmd

import (
	"time"

	"github.com/andresmejia3/votecam/internal/utils"
	"github.com/spf13/cobra"
)

var registerOpts Options

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Enroll the face in front of the camera under a name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRegister(cmd, args[0], registerOpts)
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().DurationVar(&registerOpts.Warmup, "warmup", time.Second, "How long to wait for the first frame")
}

func runRegister(cmd *cobra.Command, name string, opts Options) {
	ctx := cmd.Context()

	b := openBooth(ctx, opts, true)
	defer b.Close()

	if _, err := b.Register(ctx, name); err != nil {
		b.Close()
		utils.Die("Registration was not recorded", err, nil)
	}
}
