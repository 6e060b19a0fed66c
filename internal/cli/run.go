package cli

import (
	"github.com/spf13/cobra"
)

var runNow bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the price tracking service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runNow)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNow, "now", false, "Sweep once immediately instead of waiting for the first interval")
}
