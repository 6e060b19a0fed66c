package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkThreshold float64

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Re-price every tracked card once and send alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkThreshold < 0 {
			return fmt.Errorf("--threshold cannot be negative")
		}
		return getApp().Check(cmd.Context(), checkThreshold)
	},
}

func init() {
	checkCmd.Flags().Float64Var(&checkThreshold, "threshold", 0, "Alert threshold in percent (defaults to config)")
}
