package cli

import (
	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
)

var showGroup string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List tracked cards and their baselines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{GroupID: showGroup})
	},
}

func init() {
	showCmd.Flags().StringVar(&showGroup, "group", "", "Only show this group (default: all groups)")
}
