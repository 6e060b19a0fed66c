package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
)

var (
	alertsGroup       string
	alertsLimit       int
	alertsPruneBefore string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show or prune the alert log (requires database.dsn)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.AlertsOptions{
			GroupID: alertsGroup,
			Limit:   alertsLimit,
		}
		if alertsPruneBefore != "" {
			before, err := time.Parse(time.RFC3339, alertsPruneBefore)
			if err != nil {
				return fmt.Errorf("invalid --prune-before value: %w", err)
			}
			opts.PruneBefore = &before
		}

		return getApp().Alerts(cmd.Context(), opts)
	},
}

func init() {
	alertsCmd.Flags().StringVar(&alertsGroup, "group", "", "Only show alerts of this group")
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")
	alertsCmd.Flags().StringVar(&alertsPruneBefore, "prune-before", "", "Delete alerts older than this timestamp (RFC3339)")
}
