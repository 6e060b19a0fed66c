package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
)

var (
	trackGroup       string
	trackDestination string
	trackBy          string
	untrackGroup     string
)

var trackCmd = &cobra.Command{
	Use:   "track <card-id>",
	Short: "Start tracking a card for a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if trackGroup == "" || trackDestination == "" {
			return fmt.Errorf("--group and --destination must be provided")
		}
		return getApp().Track(cmd.Context(), app.TrackOptions{
			GroupID:     trackGroup,
			ItemID:      args[0],
			Destination: trackDestination,
			CreatedBy:   trackBy,
		})
	},
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <card-id>",
	Short: "Stop tracking a card for a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if untrackGroup == "" {
			return fmt.Errorf("--group must be provided")
		}
		return getApp().Untrack(cmd.Context(), untrackGroup, args[0])
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackGroup, "group", "", "Subscriber group id (e.g. Discord guild id)")
	trackCmd.Flags().StringVar(&trackDestination, "destination", "", "Channel or chat id that receives alerts")
	trackCmd.Flags().StringVar(&trackBy, "by", "cli", "Who asked for tracking")

	untrackCmd.Flags().StringVar(&untrackGroup, "group", "", "Subscriber group id")
}
