package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
)

var (
	historyTier   string
	historyPeriod string
	historyPNG    string
)

var historyCmd = &cobra.Command{
	Use:   "history <card-id>",
	Short: "Show the recorded price history of a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch historyPeriod {
		case "7d", "30d", "90d":
		default:
			return fmt.Errorf("--period must be one of 7d, 30d, 90d")
		}
		return getApp().History(cmd.Context(), app.HistoryOptions{
			CardID:  args[0],
			Tier:    strings.ToUpper(strings.TrimSpace(historyTier)),
			Period:  historyPeriod,
			PNGPath: historyPNG,
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyTier, "tier", "NEAR_MINT", "Price tier (e.g. NEAR_MINT, LIGHTLY_PLAYED, PSA_10)")
	historyCmd.Flags().StringVar(&historyPeriod, "period", "30d", "Time period: 7d, 30d or 90d")
	historyCmd.Flags().StringVar(&historyPNG, "png", "", "Also write a line chart to this PNG path")
}
