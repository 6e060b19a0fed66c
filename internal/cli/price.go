package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
	"card-price-alerts/internal/fetcher"
)

var (
	searchLimit  int
	searchMarket string
)

var priceCmd = &cobra.Command{
	Use:   "price <card-id>",
	Short: "Show the current tracked prices of a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Price(cmd.Context(), args[0])
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cards by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if searchLimit <= 0 || searchLimit > 25 {
			return fmt.Errorf("--limit must be between 1 and 25")
		}
		market := fetcher.Market(strings.ToUpper(searchMarket))
		if market != fetcher.MarketUS && market != fetcher.MarketEU {
			return fmt.Errorf("--market must be US or EU")
		}
		return getApp().Search(cmd.Context(), app.SearchOptions{
			Query:  strings.Join(args, " "),
			Limit:  searchLimit,
			Market: market,
		})
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "Number of results")
	searchCmd.Flags().StringVar(&searchMarket, "market", "US", "Market to search (US or EU)")
}
