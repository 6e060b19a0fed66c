package cli

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"card-price-alerts/internal/app"
	"card-price-alerts/internal/fetcher"
)

var (
	simulateOld         float64
	simulateNew         float64
	simulateDestination string
	simulateMarket      string
	simulateThreshold   float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格变动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOld < 0 || simulateNew <= 0 {
			return errors.New("--old 不能为负, --new 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Destination: simulateDestination,
			Market:      fetcher.Market(strings.ToUpper(simulateMarket)),
			OldPrice:    decimal.NewFromFloat(simulateOld),
			NewPrice:    decimal.NewFromFloat(simulateNew),
			Threshold:   simulateThreshold,
		})
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateOld, "old", 10, "基线价格")
	simulateCmd.Flags().Float64Var(&simulateNew, "new", 0, "新价格")
	simulateCmd.Flags().StringVar(&simulateDestination, "destination", "", "接收告警的频道 / chat id")
	simulateCmd.Flags().StringVar(&simulateMarket, "market", "US", "US or EU")
	simulateCmd.Flags().Float64Var(&simulateThreshold, "threshold", 0, "阈值百分比 (默认取配置)")
}
