package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// SimulateOptions describe a synthetic price move.
type SimulateOptions struct {
	Destination string
	Market      fetcher.Market
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	Threshold   float64
}

// SimulateAlert 通过一次模拟的价格变动走完整条告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	dir, err := os.MkdirTemp("", "cardwatcher-simulate-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	store := storage.NewFileStore(filepath.Join(dir, "tracked.json"), a.Logger)
	card := simulatedCard(opts.Market, opts.NewPrice)
	baseline := tracking.Project(simulatedCard(opts.Market, opts.OldPrice))

	err = store.AddItem(ctx, "simulation", card.ID, storage.TrackedItem{
		Destination: opts.Destination,
		LastPrices:  baseline,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   "simulate-alert",
	})
	if err != nil {
		return err
	}

	svc, closeAll, err := a.newService(ctx, serviceOptions{
		threshold: opts.Threshold,
		source:    &staticSource{card: card},
		store:     store,
	})
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	if report.Changes == 0 {
		fmt.Fprintf(a.Out, "price move below threshold (%s%%), nothing sent\n", svc.Threshold())
		return nil
	}
	if report.NotifyFailed > 0 {
		return fmt.Errorf("模拟告警发送失败 (%d)", report.NotifyFailed)
	}
	fmt.Fprintf(a.Out, "sent %d simulated alert(s)\n", report.Notified)
	return nil
}

func simulatedCard(market fetcher.Market, price decimal.Decimal) fetcher.Card {
	card := fetcher.Card{CardListItem: fetcher.CardListItem{
		ID:         "simulated-card",
		Name:       "Simulated Card",
		CardNumber: "000",
		Set:        fetcher.CardSet{Slug: "simulation", Name: "Simulation"},
		Market:     market,
	}}
	tier := map[string]fetcher.TierPrice{}
	switch tracking.VariantOf(market) {
	case tracking.VariantUS:
		tier["NEAR_MINT"] = fetcher.TierPrice{Avg: decimal.NewNullDecimal(price)}
		card.Prices.TCGPlayer = tier
	default:
		tier["AGGREGATED"] = fetcher.TierPrice{Avg: decimal.NewNullDecimal(price)}
		card.Prices.Cardmarket = tier
	}
	return card
}

type staticSource struct {
	card fetcher.Card
}

func (s *staticSource) FetchCard(context.Context, string) (fetcher.Card, error) {
	return s.card, nil
}

var _ fetcher.PriceSource = (*staticSource)(nil)
