package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"card-price-alerts/internal/alerting"
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/service"
	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// Track starts tracking a card for a group and prints the captured baseline.
func (a *App) Track(ctx context.Context, opts TrackOptions) error {
	svc, closeAll, err := a.newService(ctx, serviceOptions{manage: true})
	if err != nil {
		return err
	}
	defer closeAll()

	res, err := svc.Track(ctx, service.TrackRequest{
		GroupID:     opts.GroupID,
		ItemID:      opts.ItemID,
		Destination: opts.Destination,
		CreatedBy:   opts.CreatedBy,
	})
	switch {
	case errors.Is(err, service.ErrAlreadyTracked):
		fmt.Fprintf(a.Out, "%s is already tracked in %s\n", opts.ItemID, opts.GroupID)
		return nil
	case errors.Is(err, fetcher.ErrNotFound):
		return fmt.Errorf("card %s not found", opts.ItemID)
	case err != nil:
		return err
	}

	fmt.Fprintf(a.Out, "Now tracking %s\n", res.Card.Label())
	return a.printPrices(res.Item.LastPrices, res.Currency)
}

// Untrack stops tracking a card for a group.
func (a *App) Untrack(ctx context.Context, groupID, itemID string) error {
	svc, closeAll, err := a.newService(ctx, serviceOptions{manage: true})
	if err != nil {
		return err
	}
	defer closeAll()

	removed, err := svc.Untrack(ctx, groupID, itemID)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(a.Out, "%s is not tracked in %s\n", itemID, groupID)
		return nil
	}
	fmt.Fprintf(a.Out, "Stopped tracking %s\n", itemID)
	return nil
}

// Price prints the tracked-price projection of a card without storing it.
func (a *App) Price(ctx context.Context, itemID string) error {
	svc, closeAll, err := a.newService(ctx, serviceOptions{manage: true})
	if err != nil {
		return err
	}
	defer closeAll()

	card, prices, err := svc.Quote(ctx, itemID)
	if errors.Is(err, fetcher.ErrNotFound) {
		return fmt.Errorf("card %s not found", itemID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "%s [%s]\n", card.Label(), tracking.VariantOf(card.Market))
	if card.Rarity != "" {
		fmt.Fprintf(a.Out, "Rarity: %s\n", card.Rarity)
	}
	return a.printPrices(prices, tracking.Currency(card))
}

// Search lists cards matching a free-text query.
func (a *App) Search(ctx context.Context, opts SearchOptions) error {
	cards, err := a.newSource().SearchCards(ctx, opts.Query, opts.Limit, opts.Market)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Fprintf(a.Out, "no cards found for %q\n", opts.Query)
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tCard\tRarity\tMarket")
	for _, card := range cards {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", card.ID, card.Label(), card.Rarity, card.Market)
	}
	return writer.Flush()
}

func (a *App) printPrices(prices storage.Prices, currency string) error {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	for _, key := range prices.Keys() {
		fmt.Fprintf(writer, "  %s\t%s\n", tracking.SourceLabel(key), alerting.FormatNullablePrice(prices[key], currency))
	}
	return writer.Flush()
}
