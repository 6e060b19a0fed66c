package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrFetch wraps every failure to obtain price data. Callers treat it as
	// transient: the item is skipped and retried on the next sweep.
	ErrFetch = errors.New("fetcher: price source unavailable")
	// ErrNotFound is returned (together with ErrFetch) for unknown card ids.
	ErrNotFound = errors.New("fetcher: card not found")
)

// PriceSource retrieves current price data for a card.
type PriceSource interface {
	FetchCard(ctx context.Context, id string) (Card, error)
}

// CardSearcher looks cards up by free text.
type CardSearcher interface {
	SearchCards(ctx context.Context, query string, limit int, market Market) ([]CardListItem, error)
}

// PriceHistorian reads the recorded price history of one tier of a card.
type PriceHistorian interface {
	PriceHistory(ctx context.Context, id, tier, period string) ([]HistoryEntry, error)
}
