package service

import (
	"context"
	"fmt"

	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// TrackRequest asks a group to follow an item.
type TrackRequest struct {
	GroupID     string
	ItemID      string
	Destination string
	CreatedBy   string
}

// TrackResult carries the fetched card and the baseline captured for it.
type TrackResult struct {
	Card     fetcher.Card
	Item     storage.TrackedItem
	Currency string
}

// Track fetches the item, captures its baseline with the same projection
// the sweep uses, and stores it. Fetch and storage errors are returned.
func (s *Service) Track(ctx context.Context, req TrackRequest) (TrackResult, error) {
	if req.GroupID == "" || req.ItemID == "" {
		return TrackResult{}, fmt.Errorf("group id and item id are required")
	}

	unlock := s.items.lock(req.GroupID, req.ItemID)
	defer unlock()

	if _, ok := s.store.GetGroup(ctx, req.GroupID)[req.ItemID]; ok {
		return TrackResult{}, fmt.Errorf("track %s in %s: %w", req.ItemID, req.GroupID, ErrAlreadyTracked)
	}

	card, err := s.source.FetchCard(ctx, req.ItemID)
	if err != nil {
		return TrackResult{}, fmt.Errorf("track %s: %w", req.ItemID, err)
	}

	item := storage.TrackedItem{
		Destination: req.Destination,
		LastPrices:  tracking.Project(card),
		CreatedAt:   s.now(),
		CreatedBy:   req.CreatedBy,
	}
	if err := s.store.AddItem(ctx, req.GroupID, req.ItemID, item); err != nil {
		return TrackResult{}, fmt.Errorf("track %s: %w", req.ItemID, err)
	}

	s.logger.Info().
		Str("group_id", req.GroupID).
		Str("item_id", req.ItemID).
		Str("destination", req.Destination).
		Str("variant", tracking.VariantOf(card.Market).String()).
		Msg("item tracked")

	return TrackResult{Card: card, Item: item, Currency: tracking.Currency(card)}, nil
}

// Untrack removes an item and reports whether it was tracked.
func (s *Service) Untrack(ctx context.Context, groupID, itemID string) (bool, error) {
	unlock := s.items.lock(groupID, itemID)
	defer unlock()

	removed, err := s.store.RemoveItem(ctx, groupID, itemID)
	if err != nil {
		return false, fmt.Errorf("untrack %s: %w", itemID, err)
	}
	if removed {
		s.logger.Info().Str("group_id", groupID).Str("item_id", itemID).Msg("item untracked")
	}
	return removed, nil
}

// Tracked returns the items a group follows.
func (s *Service) Tracked(ctx context.Context, groupID string) storage.Group {
	return s.store.GetGroup(ctx, groupID)
}

// All returns every tracked item across groups.
func (s *Service) All(ctx context.Context) storage.Snapshot {
	return s.store.GetAll(ctx)
}

// Item returns one tracked record or ErrNotTracked.
func (s *Service) Item(ctx context.Context, groupID, itemID string) (storage.TrackedItem, error) {
	item, ok := s.store.GetGroup(ctx, groupID)[itemID]
	if !ok {
		return storage.TrackedItem{}, fmt.Errorf("%s in %s: %w", itemID, groupID, ErrNotTracked)
	}
	return item, nil
}

// Quote fetches a card and its tracked-price projection without storing anything.
func (s *Service) Quote(ctx context.Context, itemID string) (fetcher.Card, storage.Prices, error) {
	card, err := s.source.FetchCard(ctx, itemID)
	if err != nil {
		return fetcher.Card{}, nil, err
	}
	return card, tracking.Project(card), nil
}
