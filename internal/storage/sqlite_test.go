package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracked.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	item := sampleItem("10.00")
	if err := store.AddItem(ctx, "guild-1", "card-1", item); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got, ok := store.GetGroup(ctx, "guild-1")["card-1"]
	if !ok {
		t.Fatal("card-1 missing")
	}
	if got.Destination != item.Destination || got.CreatedBy != item.CreatedBy || !got.CreatedAt.Equal(item.CreatedAt) {
		t.Fatalf("record mismatch: %#v", got)
	}
	if !got.LastPrices["tcgplayer_near_mint"].Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("price mismatch: %#v", got.LastPrices)
	}
	if got.LastPrices["ebay_near_mint"].Valid {
		t.Fatal("null price should stay null")
	}

	if err := store.UpdateLastPrices(ctx, "guild-1", "card-1", Prices{"tcgplayer_near_mint": Price(decimal.RequireFromString("10.6"))}); err != nil {
		t.Fatalf("UpdateLastPrices: %v", err)
	}
	got = store.GetAll(ctx)["guild-1"]["card-1"]
	if !got.LastPrices["tcgplayer_near_mint"].Decimal.Equal(decimal.RequireFromString("10.6")) {
		t.Fatalf("baseline not updated: %#v", got.LastPrices)
	}

	removed, err := store.RemoveItem(ctx, "guild-1", "card-1")
	if err != nil || !removed {
		t.Fatalf("RemoveItem = %v, %v", removed, err)
	}
	if _, ok := store.GetAll(ctx)["guild-1"]; ok {
		t.Fatal("group should disappear with its last item")
	}

	removed, err = store.RemoveItem(ctx, "guild-1", "card-1")
	if err != nil || removed {
		t.Fatalf("second RemoveItem = %v, %v", removed, err)
	}
}

func TestSQLiteStoreUpdateMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	if err := store.UpdateLastPrices(ctx, "guild-1", "gone", Prices{}); err != nil {
		t.Fatalf("UpdateLastPrices: %v", err)
	}
	if len(store.GetAll(ctx)) != 0 {
		t.Fatal("update must not create rows")
	}
}
