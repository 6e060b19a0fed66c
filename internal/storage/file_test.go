package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "data", "tracked.json"), zerolog.Nop())
}

func sampleItem(price string) TrackedItem {
	return TrackedItem{
		Destination: "channel-1",
		LastPrices: Prices{
			"tcgplayer_near_mint": Price(decimal.RequireFromString(price)),
			"ebay_near_mint":      {},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy: "user-1",
	}
}

func TestFileStoreAddThenGetGroup(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	if err := store.AddItem(ctx, "guild-1", "card-1", sampleItem("10.00")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	group := store.GetGroup(ctx, "guild-1")
	got, ok := group["card-1"]
	if !ok {
		t.Fatalf("card-1 missing from group: %#v", group)
	}
	if got.Destination != "channel-1" || got.CreatedBy != "user-1" {
		t.Fatalf("unexpected record: %#v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("createdAt mismatch: %s", got.CreatedAt)
	}
	tcg := got.LastPrices["tcgplayer_near_mint"]
	if !tcg.Valid || !tcg.Decimal.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("tcgplayer price mismatch: %#v", tcg)
	}
	ebay, ok := got.LastPrices["ebay_near_mint"]
	if !ok || ebay.Valid {
		t.Fatalf("ebay price should be present and null: %#v", got.LastPrices)
	}
}

func TestFileStoreGetGroupMissing(t *testing.T) {
	store := newTestFileStore(t)
	group := store.GetGroup(context.Background(), "nobody")
	if group == nil || len(group) != 0 {
		t.Fatalf("expected empty group, got %#v", group)
	}
}

func TestFileStoreRemoveLastItemDropsGroup(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	for _, id := range []string{"card-1", "card-2"} {
		if err := store.AddItem(ctx, "guild-1", id, sampleItem("1")); err != nil {
			t.Fatalf("AddItem %s: %v", id, err)
		}
	}

	removed, err := store.RemoveItem(ctx, "guild-1", "card-1")
	if err != nil || !removed {
		t.Fatalf("RemoveItem card-1 = %v, %v", removed, err)
	}
	if _, ok := store.GetGroup(ctx, "guild-1")["card-1"]; ok {
		t.Fatal("card-1 should be gone")
	}
	if _, ok := store.GetAll(ctx)["guild-1"]; !ok {
		t.Fatal("guild-1 still has card-2 and must remain")
	}

	removed, err = store.RemoveItem(ctx, "guild-1", "card-2")
	if err != nil || !removed {
		t.Fatalf("RemoveItem card-2 = %v, %v", removed, err)
	}
	if _, ok := store.GetAll(ctx)["guild-1"]; ok {
		t.Fatal("empty group must not be persisted")
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode store file: %v", err)
	}
	if len(doc) != 0 {
		t.Fatalf("document should be empty, got %s", raw)
	}
}

func TestFileStoreRemoveUnknown(t *testing.T) {
	store := newTestFileStore(t)
	removed, err := store.RemoveItem(context.Background(), "guild-1", "missing")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if removed {
		t.Fatal("removing an unknown item must report false")
	}
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("no-op removal should not create the file, stat err = %v", err)
	}
}

func TestFileStoreUpdateLastPrices(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	if err := store.AddItem(ctx, "guild-1", "card-1", sampleItem("10")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	next := Prices{
		"tcgplayer_near_mint": Price(decimal.RequireFromString("10.6")),
		"ebay_near_mint":      Price(decimal.RequireFromString("9.5")),
	}
	if err := store.UpdateLastPrices(ctx, "guild-1", "card-1", next); err != nil {
		t.Fatalf("UpdateLastPrices: %v", err)
	}

	got := store.GetGroup(ctx, "guild-1")["card-1"]
	if !got.LastPrices["tcgplayer_near_mint"].Decimal.Equal(decimal.RequireFromString("10.6")) {
		t.Fatalf("baseline not updated: %#v", got.LastPrices)
	}
	if !got.LastPrices["ebay_near_mint"].Valid {
		t.Fatal("newly observed source should be healed into the baseline")
	}
	if got.Destination != "channel-1" {
		t.Fatal("other fields must be preserved")
	}
}

func TestFileStoreUpdateLastPricesMissingItemIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	err := store.UpdateLastPrices(ctx, "guild-1", "gone", Prices{"ebay_near_mint": Price(decimal.NewFromInt(1))})
	if err != nil {
		t.Fatalf("update of a missing item must not fail: %v", err)
	}
	if len(store.GetAll(ctx)) != 0 {
		t.Fatal("update of a missing item must not create it")
	}
}

func TestFileStoreCorruptFileReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if snap := store.GetAll(ctx); len(snap) != 0 {
		t.Fatalf("corrupt store should read as empty, got %#v", snap)
	}
	if group := store.GetGroup(ctx, "guild-1"); len(group) != 0 {
		t.Fatalf("corrupt store should read as empty group, got %#v", group)
	}

	if err := store.AddItem(ctx, "guild-1", "card-1", sampleItem("1")); err != nil {
		t.Fatalf("AddItem over corrupt store: %v", err)
	}
	if len(store.GetAll(ctx)) != 1 {
		t.Fatal("store should recover on the next successful write")
	}
}

func TestFileStoreCrashBeforeRenameKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	if err := store.AddItem(ctx, "guild-1", "card-1", sampleItem("10")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	before, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}

	store.rename = func(oldpath, newpath string) error {
		return errors.New("simulated crash")
	}
	err = store.UpdateLastPrices(ctx, "guild-1", "card-1", Prices{"tcgplayer_near_mint": Price(decimal.NewFromInt(99))})
	if !errors.Is(err, ErrStorageIO) {
		t.Fatalf("expected ErrStorageIO, got %v", err)
	}

	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("previous version must stay intact\nbefore: %s\nafter: %s", before, after)
	}

	// A half-written temp file left behind by a real crash is ignored too.
	if err := os.WriteFile(store.Path()+".tmp", []byte(`{"guild-1": {"card-1": {"destin`), 0o644); err != nil {
		t.Fatal(err)
	}
	reopened := NewFileStore(store.Path(), zerolog.Nop())
	got := reopened.GetGroup(ctx, "guild-1")["card-1"]
	if !got.LastPrices["tcgplayer_near_mint"].Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected previous baseline 10, got %#v", got.LastPrices)
	}
}

func TestFileStoreWriteFailureIsStorageIOError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(filepath.Join(blocker, "tracked.json"), zerolog.Nop())

	err := store.AddItem(context.Background(), "guild-1", "card-1", sampleItem("1"))
	if !errors.Is(err, ErrStorageIO) {
		t.Fatalf("expected ErrStorageIO, got %v", err)
	}
}

func TestFileStoreConcurrentWritersKeepAllUpdates(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.AddItem(ctx, "guild-1", fmt.Sprintf("card-%d", i), sampleItem("1")); err != nil {
				t.Errorf("AddItem %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(store.GetGroup(ctx, "guild-1")); got != 20 {
		t.Fatalf("lost updates: want 20 items, got %d", got)
	}
}

func TestFileStoreDocumentLayout(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	if err := store.AddItem(ctx, "guild-1", "card-1", sampleItem("10.4")); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]map[string]struct {
		Destination string              `json:"destination"`
		LastPrices  map[string]*float64 `json:"lastPrices"`
		CreatedAt   string              `json:"createdAt"`
		CreatedBy   string              `json:"createdBy"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("document should decode with plain numbers: %v\n%s", err, raw)
	}
	rec := doc["guild-1"]["card-1"]
	if rec.LastPrices["tcgplayer_near_mint"] == nil || *rec.LastPrices["tcgplayer_near_mint"] != 10.4 {
		t.Fatalf("price should be a JSON number: %s", raw)
	}
	if rec.LastPrices["ebay_near_mint"] != nil {
		t.Fatalf("missing price should be null: %s", raw)
	}
	if rec.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("createdAt should be ISO 8601, got %q", rec.CreatedAt)
	}
}
