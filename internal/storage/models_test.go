package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPricesJSON(t *testing.T) {
	prices := Prices{
		"cardmarket_aggregated":       Price(decimal.RequireFromString("3.5")),
		"cardmarket_unsold_near_mint": {},
	}

	data, err := json.Marshal(prices)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"cardmarket_aggregated":3.5,"cardmarket_unsold_near_mint":null}`
	if string(data) != want {
		t.Fatalf("want %s, got %s", want, data)
	}

	var decoded Prices
	if err := json.Unmarshal([]byte(`{"a": 1.25, "b": null, "c": "2"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded["a"].Valid || !decoded["a"].Decimal.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("a mismatch: %#v", decoded["a"])
	}
	if decoded["b"].Valid {
		t.Fatal("b should be null")
	}
	if !decoded["c"].Decimal.Equal(decimal.NewFromInt(2)) {
		t.Fatal("quoted numbers should be accepted")
	}
}

func TestTrackedItemLegacyFields(t *testing.T) {
	raw := `{"channelId":"c-9","lastPrices":{"ebay_near_mint":4},"addedAt":"2025-01-02T03:04:05.000Z","addedBy":"u-7"}`

	var item TrackedItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if item.Destination != "c-9" || item.CreatedBy != "u-7" {
		t.Fatalf("legacy fields not mapped: %#v", item)
	}
	if !item.CreatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("addedAt not mapped: %s", item.CreatedAt)
	}
	if !item.LastPrices["ebay_near_mint"].Decimal.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("lastPrices not decoded: %#v", item.LastPrices)
	}
}

func TestSnapshotHelpers(t *testing.T) {
	snap := Snapshot{
		"b": Group{"2": {}, "1": {}},
		"a": Group{"3": {}},
		"c": Group{},
	}
	snap.prune()

	ids := snap.GroupIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected group ids %v", ids)
	}
	if snap.Count() != 3 {
		t.Fatalf("want 3 items, got %d", snap.Count())
	}
	items := snap["b"].ItemIDs()
	if items[0] != "1" || items[1] != "2" {
		t.Fatalf("item ids not sorted: %v", items)
	}
}
