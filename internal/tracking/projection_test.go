package tracking

import (
	"testing"

	"github.com/shopspring/decimal"

	"card-price-alerts/internal/fetcher"
)

func TestProjectUS(t *testing.T) {
	card := fetcher.Card{
		CardListItem: fetcher.CardListItem{ID: "x", Market: fetcher.MarketUS},
		Prices: fetcher.CardPrices{
			TCGPlayer: map[string]fetcher.TierPrice{
				"NEAR_MINT":      {Avg: decimal.NewNullDecimal(d("10.4"))},
				"LIGHTLY_PLAYED": {Avg: decimal.NewNullDecimal(d("8"))},
			},
			Cardmarket: map[string]fetcher.TierPrice{
				"AGGREGATED": {Avg: decimal.NewNullDecimal(d("9"))},
			},
		},
	}

	prices := Project(card)
	if len(prices) != 2 {
		t.Fatalf("US projection has two keys, got %#v", prices)
	}
	if !prices[KeyTCGPlayerNearMint].Decimal.Equal(d("10.4")) {
		t.Fatalf("tcgplayer mismatch: %#v", prices)
	}
	ebay, ok := prices[KeyEbayNearMint]
	if !ok || ebay.Valid {
		t.Fatalf("missing ebay tier should project to null: %#v", prices)
	}
}

func TestProjectEU(t *testing.T) {
	card := fetcher.Card{
		CardListItem: fetcher.CardListItem{ID: "x", Market: fetcher.MarketEU},
		Prices: fetcher.CardPrices{
			Cardmarket: map[string]fetcher.TierPrice{
				"AGGREGATED": {Avg: decimal.NewNullDecimal(d("0"))},
			},
			CardmarketUnsold: map[string]fetcher.TierPrice{
				"NEAR_MINT": {Avg: decimal.NewNullDecimal(d("4.2"))},
			},
		},
	}

	prices := Project(card)
	agg := prices[KeyCardmarketAggregated]
	if !agg.Valid || !agg.Decimal.IsZero() {
		t.Fatalf("zero price must stay a valid zero: %#v", agg)
	}
	if !prices[KeyCardmarketUnsoldNearMint].Decimal.Equal(d("4.2")) {
		t.Fatalf("unsold mismatch: %#v", prices)
	}
}

func TestProjectionKeysMatchVariant(t *testing.T) {
	for _, market := range []fetcher.Market{fetcher.MarketUS, fetcher.MarketEU, "JP"} {
		card := fetcher.Card{CardListItem: fetcher.CardListItem{Market: market}}
		keys := Project(card).Keys()
		want := VariantOf(market).SourceKeys()
		if len(keys) != len(want) {
			t.Fatalf("%s: keys %v, want %v", market, keys, want)
		}
		for _, key := range want {
			found := false
			for _, k := range keys {
				found = found || k == key
			}
			if !found {
				t.Fatalf("%s: key %s missing from %v", market, key, keys)
			}
		}
	}
	if VariantOf("JP") != VariantEU {
		t.Fatal("non-US markets use the Cardmarket projection")
	}
}

func TestCurrencyDefaultsByVariant(t *testing.T) {
	us := fetcher.Card{CardListItem: fetcher.CardListItem{Market: fetcher.MarketUS}}
	eu := fetcher.Card{CardListItem: fetcher.CardListItem{Market: "JP"}}
	gbp := fetcher.Card{CardListItem: fetcher.CardListItem{Market: fetcher.MarketEU, Currency: "GBP"}}

	if got := Currency(us); got != "USD" {
		t.Fatalf("US default = %q", got)
	}
	if got := Currency(eu); got != "EUR" {
		t.Fatalf("non-US default = %q", got)
	}
	if got := Currency(gbp); got != "GBP" {
		t.Fatalf("explicit currency = %q", got)
	}
}
