package tracking

import (
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/storage"
)

// Source keys tracked per market.
const (
	KeyTCGPlayerNearMint        = "tcgplayer_near_mint"
	KeyEbayNearMint             = "ebay_near_mint"
	KeyCardmarketAggregated     = "cardmarket_aggregated"
	KeyCardmarketUnsoldNearMint = "cardmarket_unsold_near_mint"
)

// Variant is the closed set of price projections. Cards tagged with any
// market other than US are priced on Cardmarket and use VariantEU.
type Variant int

const (
	VariantUS Variant = iota
	VariantEU
)

// VariantOf maps a card's market tag to its projection.
func VariantOf(market fetcher.Market) Variant {
	if market == fetcher.MarketUS {
		return VariantUS
	}
	return VariantEU
}

func (v Variant) String() string {
	if v == VariantUS {
		return "US"
	}
	return "EU"
}

// SourceKeys lists the keys the variant tracks.
func (v Variant) SourceKeys() []string {
	if v == VariantUS {
		return []string{KeyTCGPlayerNearMint, KeyEbayNearMint}
	}
	return []string{KeyCardmarketAggregated, KeyCardmarketUnsoldNearMint}
}

// Project extracts the tracked prices from a card. Track and the sweep both
// go through here, so their key sets always line up.
func Project(card fetcher.Card) storage.Prices {
	p := card.Prices
	switch VariantOf(card.Market) {
	case VariantUS:
		return storage.Prices{
			KeyTCGPlayerNearMint: fetcher.Tier(p.TCGPlayer, "NEAR_MINT"),
			KeyEbayNearMint:      fetcher.Tier(p.Ebay, "NEAR_MINT"),
		}
	default:
		return storage.Prices{
			KeyCardmarketAggregated:     fetcher.Tier(p.Cardmarket, "AGGREGATED"),
			KeyCardmarketUnsoldNearMint: fetcher.Tier(p.CardmarketUnsold, "NEAR_MINT"),
		}
	}
}

// Currency returns the card's currency, defaulting by variant when the
// payload omits it.
func Currency(card fetcher.Card) string {
	if card.Currency != "" {
		return card.Currency
	}
	if VariantOf(card.Market) == VariantUS {
		return "USD"
	}
	return "EUR"
}
