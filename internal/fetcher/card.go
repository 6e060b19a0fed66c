package fetcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market is the regional market a card is priced in.
type Market string

const (
	MarketUS Market = "US"
	MarketEU Market = "EU"
)

// CardSet identifies the expansion a card belongs to.
type CardSet struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// TierPrice is the price summary of one tier (condition or grade) of a source.
type TierPrice struct {
	Avg       decimal.NullDecimal `json:"avg"`
	Low       decimal.NullDecimal `json:"low"`
	High      decimal.NullDecimal `json:"high"`
	SaleCount int                 `json:"saleCount"`
	Avg7d     decimal.NullDecimal `json:"avg7d"`
	Avg30d    decimal.NullDecimal `json:"avg30d"`
}

// CardPrices groups tiers per marketplace.
type CardPrices struct {
	Ebay             map[string]TierPrice `json:"ebay,omitempty"`
	TCGPlayer        map[string]TierPrice `json:"tcgplayer,omitempty"`
	Cardmarket       map[string]TierPrice `json:"cardmarket,omitempty"`
	CardmarketUnsold map[string]TierPrice `json:"cardmarket_unsold,omitempty"`
}

// CardListItem is the summary returned by searches.
type CardListItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CardNumber  string  `json:"cardNumber"`
	Set         CardSet `json:"set"`
	Variant     string  `json:"variant"`
	Rarity      string  `json:"rarity"`
	Image       string  `json:"image"`
	Market      Market  `json:"market"`
	Currency    string  `json:"currency"`
	LastUpdated string  `json:"lastUpdated"`
}

// Label renders "Name (Set #123)".
func (c CardListItem) Label() string {
	number := c.CardNumber
	if number == "" {
		number = "?"
	}
	if c.Set.Name == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s #%s)", c.Name, c.Set.Name, number)
}

// Card is a single card with its full price payload.
type Card struct {
	CardListItem
	Prices         CardPrices          `json:"prices"`
	TopPrice       decimal.NullDecimal `json:"topPrice"`
	TotalSaleCount int                 `json:"totalSaleCount"`
}

// Tier returns the average price of tier within tiers, if any.
func Tier(tiers map[string]TierPrice, tier string) decimal.NullDecimal {
	price, ok := tiers[tier]
	if !ok {
		return decimal.NullDecimal{}
	}
	return price.Avg
}

// HistoryEntry is one point of a tier's price history.
type HistoryEntry struct {
	Date      string              `json:"date"`
	Source    string              `json:"source"`
	Avg       decimal.NullDecimal `json:"avg"`
	Low       decimal.NullDecimal `json:"low"`
	High      decimal.NullDecimal `json:"high"`
	SaleCount int                 `json:"saleCount"`
}

// Time parses Date, which the API sends either as a calendar day or as an
// RFC 3339 timestamp. The zero time is returned for anything else.
func (e HistoryEntry) Time() time.Time {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, e.Date); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
