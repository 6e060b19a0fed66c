// Package tracking holds the pure pieces of price tracking: which source
// keys a card is tracked under, and when a move between two readings is
// large enough to alert on.
package tracking

import (
	"strings"

	"github.com/shopspring/decimal"

	"card-price-alerts/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// ExceedsThreshold reports whether moving from oldPrice to newPrice is a
// change of at least thresholdPct percent. Any move away from a zero
// baseline counts.
func ExceedsThreshold(oldPrice, newPrice, thresholdPct decimal.Decimal) bool {
	if oldPrice.IsZero() {
		return !newPrice.IsZero()
	}
	return ChangePct(oldPrice, newPrice).Abs().GreaterThanOrEqual(thresholdPct)
}

// ChangePct returns the signed percentage change, or zero for a zero baseline.
func ChangePct(oldPrice, newPrice decimal.Decimal) decimal.Decimal {
	if oldPrice.IsZero() {
		return decimal.Zero
	}
	return newPrice.Sub(oldPrice).Div(oldPrice).Mul(hundred)
}

// Change is a significant move of one source key.
type Change struct {
	SourceKey string
	Old       decimal.Decimal
	New       decimal.Decimal
	ChangePct decimal.Decimal
}

// Increase reports whether the price went up (or stayed flat).
func (c Change) Increase() bool {
	return c.New.GreaterThanOrEqual(c.Old)
}

// Diff compares a stored baseline with a fresh reading. Keys missing or
// null on either side are skipped, so the first observation of a source
// never alerts, and neither does an unchanged reading (which matters only
// at a zero threshold). Changes come back in key order.
func Diff(baseline, current storage.Prices, thresholdPct decimal.Decimal) []Change {
	var changes []Change
	for _, key := range current.Keys() {
		newPrice := current[key]
		oldPrice, ok := baseline[key]
		if !ok || !oldPrice.Valid || !newPrice.Valid {
			continue
		}
		if oldPrice.Decimal.Equal(newPrice.Decimal) {
			continue
		}
		if !ExceedsThreshold(oldPrice.Decimal, newPrice.Decimal, thresholdPct) {
			continue
		}
		changes = append(changes, Change{
			SourceKey: key,
			Old:       oldPrice.Decimal,
			New:       newPrice.Decimal,
			ChangePct: ChangePct(oldPrice.Decimal, newPrice.Decimal),
		})
	}
	return changes
}

// SourceLabel turns a source key into display text ("ebay_near_mint" → "ebay near mint").
func SourceLabel(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
