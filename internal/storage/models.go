package storage

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Prices maps a source key (e.g. tcgplayer_near_mint) to its last observed
// average price. An invalid entry means the source had no reading.
type Prices map[string]decimal.NullDecimal

// Price wraps a known value.
func Price(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// Clone returns an independent copy.
func (p Prices) Clone() Prices {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Keys returns the source keys in sorted order.
func (p Prices) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// MarshalJSON writes every value as a bare JSON number or null.
func (p Prices) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(p))
	for key, value := range p {
		if !value.Valid {
			out[key] = json.RawMessage("null")
			continue
		}
		out[key] = json.RawMessage(value.Decimal.String())
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts numbers, quoted numbers and null.
func (p *Prices) UnmarshalJSON(data []byte) error {
	var raw map[string]decimal.NullDecimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Prices(raw)
	return nil
}

// TrackedItem is a single card tracked by a group.
type TrackedItem struct {
	Destination string    `json:"destination"`
	LastPrices  Prices    `json:"lastPrices"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy"`
}

// UnmarshalJSON also understands documents written by the first release of
// the bot (channelId/addedAt/addedBy).
func (t *TrackedItem) UnmarshalJSON(data []byte) error {
	type plain TrackedItem
	var aux struct {
		plain
		ChannelID string     `json:"channelId"`
		AddedAt   *time.Time `json:"addedAt"`
		AddedBy   string     `json:"addedBy"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	item := TrackedItem(aux.plain)
	if item.Destination == "" {
		item.Destination = aux.ChannelID
	}
	if item.CreatedAt.IsZero() && aux.AddedAt != nil {
		item.CreatedAt = *aux.AddedAt
	}
	if item.CreatedBy == "" {
		item.CreatedBy = aux.AddedBy
	}
	if item.LastPrices == nil {
		item.LastPrices = Prices{}
	}
	*t = item
	return nil
}

// Group holds the items tracked by one subscriber group, keyed by item id.
type Group map[string]TrackedItem

// ItemIDs returns the item ids in sorted order.
func (g Group) ItemIDs() []string {
	return slices.Sorted(maps.Keys(g))
}

// Snapshot is the whole persisted document, keyed by group id.
type Snapshot map[string]Group

// GroupIDs returns the group ids in sorted order.
func (s Snapshot) GroupIDs() []string {
	return slices.Sorted(maps.Keys(s))
}

// Count returns the number of tracked items across all groups.
func (s Snapshot) Count() int {
	total := 0
	for _, group := range s {
		total += len(group)
	}
	return total
}

// prune drops groups without items.
func (s Snapshot) prune() {
	for id, group := range s {
		if len(group) == 0 {
			delete(s, id)
		}
	}
}

// AlertRecord captures an emitted price alert for auditing.
type AlertRecord struct {
	ID           int64
	SweepID      string
	GroupID      string
	ItemID       string
	SourceKey    string
	OldPrice     decimal.Decimal
	NewPrice     decimal.Decimal
	ChangePct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Destination  string
	Delivered    bool
	Error        *string
	CreatedAt    time.Time
}
