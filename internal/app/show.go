package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// Show prints tracked items with their baselines, for one group or all.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	snapshot := selectGroups(ctx, store, opts.GroupID)
	if snapshot.Count() == 0 {
		fmt.Fprintln(a.Out, "no tracked items")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Group\tItem\tDestination\tBaselines\tSince (UTC)\tBy")
	for _, groupID := range snapshot.GroupIDs() {
		group := snapshot[groupID]
		for _, itemID := range group.ItemIDs() {
			item := group[itemID]
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
				groupID,
				itemID,
				item.Destination,
				formatBaselines(item.LastPrices),
				formatTime(item.CreatedAt),
				sanitizeInline(item.CreatedBy),
			)
		}
	}
	return writer.Flush()
}

func selectGroups(ctx context.Context, store storage.Store, groupID string) storage.Snapshot {
	if groupID == "" {
		return store.GetAll(ctx)
	}
	group := store.GetGroup(ctx, groupID)
	if len(group) == 0 {
		return storage.Snapshot{}
	}
	return storage.Snapshot{groupID: group}
}

func formatBaselines(prices storage.Prices) string {
	parts := make([]string, 0, len(prices))
	for _, key := range prices.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", tracking.SourceLabel(key), plainPrice(prices[key])))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func plainPrice(value decimal.NullDecimal) string {
	if !value.Valid {
		return "N/A"
	}
	return value.Decimal.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
