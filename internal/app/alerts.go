package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"card-price-alerts/internal/storage"
)

// Alerts lists (or prunes) the PostgreSQL alert log.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	audit, closeAudit, err := a.openAudit(ctx)
	if err != nil {
		return err
	}
	if audit == nil {
		return fmt.Errorf("alert log: %w", storage.ErrNotConfigured)
	}
	defer closeAudit()

	if opts.PruneBefore != nil {
		deleted, err := audit.DeleteAlertsBefore(ctx, opts.PruneBefore.UTC())
		if err != nil {
			return err
		}
		a.Logger.Info().Int64("deleted", deleted).Time("before", *opts.PruneBefore).Msg("alert log pruned")
		fmt.Fprintf(a.Out, "deleted %d alert(s)\n", deleted)
		return nil
	}

	alerts, err := audit.ListRecentAlerts(ctx, opts.GroupID, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tGroup\tItem\tSource\tOld\tNew\tChange%\tDelivered\tError")
	for _, alert := range alerts {
		errMsg := ""
		if alert.Error != nil {
			errMsg = sanitizeInline(*alert.Error)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.GroupID,
			alert.ItemID,
			alert.SourceKey,
			alert.OldPrice.StringFixed(2),
			alert.NewPrice.StringFixed(2),
			alert.ChangePct.StringFixed(1),
			alert.Delivered,
			errMsg,
		)
	}
	return writer.Flush()
}
