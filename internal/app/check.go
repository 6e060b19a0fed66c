package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

// Check runs one guarded sweep immediately and prints its report.
func (a *App) Check(ctx context.Context, threshold float64) error {
	svc, closeAll, err := a.newService(ctx, serviceOptions{threshold: threshold})
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Sweep\t%s\n", report.SweepID)
	fmt.Fprintf(writer, "Threshold\t%s%%\n", svc.Threshold().String())
	fmt.Fprintf(writer, "Items\t%d\n", report.Items)
	fmt.Fprintf(writer, "Checked\t%d\n", report.Checked)
	fmt.Fprintf(writer, "Skipped (fetch failed)\t%d\n", report.Skipped)
	fmt.Fprintf(writer, "Changes\t%d\n", report.Changes)
	fmt.Fprintf(writer, "Notified\t%d\n", report.Notified)
	fmt.Fprintf(writer, "Notify failed\t%d\n", report.NotifyFailed)
	fmt.Fprintf(writer, "Persist failed\t%d\n", report.PersistFailed)
	fmt.Fprintf(writer, "Duration\t%s\n", report.Duration.Round(time.Millisecond))
	return writer.Flush()
}
