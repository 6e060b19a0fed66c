package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"golang.org/x/sync/errgroup"

	"card-price-alerts/internal/alerting"
	"card-price-alerts/internal/fetcher"
	"card-price-alerts/internal/tracking"
)

// History prints the recorded prices of one tier of a card and, when
// PNGPath is set, renders them as a line chart. Nothing is stored.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	if opts.Tier == "" {
		opts.Tier = fetcher.DefaultHistoryTier
	}
	if opts.Period == "" {
		opts.Period = fetcher.DefaultHistoryPeriod
	}

	source := a.newSource()
	var (
		card    fetcher.Card
		entries []fetcher.HistoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		card, err = source.FetchCard(gctx, opts.CardID)
		return err
	})
	g.Go(func() (err error) {
		entries, err = source.PriceHistory(gctx, opts.CardID, opts.Tier, opts.Period)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			return fmt.Errorf("card %s not found: %w", opts.CardID, err)
		}
		return err
	}

	currency := tracking.Currency(card)
	fmt.Fprintf(a.Out, "%s [%s, %s]\n", card.Label(), tierLabel(opts.Tier), opts.Period)
	fmt.Fprintf(a.Out, "Change: %s\n", historyChange(entries))
	fmt.Fprintf(a.Out, "Data points: %d\n", len(entries))
	if len(entries) == 0 {
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tSource\tAvg\tLow\tHigh\tSales")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%d\n",
			historyDate(entry),
			entry.Source,
			alerting.FormatNullablePrice(entry.Avg, currency),
			alerting.FormatNullablePrice(entry.Low, currency),
			alerting.FormatNullablePrice(entry.High, currency),
			entry.SaleCount,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s %s (%s)", card.Name, tierLabel(opts.Tier), opts.Period)
		if err := writeHistoryPNG(opts.PNGPath, title, entries, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Int("points", len(entries)).Msg("history chart written")
	}
	return nil
}

// historyChange compares the first and last known averages.
func historyChange(entries []fetcher.HistoryEntry) string {
	var first, last decimal.NullDecimal
	for _, entry := range entries {
		if !entry.Avg.Valid {
			continue
		}
		if !first.Valid {
			first = entry.Avg
		}
		last = entry.Avg
	}
	if !first.Valid {
		return "N/A"
	}
	return alerting.FormatPercentChange(first.Decimal, last.Decimal)
}

func historyDate(entry fetcher.HistoryEntry) string {
	t := entry.Time()
	if t.IsZero() {
		return sanitizeInline(entry.Date)
	}
	return t.Format(time.DateOnly)
}

func tierLabel(tier string) string {
	return strings.ReplaceAll(strings.ToLower(tier), "_", " ")
}

func writeHistoryPNG(path, title string, entries []fetcher.HistoryEntry, width, height int) error {
	var (
		x []time.Time
		y []float64
	)
	for _, entry := range entries {
		t := entry.Time()
		if t.IsZero() || !entry.Avg.Valid {
			continue
		}
		x = append(x, t)
		y = append(y, entry.Avg.Decimal.InexactFloat64())
	}
	if len(x) < 2 {
		return errors.New("at least two priced data points are needed to chart history")
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Avg",
			Range:          valueRange(y),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Avg",
				XValues: x,
				YValues: y,
			},
		},
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}
