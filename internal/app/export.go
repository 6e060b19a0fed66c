package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"card-price-alerts/internal/storage"
	"card-price-alerts/internal/tracking"
)

// baselineRow is one (item, source) baseline flattened for export.
type baselineRow struct {
	GroupID     string
	ItemID      string
	Destination string
	SourceKey   string
	Price       string
	Value       float64
	Known       bool
	CreatedAt   time.Time
	CreatedBy   string
}

// Export writes the current baselines as CSV and/or a PNG bar chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	rows := flattenBaselines(selectGroups(ctx, store, opts.GroupID))
	if len(rows) == 0 {
		a.Logger.Info().Msg("no tracked items to export")
		return nil
	}
	a.Logger.Info().Int("rows", len(rows)).Msg("exporting baselines")

	if opts.CSVPath != "" {
		if err := writeBaselinesCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBaselinesPNG(opts.PNGPath, rows, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
	}

	return nil
}

func flattenBaselines(snapshot storage.Snapshot) []baselineRow {
	var rows []baselineRow
	for _, groupID := range snapshot.GroupIDs() {
		group := snapshot[groupID]
		for _, itemID := range group.ItemIDs() {
			item := group[itemID]
			for _, key := range item.LastPrices.Keys() {
				price := item.LastPrices[key]
				row := baselineRow{
					GroupID:     groupID,
					ItemID:      itemID,
					Destination: item.Destination,
					SourceKey:   key,
					Known:       price.Valid,
					CreatedAt:   item.CreatedAt,
					CreatedBy:   item.CreatedBy,
				}
				if price.Valid {
					row.Price = price.Decimal.String()
					row.Value = price.Decimal.InexactFloat64()
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func writeBaselinesCSV(path string, rows []baselineRow) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"group_id", "item_id", "destination", "source_key", "baseline", "created_at", "created_by"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.GroupID,
			row.ItemID,
			row.Destination,
			row.SourceKey,
			row.Price,
			formatTime(row.CreatedAt),
			row.CreatedBy,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBaselinesPNG(path string, rows []baselineRow, width, height int) error {
	var (
		bars   []chart.Value
		values []float64
	)
	for _, row := range rows {
		if !row.Known {
			continue
		}
		values = append(values, row.Value)
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s %s", row.ItemID, tracking.SourceLabel(row.SourceKey)),
			Value: row.Value,
		})
	}
	if len(bars) == 0 {
		return errors.New("no known baselines to chart")
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	graph := chart.BarChart{
		Title:    "Tracked baselines",
		Width:    width,
		Height:   height,
		BarWidth: barWidth(width, len(bars)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Range:          valueRange(values),
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// valueRange anchors the y axis at zero. go-chart refuses to render a range
// whose min equals its max, which a single bar or equal prices would produce.
func valueRange(values []float64) *chart.ContinuousRange {
	maxValue := 0.0
	for _, v := range values {
		maxValue = math.Max(maxValue, v)
	}
	if maxValue <= 0 {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	return &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1}
}

func barWidth(width, count int) int {
	w := width / (count*2 + 1)
	if w < 8 {
		return 8
	}
	if w > 120 {
		return 120
	}
	return w
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
