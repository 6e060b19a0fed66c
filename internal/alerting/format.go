package alerting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// FormatPrice renders a price with two decimals and its currency symbol.
func FormatPrice(value decimal.Decimal, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		symbol = currency + " "
	}
	return symbol + value.StringFixed(2)
}

// FormatNullablePrice renders N/A for missing prices.
func FormatNullablePrice(value decimal.NullDecimal, currency string) string {
	if !value.Valid {
		return "N/A"
	}
	return FormatPrice(value.Decimal, currency)
}

// FormatPercentChange renders "+6.0%" style changes; N/A from zero.
func FormatPercentChange(oldPrice, newPrice decimal.Decimal) string {
	if oldPrice.IsZero() {
		return "N/A"
	}
	change := newPrice.Sub(oldPrice).Div(oldPrice).Mul(decimal.NewFromInt(100))
	sign := ""
	if change.Sign() >= 0 {
		sign = "+"
	}
	return sign + change.StringFixed(1) + "%"
}

// RenderText renders a plain-text alert for text-only channels.
func RenderText(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s Price Alert: %s\n", arrow(note), itemName(note)))
	builder.WriteString(strings.Join(detailLines(note), "\n"))
	return builder.String()
}

func detailLines(note Notification) []string {
	var lines []string
	if note.SetName != "" {
		number := note.CardNumber
		if number == "" {
			number = "?"
		}
		lines = append(lines, fmt.Sprintf("%s #%s", note.SetName, number))
	}
	source := note.SourceLabel
	if source == "" {
		source = strings.ReplaceAll(note.SourceKey, "_", " ")
	}
	lines = append(lines,
		fmt.Sprintf("Source: %s", source),
		fmt.Sprintf("%s → %s (%s)",
			FormatPrice(note.OldPrice, note.Currency),
			FormatPrice(note.NewPrice, note.Currency),
			FormatPercentChange(note.OldPrice, note.NewPrice),
		),
	)
	return lines
}

func arrow(note Notification) string {
	if note.Increase() {
		return "⬆"
	}
	return "⬇"
}

func itemName(note Notification) string {
	if note.ItemName != "" {
		return note.ItemName
	}
	return note.ItemID
}
