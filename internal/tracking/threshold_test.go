package tracking

import (
	"testing"

	"github.com/shopspring/decimal"

	"card-price-alerts/internal/storage"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExceedsThresholdZeroBaseline(t *testing.T) {
	five := d("5")
	cases := []struct {
		newPrice string
		want     bool
	}{
		{"0", false},
		{"0.00", false},
		{"3.00", true},
		{"0.01", true},
		{"-1", true},
	}
	for _, tc := range cases {
		if got := ExceedsThreshold(decimal.Zero, d(tc.newPrice), five); got != tc.want {
			t.Errorf("ExceedsThreshold(0, %s) = %v, want %v", tc.newPrice, got, tc.want)
		}
	}
	if !ExceedsThreshold(decimal.Zero, d("1"), d("1000")) {
		t.Error("zero baseline ignores the threshold")
	}
}

func TestExceedsThresholdPercent(t *testing.T) {
	cases := []struct {
		old, new, threshold string
		want                bool
	}{
		{"10.00", "10.40", "5", false},
		{"10.00", "10.50", "5", true},
		{"10.00", "10.60", "5", true},
		{"10.00", "9.60", "5", false},
		{"10.00", "9.50", "5", true},
		{"10.00", "10.00", "0", true},
		{"200", "150", "25", true},
		{"3", "3.1", "5", false},
	}
	for _, tc := range cases {
		if got := ExceedsThreshold(d(tc.old), d(tc.new), d(tc.threshold)); got != tc.want {
			t.Errorf("ExceedsThreshold(%s, %s, %s) = %v, want %v", tc.old, tc.new, tc.threshold, got, tc.want)
		}
	}
}

func TestExceedsThresholdMonotonic(t *testing.T) {
	old := d("20")
	threshold := d("5")
	crossed := false
	for cents := int64(0); cents <= 300; cents++ {
		move := decimal.New(cents, -2)
		up := ExceedsThreshold(old, old.Add(move), threshold)
		down := ExceedsThreshold(old, old.Sub(move), threshold)
		if up != down {
			t.Fatalf("symmetric moves disagree at %s", move)
		}
		if crossed && !up {
			t.Fatalf("larger move %s no longer exceeds threshold", move)
		}
		crossed = crossed || up
	}
	if !crossed {
		t.Fatal("a 15% move should exceed a 5% threshold")
	}
}

func TestChangePct(t *testing.T) {
	if got := ChangePct(d("10"), d("10.6")); !got.Equal(d("6")) {
		t.Fatalf("want 6, got %s", got)
	}
	if got := ChangePct(d("10"), d("9")); !got.Equal(d("-10")) {
		t.Fatalf("want -10, got %s", got)
	}
	if got := ChangePct(decimal.Zero, d("3")); !got.IsZero() {
		t.Fatalf("zero baseline yields zero, got %s", got)
	}
}

func TestDiff(t *testing.T) {
	baseline := storage.Prices{
		"a": storage.Price(d("10")),
		"b": storage.Price(d("10")),
		"c": {},
		"e": storage.Price(d("0")),
	}
	current := storage.Prices{
		"a": storage.Price(d("10.60")),
		"b": storage.Price(d("10.40")),
		"c": storage.Price(d("50")),
		"d": storage.Price(d("5")),
		"e": storage.Price(d("3")),
	}

	changes := Diff(baseline, current, d("5"))
	if len(changes) != 2 {
		t.Fatalf("want 2 changes, got %#v", changes)
	}
	if changes[0].SourceKey != "a" || !changes[0].Old.Equal(d("10")) || !changes[0].New.Equal(d("10.6")) || !changes[0].ChangePct.Equal(d("6")) {
		t.Fatalf("unexpected change a: %#v", changes[0])
	}
	if !changes[0].Increase() {
		t.Fatal("a went up")
	}
	if changes[1].SourceKey != "e" {
		t.Fatalf("zero baseline should alert: %#v", changes[1])
	}

	baseline["a"] = storage.Price(d("11"))
	current["a"] = decimal.NullDecimal{}
	for _, change := range Diff(baseline, current, d("5")) {
		if change.SourceKey == "a" {
			t.Fatal("null reading must be skipped")
		}
	}
}

func TestSourceLabel(t *testing.T) {
	if got := SourceLabel("cardmarket_unsold_near_mint"); got != "cardmarket unsold near mint" {
		t.Fatalf("got %q", got)
	}
}

func TestDiffUnchangedAtZeroThreshold(t *testing.T) {
	prices := storage.Prices{"a": storage.Price(d("10"))}
	if changes := Diff(prices, prices.Clone(), decimal.Zero); len(changes) != 0 {
		t.Fatalf("unchanged reading must not alert: %#v", changes)
	}
}
