package regime

import (
	"testing"
	"time"

	"github.com/juanpimr2/intraday-engine/pkg/types"
	"github.com/shopspring/decimal"
)

func flatBars(n int, start time.Time) []types.Bar {
	bars := make([]types.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      decimal.NewFromInt(100),
			High:      decimal.NewFromInt(100),
			Low:       decimal.NewFromInt(100),
			Close:     decimal.NewFromInt(100),
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return bars
}

func TestDetector_FlatSeriesIsLateral(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(60, start)

	d := NewDetector(DefaultConfig())
	d.Precompute("E", bars)

	got := d.At("E", bars[len(bars)-1].Timestamp)
	if got != types.RegimeLateral {
		t.Fatalf("regime on flat series = %v, want lateral", got)
	}
}

func TestDetector_UnknownEpicIsLateral(t *testing.T) {
	d := NewDetector(DefaultConfig())
	if got := d.At("NOPE", time.Now()); got != types.RegimeLateral {
		t.Fatalf("regime for unknown epic = %v, want lateral", got)
	}
}

func TestDetector_QueryBeforeFirstBarIsLateral(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(10, start)

	d := NewDetector(DefaultConfig())
	d.Precompute("E", bars)

	got := d.At("E", start.Add(-time.Hour))
	if got != types.RegimeLateral {
		t.Fatalf("regime before first bar = %v, want lateral", got)
	}
}

func TestDetector_MostRecentBarAtOrBeforeQuery(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := flatBars(60, start)

	d := NewDetector(DefaultConfig())
	d.Precompute("E", bars)

	mid := bars[30].Timestamp.Add(30 * time.Minute)
	got := d.At("E", mid)
	if got != types.RegimeLateral {
		t.Fatalf("regime between bars = %v, want lateral (flat series)", got)
	}
}
