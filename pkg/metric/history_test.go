package metric

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/alertnrun/pkg/storage"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	gateway, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })

	return NewRecorder(gateway)
}

func event(rule, pair string, firedAt time.Time) Event {
	return Event{
		RuleID:    rule,
		Pair:      pair,
		Metric:    "price",
		Value:     50100,
		Threshold: 50000,
		FiredAt:   firedAt,
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	recorder := newTestRecorder(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, recorder.Record(ctx, event("btc-breakout", "BTCUSDT", base.Add(time.Hour))))
	require.NoError(t, recorder.Record(ctx, event("eth-drop", "ETHUSDT", base)))

	events, err := recorder.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Oldest first regardless of insertion order.
	require.Equal(t, "eth-drop", events[0].RuleID)
	require.Equal(t, "btc-breakout", events[1].RuleID)
	require.Equal(t, 50100.0, events[0].Value)
}

func TestRecorderPrune(t *testing.T) {
	recorder := newTestRecorder(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, recorder.Record(ctx, event("old-alert", "BTCUSDT", base)))
	require.NoError(t, recorder.Record(ctx, event("kept-alert", "BTCUSDT", base.Add(48*time.Hour))))

	removed, err := recorder.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	events, err := recorder.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "kept-alert", events[0].RuleID)

	// Pruning again is a no-op.
	removed, err = recorder.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	require.Zero(t, summary.Total)
	require.Empty(t, summary.PerPair)
	require.Empty(t, summary.DailyCounts)
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		event("btc-breakout", "BTCUSDT", base),
		event("btc-breakout", "BTCUSDT", base.Add(1*time.Hour)),
		event("eth-drop", "ETHUSDT", base.Add(2*time.Hour)),
		event("btc-breakout", "BTCUSDT", base.Add(48*time.Hour)),
	}

	summary := Summarize(events)
	require.Equal(t, 4, summary.Total)
	require.Equal(t, 3, summary.PerPair["BTCUSDT"])
	require.Equal(t, 1, summary.PerPair["ETHUSDT"])
	require.Equal(t, 3, summary.PerRule["btc-breakout"])
	require.Equal(t, base, summary.FirstAt)
	require.Equal(t, base.Add(48*time.Hour), summary.LastAt)

	// Gaps: 1h, 1h, 46h.
	require.Equal(t, 16*time.Hour, summary.MeanGap)

	// Three calendar days; the middle one is empty.
	require.Equal(t, []float64{3, 0, 1}, summary.DailyCounts)
}
