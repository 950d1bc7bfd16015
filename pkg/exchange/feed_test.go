package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
	"github.com/raykavin/alertnrun/pkg/logger/zerolog"
)

type fakeFeeder struct {
	candles    []core.Candle
	candleChan chan core.Candle
	errChan    chan error
}

func (f *fakeFeeder) LastQuote(_ context.Context, _ string) (float64, error) {
	return f.candles[len(f.candles)-1].Close, nil
}

func (f *fakeFeeder) CandlesByLimit(_ context.Context, _, _ string, limit int) ([]core.Candle, error) {
	if len(f.candles) > limit {
		return f.candles[len(f.candles)-limit:], nil
	}
	return f.candles, nil
}

func (f *fakeFeeder) CandlesSubscription(_ context.Context, _, _ string) (chan core.Candle, chan error) {
	return f.candleChan, f.errChan
}

func (f *fakeFeeder) Account(_ context.Context) (core.Account, error) {
	return core.Account{}, nil
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := zerolog.New("error", time.RFC3339, false, false)
	require.NoError(t, err)
	return log
}

func makeCandles(pair string, closes []float64) []core.Candle {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]core.Candle, 0, len(closes))
	for i, close := range closes {
		candles = append(candles, core.Candle{
			Pair:     pair,
			Time:     start.Add(time.Duration(i) * time.Hour),
			Open:     close,
			Close:    close,
			High:     close,
			Low:      close,
			Volume:   1000,
			Complete: true,
		})
	}
	return candles
}

func rampCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return closes
}

func defaultIndicators() IndicatorConfig {
	return IndicatorConfig{
		RSIPeriod:       14,
		SMAFast:         5,
		SMASlow:         10,
		EMAPeriod:       5,
		VolumeSMAPeriod: 5,
	}
}

func TestSnapshotFeed_Fetch(t *testing.T) {
	feeder := &fakeFeeder{candles: makeCandles("BTCUSDT", rampCloses(30))}
	feed := NewSnapshotFeed(feeder, defaultIndicators(), testLogger(t))

	snapshot, err := feed.Fetch(context.Background(), "BTCUSDT", "1h")
	require.NoError(t, err)

	require.Equal(t, "BTCUSDT", snapshot.Pair)
	require.Equal(t, 129.0, snapshot.Price)
	require.Equal(t, 1000.0, snapshot.Volume)

	// Monotonically rising closes pin RSI at 100 and place the fast SMA
	// above the slow one.
	require.InDelta(t, 100.0, snapshot.Indicators[IndicatorRSI], 0.0001)
	require.Greater(t, snapshot.Indicators[IndicatorSMAFast], snapshot.Indicators[IndicatorSMASlow])
	require.InDelta(t, 1000.0, snapshot.Indicators[IndicatorVolumeSMA], 0.0001)
}

func TestSnapshotFeed_FetchEmptyWindow(t *testing.T) {
	feeder := &fakeFeeder{}
	feed := NewSnapshotFeed(feeder, defaultIndicators(), testLogger(t))

	_, err := feed.Fetch(context.Background(), "BTCUSDT", "1h")
	require.Error(t, err)

	var formatErr *core.DataFormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestSnapshotFeed_MetricLookup(t *testing.T) {
	feeder := &fakeFeeder{candles: makeCandles("ETHUSDT", rampCloses(30))}
	feed := NewSnapshotFeed(feeder, defaultIndicators(), testLogger(t))

	snapshot, err := feed.Fetch(context.Background(), "ETHUSDT", "1h")
	require.NoError(t, err)

	price, ok := snapshot.Metric(core.MetricPrice)
	require.True(t, ok)
	require.Equal(t, snapshot.Price, price)

	rsi, ok := snapshot.Metric(IndicatorRSI)
	require.True(t, ok)
	require.Equal(t, snapshot.Indicators[IndicatorRSI], rsi)

	_, ok = snapshot.Metric("bogus")
	require.False(t, ok)
}

func TestSnapshotFeed_StreamingFanOut(t *testing.T) {
	feeder := &fakeFeeder{
		candles:    makeCandles("BTCUSDT", rampCloses(30)),
		candleChan: make(chan core.Candle, 2),
		errChan:    make(chan error, 1),
	}
	feed := NewSnapshotFeed(feeder, defaultIndicators(), testLogger(t))

	received := make(chan core.Snapshot, 2)
	feed.Subscribe("BTCUSDT", "1h", func(s core.Snapshot) {
		received <- s
	})

	require.NoError(t, feed.Preload(context.Background()))

	next := core.Candle{
		Pair:     "BTCUSDT",
		Time:     time.Now(),
		Close:    131,
		Volume:   1000,
		Complete: true,
	}
	incomplete := next
	incomplete.Complete = false

	feeder.candleChan <- incomplete
	feeder.candleChan <- next
	close(feeder.candleChan)

	feed.Start(context.Background(), true)

	// Incomplete candles must not produce snapshots.
	require.Len(t, received, 1)
	snapshot := <-received
	require.Equal(t, 131.0, snapshot.Price)
	require.Contains(t, snapshot.Indicators, IndicatorRSI)
}
