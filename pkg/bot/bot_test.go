package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/exchange"
	"github.com/raykavin/alertnrun/pkg/logger"
	"github.com/raykavin/alertnrun/pkg/logger/zerolog"
	"github.com/raykavin/alertnrun/pkg/metric"
	"github.com/raykavin/alertnrun/pkg/notification"
	"github.com/raykavin/alertnrun/pkg/rule"
	"github.com/raykavin/alertnrun/pkg/storage"
)

type fakeFeeder struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
}

func (f *fakeFeeder) setPrice(pair string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[pair] = price
}

func (f *fakeFeeder) LastQuote(_ context.Context, pair string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[pair], nil
}

func (f *fakeFeeder) CandlesByLimit(_ context.Context, pair, _ string, limit int) ([]core.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs[pair]; err != nil {
		return nil, err
	}

	price, ok := f.prices[pair]
	if !ok {
		return nil, core.ErrNotFound
	}

	candles := make([]core.Candle, 0, limit)
	start := time.Now().Add(-time.Duration(limit) * time.Hour)
	for i := 0; i < limit; i++ {
		candles = append(candles, core.Candle{
			Pair:     pair,
			Time:     start.Add(time.Duration(i) * time.Hour),
			Open:     price,
			Close:    price,
			Low:      price,
			High:     price,
			Volume:   1000,
			Complete: true,
		})
	}

	return candles, nil
}

func (f *fakeFeeder) CandlesSubscription(context.Context, string, string) (chan core.Candle, chan error) {
	return make(chan core.Candle), make(chan error)
}

func (f *fakeFeeder) Account(context.Context) (core.Account, error) {
	return core.Account{}, nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeMessenger) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return errors.New("telegram unreachable")
	}

	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	bot       *Bot
	feeder    *fakeFeeder
	messenger *fakeMessenger
	rules     *rule.Store
	recorder  *metric.Recorder
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	log, err := zerolog.New("error", time.RFC3339, false, false)
	require.NoError(t, err)
	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := testLogger(t)

	gateway, err := storage.FromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })

	feeder := &fakeFeeder{prices: map[string]float64{"BTCUSDT": 49000}, errs: map[string]error{}}
	feed := exchange.NewSnapshotFeed(feeder, exchange.IndicatorConfig{
		RSIPeriod: 2, SMAFast: 2, SMASlow: 2, EMAPeriod: 2, VolumeSMAPeriod: 2,
	}, log)

	rules := rule.NewStore(gateway, 0, log)
	messenger := &fakeMessenger{}
	dispatcher := notification.NewDispatcher(messenger, notification.NewTokenBucket(100, 100), 2, log)
	recorder := metric.NewRecorder(gateway)

	bot, err := NewBot(Settings{
		Pairs:        []string{"BTCUSDT"},
		Timeframe:    "1h",
		ScanInterval: time.Minute,
	}, feed, rules, dispatcher, log, WithRecorder(recorder))
	require.NoError(t, err)

	return &fixture{bot: bot, feeder: feeder, messenger: messenger, rules: rules, recorder: recorder}
}

func breakoutRule() core.AlertRule {
	return core.AlertRule{
		ID:         "btc-breakout",
		Pair:       "BTCUSDT",
		Metric:     core.MetricPrice,
		Comparator: core.ComparatorGTE,
		Threshold:  50000,
		State:      core.StateArmed,
		Cooldown:   time.Hour,
	}
}

func TestNewBotValidation(t *testing.T) {
	log := testLogger(t)

	_, err := NewBot(Settings{}, nil, nil, nil, log)
	require.Error(t, err)

	_, err = NewBot(Settings{Pairs: []string{"BTCUSDT"}, Timeframe: "1h"}, nil, nil, nil, log)
	require.Error(t, err)
}

func TestTickFiresAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Create(ctx, breakoutRule()))

	f.feeder.setPrice("BTCUSDT", 50100)
	f.bot.Tick(ctx)

	require.Equal(t, 1, f.messenger.sentCount())
	require.Zero(t, f.bot.FailedJobs())

	persisted, err := f.rules.Get("btc-breakout")
	require.NoError(t, err)
	require.Equal(t, core.StateFired, persisted.State)
	require.False(t, persisted.LastFiredAt.IsZero())

	events, err := f.recorder.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "btc-breakout", events[0].RuleID)
	require.Equal(t, 50100.0, events[0].Value)
}

func TestTickNoDuplicateAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Create(ctx, breakoutRule()))

	f.feeder.setPrice("BTCUSDT", 50100)
	f.bot.Tick(ctx)
	f.bot.Tick(ctx)
	f.bot.Tick(ctx)

	// Condition held across ticks: exactly one notification.
	require.Equal(t, 1, f.messenger.sentCount())
}

func TestTickBelowThresholdStaysQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Create(ctx, breakoutRule()))

	f.bot.Tick(ctx)
	require.Zero(t, f.messenger.sentCount())

	persisted, err := f.rules.Get("btc-breakout")
	require.NoError(t, err)
	require.Equal(t, core.StateArmed, persisted.State)
}

func TestTickCountsFailedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Create(ctx, breakoutRule()))

	f.messenger.fail = true
	f.feeder.setPrice("BTCUSDT", 50100)
	f.bot.Tick(ctx)

	require.Equal(t, 1, f.bot.FailedJobs())

	// The rule still transitioned; delivery failure does not re-arm it.
	persisted, err := f.rules.Get("btc-breakout")
	require.NoError(t, err)
	require.Equal(t, core.StateFired, persisted.State)
}

func TestTickSkipsFailingPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.rules.Create(ctx, breakoutRule()))

	f.feeder.mu.Lock()
	f.feeder.errs["BTCUSDT"] = errors.New("exchange timeout")
	f.feeder.mu.Unlock()

	f.bot.Tick(ctx)
	require.Zero(t, f.messenger.sentCount())
	require.Zero(t, f.bot.FailedJobs())
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.bot.Status() == StatusRunning
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, StatusStopped, f.bot.Status())
}
