// Package exchange provides the snapshot feed connecting the market data
// source to the alert pipeline.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/StudioSol/set"
	talib "github.com/markcheno/go-talib"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
)

// Indicator keys published on every snapshot.
const (
	IndicatorRSI       = "rsi"
	IndicatorSMAFast   = "sma_fast"
	IndicatorSMASlow   = "sma_slow"
	IndicatorEMA       = "ema"
	IndicatorVolumeSMA = "volume_sma"
)

// IndicatorConfig sets the periods used for derived snapshot indicators.
type IndicatorConfig struct {
	RSIPeriod       int
	SMAFast         int
	SMASlow         int
	EMAPeriod       int
	VolumeSMAPeriod int
}

// Warmup returns the candle window needed before every indicator is
// defined. talib needs one extra sample beyond the longest period.
func (c IndicatorConfig) Warmup() int {
	max := c.RSIPeriod
	for _, period := range []int{c.SMAFast, c.SMASlow, c.EMAPeriod, c.VolumeSMAPeriod} {
		if period > max {
			max = period
		}
	}
	return max + 1
}

// DataFeed holds the candle and error channels of one subscription.
type DataFeed struct {
	Data chan core.Candle
	Err  chan error
}

// SnapshotFeed turns raw candles into indicator snapshots. It supports
// both a blocking per-tick Fetch and a streaming subscription model with
// fan-out to registered consumers.
type SnapshotFeed struct {
	feeder     core.Feeder
	log        logger.Logger
	indicators IndicatorConfig

	feeds               *set.LinkedHashSetString
	dataFeeds           map[string]*DataFeed
	subscriptionsByFeed map[string][]core.SnapshotConsumer
	windows             map[string]*window
	mu                  sync.RWMutex
}

// window is the rolling candle history used for indicator computation.
type window struct {
	closes  core.Series[float64]
	volumes core.Series[float64]
	size    int
}

func (w *window) push(candle core.Candle) {
	w.closes = append(w.closes, candle.Close)
	w.volumes = append(w.volumes, candle.Volume)

	if len(w.closes) > w.size {
		w.closes = w.closes[len(w.closes)-w.size:]
		w.volumes = w.volumes[len(w.volumes)-w.size:]
	}
}

// NewSnapshotFeed creates a snapshot feed over the given market data source.
func NewSnapshotFeed(feeder core.Feeder, indicators IndicatorConfig, log logger.Logger) *SnapshotFeed {
	return &SnapshotFeed{
		feeder:              feeder,
		log:                 log,
		indicators:          indicators,
		feeds:               set.NewLinkedHashSetString(),
		dataFeeds:           make(map[string]*DataFeed),
		subscriptionsByFeed: make(map[string][]core.SnapshotConsumer),
		windows:             make(map[string]*window),
	}
}

// feedKey generates a unique key for a pair and timeframe
func (s *SnapshotFeed) feedKey(pair, timeframe string) string {
	return fmt.Sprintf("%s--%s", pair, timeframe)
}

// pairTimeframeFromKey extracts the pair and timeframe from a key
func (s *SnapshotFeed) pairTimeframeFromKey(key string) (pair, timeframe string) {
	parts := strings.Split(key, "--")
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Fetch performs one blocking snapshot read for a pair: it pulls the
// indicator window and builds a snapshot from the most recent candle.
func (s *SnapshotFeed) Fetch(ctx context.Context, pair, timeframe string) (core.Snapshot, error) {
	warmup := s.indicators.Warmup()

	candles, err := s.feeder.CandlesByLimit(ctx, pair, timeframe, warmup)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("fetch candles for %s: %w", pair, err)
	}

	if len(candles) == 0 {
		return core.Snapshot{}, &core.DataFormatError{Pair: pair, Err: fmt.Errorf("empty candle window")}
	}

	w := &window{size: warmup}
	for _, candle := range candles {
		w.push(candle)
	}

	return s.buildSnapshot(candles[len(candles)-1], w), nil
}

// Subscribe registers a snapshot consumer for a pair and timeframe.
func (s *SnapshotFeed) Subscribe(pair, timeframe string, consumer core.SnapshotConsumer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.feedKey(pair, timeframe)
	s.feeds.Add(key)
	s.subscriptionsByFeed[key] = append(s.subscriptionsByFeed[key], consumer)
}

// Preload warms the indicator window of every subscribed feed so the
// first streamed candle already produces a full snapshot.
func (s *SnapshotFeed) Preload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	warmup := s.indicators.Warmup()

	for key := range s.feeds.Iter() {
		pair, timeframe := s.pairTimeframeFromKey(key)

		candles, err := s.feeder.CandlesByLimit(ctx, pair, timeframe, warmup)
		if err != nil {
			return fmt.Errorf("preload %s: %w", key, err)
		}

		w := &window{size: warmup}
		for _, candle := range candles {
			w.push(candle)
		}
		s.windows[key] = w

		s.log.Infof("preloaded %d candles for %s-%s", len(candles), pair, timeframe)
	}

	return nil
}

// Connect opens a candle subscription for every registered feed.
func (s *SnapshotFeed) Connect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Infof("Connecting to the exchange.")

	for key := range s.feeds.Iter() {
		pair, timeframe := s.pairTimeframeFromKey(key)
		ccandle, cerr := s.feeder.CandlesSubscription(ctx, pair, timeframe)
		s.dataFeeds[key] = &DataFeed{
			Data: ccandle,
			Err:  cerr,
		}
	}
}

// Start begins processing all feeds. When loadSync is true the call
// blocks until every feed terminates.
func (s *SnapshotFeed) Start(ctx context.Context, loadSync bool) {
	s.Connect(ctx)

	var wg sync.WaitGroup

	s.mu.RLock()
	for key, feed := range s.dataFeeds {
		wg.Add(1)
		go s.processFeed(key, feed, &wg)
	}
	s.mu.RUnlock()

	s.log.Infof("Snapshot feed connected.")

	if loadSync {
		wg.Wait()
	}
}

// processFeed consumes candles from one feed and fans snapshots out to
// the registered consumers. Only complete candles advance the window.
func (s *SnapshotFeed) processFeed(key string, feed *DataFeed, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case candle, ok := <-feed.Data:
			if !ok {
				return
			}

			if !candle.Complete {
				continue
			}

			s.mu.Lock()
			w, ok := s.windows[key]
			if !ok {
				w = &window{size: s.indicators.Warmup()}
				s.windows[key] = w
			}
			w.push(candle)
			snapshot := s.buildSnapshot(candle, w)

			subscriptions := s.subscriptionsByFeed[key]
			s.mu.Unlock()

			for _, consumer := range subscriptions {
				consumer(snapshot)
			}

		case err, ok := <-feed.Err:
			if !ok {
				return
			}

			if err != nil {
				s.log.Error("snapshotFeed/processFeed: ", err)
			}
		}
	}
}

// buildSnapshot derives the indicator set from the rolling window.
func (s *SnapshotFeed) buildSnapshot(candle core.Candle, w *window) core.Snapshot {
	snapshot := core.Snapshot{
		Pair:       candle.Pair,
		Time:       candle.Time,
		Price:      candle.Close,
		Volume:     candle.Volume,
		Indicators: make(map[string]float64),
	}

	closes := w.closes.Values()
	volumes := w.volumes.Values()

	if v, ok := lastIndicator(talib.Rsi, closes, s.indicators.RSIPeriod); ok {
		snapshot.Indicators[IndicatorRSI] = v
	}
	if v, ok := lastIndicator(talib.Sma, closes, s.indicators.SMAFast); ok {
		snapshot.Indicators[IndicatorSMAFast] = v
	}
	if v, ok := lastIndicator(talib.Sma, closes, s.indicators.SMASlow); ok {
		snapshot.Indicators[IndicatorSMASlow] = v
	}
	if v, ok := lastIndicator(talib.Ema, closes, s.indicators.EMAPeriod); ok {
		snapshot.Indicators[IndicatorEMA] = v
	}
	if v, ok := lastIndicator(talib.Sma, volumes, s.indicators.VolumeSMAPeriod); ok {
		snapshot.Indicators[IndicatorVolumeSMA] = v
	}

	return snapshot
}

// lastIndicator applies a talib transform and returns its latest value.
// The window must exceed the period or the indicator is omitted.
func lastIndicator(fn func([]float64, int) []float64, values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) <= period {
		return 0, false
	}

	result := fn(values, period)
	if len(result) == 0 {
		return 0, false
	}

	return result[len(result)-1], true
}
