package core

import "time"

// Metric keys available to alert rules. Any indicator key present in
// Snapshot.Indicators is also a valid metric.
const (
	MetricPrice  = "price"
	MetricVolume = "volume"
)

// Snapshot is one timestamped read of market data for an instrument,
// with derived indicators computed over the recent candle window.
// Snapshots are ephemeral; they are never persisted.
type Snapshot struct {
	Pair       string
	Time       time.Time
	Price      float64
	Volume     float64
	Indicators map[string]float64
}

// Metric resolves a metric key against the snapshot. The second return
// reports whether the metric is available.
func (s Snapshot) Metric(name string) (float64, bool) {
	switch name {
	case MetricPrice:
		return s.Price, true
	case MetricVolume:
		return s.Volume, true
	}

	value, ok := s.Indicators[name]
	return value, ok
}
