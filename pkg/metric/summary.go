package metric

import (
	"time"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates alert history into the numbers the stats report
// prints.
type Summary struct {
	Total       int
	PerPair     map[string]int
	PerRule     map[string]int
	MeanGap     time.Duration // mean time between consecutive alerts
	StdDevGap   time.Duration
	FirstAt     time.Time
	LastAt      time.Time
	DailyCounts []float64 // alerts per calendar day, oldest first
}

// Summarize computes summary statistics over events. Events must be
// ordered oldest first, as returned by Recorder.Events.
func Summarize(events []Event) Summary {
	summary := Summary{
		Total:   len(events),
		PerPair: lo.CountValuesBy(events, func(e Event) string { return e.Pair }),
		PerRule: lo.CountValuesBy(events, func(e Event) string { return e.RuleID }),
	}

	if len(events) == 0 {
		return summary
	}

	summary.FirstAt = events[0].FiredAt
	summary.LastAt = events[len(events)-1].FiredAt

	if len(events) > 1 {
		gaps := make([]float64, 0, len(events)-1)
		for i := 1; i < len(events); i++ {
			gaps = append(gaps, events[i].FiredAt.Sub(events[i-1].FiredAt).Seconds())
		}

		mean, stdDev := stat.MeanStdDev(gaps, nil)
		summary.MeanGap = time.Duration(mean * float64(time.Second))
		summary.StdDevGap = time.Duration(stdDev * float64(time.Second))
	}

	summary.DailyCounts = dailyCounts(events)
	return summary
}

// dailyCounts buckets events into calendar days between the first and the
// last event, inclusive. Empty days count as zero so gaps show up in the
// histogram.
func dailyCounts(events []Event) []float64 {
	first := events[0].FiredAt.UTC().Truncate(24 * time.Hour)
	last := events[len(events)-1].FiredAt.UTC().Truncate(24 * time.Hour)

	days := int(last.Sub(first).Hours()/24) + 1
	counts := make([]float64, days)
	for _, event := range events {
		day := int(event.FiredAt.UTC().Truncate(24*time.Hour).Sub(first).Hours() / 24)
		counts[day]++
	}

	return counts
}
