// Package metric records fired-alert history and computes summary
// statistics over it.
package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/raykavin/alertnrun/pkg/core"
)

// historyPrefix namespaces alert history documents inside the store.
const historyPrefix = "history/"

// Event is one fired alert, kept for statistics and auditing.
type Event struct {
	RuleID    string    `json:"rule_id"`
	Pair      string    `json:"pair"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
}

// Recorder appends alert events to the document store. History documents
// are write-once; versions never advance past 1.
type Recorder struct {
	gateway core.DocumentStore
}

// NewRecorder creates a history recorder over the persistence gateway.
func NewRecorder(gateway core.DocumentStore) *Recorder {
	return &Recorder{gateway: gateway}
}

// Record persists one fired-alert event.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	key := fmt.Sprintf("%s%d-%s", historyPrefix, event.FiredAt.UnixNano(), event.RuleID)
	if _, err := r.gateway.Save(ctx, core.Document{Key: key, Data: data}, 0); err != nil {
		return fmt.Errorf("failed to record history event: %w", err)
	}

	return nil
}

// Prune deletes recorded alerts older than the cutoff and returns how
// many were removed.
func (r *Recorder) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	docs, err := r.gateway.List(ctx, historyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list history: %w", err)
	}

	removed := 0
	for _, doc := range docs {
		var event Event
		if err := json.Unmarshal(doc.Data, &event); err != nil {
			continue // skip unreadable entries
		}

		if !event.FiredAt.Before(cutoff) {
			continue
		}

		if err := r.gateway.Delete(ctx, doc.Key); err != nil {
			return removed, fmt.Errorf("failed to prune history event %s: %w", doc.Key, err)
		}
		removed++
	}

	return removed, nil
}

// Events returns all recorded alerts, oldest first.
func (r *Recorder) Events(ctx context.Context) ([]Event, error) {
	docs, err := r.gateway.List(ctx, historyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		var event Event
		if err := json.Unmarshal(doc.Data, &event); err != nil {
			continue // skip unreadable entries
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].FiredAt.Before(events[j].FiredAt)
	})

	return events, nil
}
