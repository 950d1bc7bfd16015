// Package bot orchestrates the alert pipeline: snapshot fetch, rule
// evaluation, notification dispatch, and state persistence.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/evaluator"
	"github.com/raykavin/alertnrun/pkg/exchange"
	"github.com/raykavin/alertnrun/pkg/logger"
	"github.com/raykavin/alertnrun/pkg/metric"
	"github.com/raykavin/alertnrun/pkg/notification"
	"github.com/raykavin/alertnrun/pkg/rule"
)

// Status is the orchestrator lifecycle state.
type Status string

const (
	StatusInit     Status = "INIT"
	StatusRunning  Status = "RUNNING"
	StatusDraining Status = "DRAINING"
	StatusStopped  Status = "STOPPED"
)

// Settings carries the runtime knobs of the orchestrator.
type Settings struct {
	Pairs        []string
	Timeframe    string
	ScanInterval time.Duration
}

// Bot drives the monitoring loop. Each tick runs fetch, evaluate,
// dispatch, and persist in order; a new tick never starts before the
// previous one has fully settled.
type Bot struct {
	settings   Settings
	feed       *exchange.SnapshotFeed
	rules      *rule.Store
	evaluator  *evaluator.Evaluator
	dispatcher *notification.Dispatcher
	recorder   *metric.Recorder
	log        logger.Logger

	mu         sync.Mutex
	status     Status
	failedJobs int
}

// Option is a function that configures a Bot instance
type Option func(bot *Bot)

// WithRecorder attaches an alert history recorder. Without one, fired
// alerts are not kept for statistics.
func WithRecorder(recorder *metric.Recorder) Option {
	return func(bot *Bot) {
		bot.recorder = recorder
	}
}

// NewBot creates a new orchestrator instance with the provided settings
// and dependencies.
func NewBot(
	settings Settings,
	feed *exchange.SnapshotFeed,
	rules *rule.Store,
	dispatcher *notification.Dispatcher,
	log logger.Logger,
	options ...Option,
) (*Bot, error) {
	if err := validate(settings, feed, rules, dispatcher, log); err != nil {
		return nil, err
	}

	bot := &Bot{
		settings:   settings,
		feed:       feed,
		rules:      rules,
		evaluator:  evaluator.New(log),
		dispatcher: dispatcher,
		log:        log,
		status:     StatusInit,
	}

	for _, option := range options {
		option(bot)
	}

	return bot, nil
}

// validate checks the orchestrator dependencies before startup.
func validate(settings Settings, feed *exchange.SnapshotFeed, rules *rule.Store,
	dispatcher *notification.Dispatcher, log logger.Logger) error {
	if len(settings.Pairs) == 0 {
		return errors.New("at least one pair is required")
	}
	if settings.Timeframe == "" {
		return errors.New("timeframe cannot be empty")
	}
	if settings.ScanInterval <= 0 {
		return errors.New("scan interval must be positive")
	}
	if feed == nil {
		return errors.New("snapshot feed cannot be nil")
	}
	if rules == nil {
		return errors.New("rule store cannot be nil")
	}
	if dispatcher == nil {
		return errors.New("dispatcher cannot be nil")
	}
	if log == nil {
		return errors.New("logger cannot be nil")
	}
	return nil
}

// Status returns the current lifecycle state.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// FailedJobs returns the number of notification jobs that exhausted their
// retries since startup.
func (b *Bot) FailedJobs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failedJobs
}

func (b *Bot) setStatus(status Status) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
}

// Run loads the rule set and drives the monitoring loop until the context
// is canceled. The tick in flight when cancellation arrives finishes its
// dispatch and persistence before the loop stops.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.rules.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	b.rules.StartRefresh(ctx)

	b.setStatus(StatusRunning)
	b.log.WithFields(map[string]any{
		"pairs":     b.settings.Pairs,
		"timeframe": b.settings.Timeframe,
		"interval":  b.settings.ScanInterval.String(),
	}).Info("monitoring started")

	ticker := time.NewTicker(b.settings.ScanInterval)
	defer ticker.Stop()

	b.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			b.setStatus(StatusDraining)
			b.log.Info("shutdown requested, draining")
			b.setStatus(StatusStopped)
			b.log.Info("monitoring stopped")
			return nil
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick runs one full monitoring cycle: concurrent snapshot fetch, per-pair
// evaluation, dispatch, persistence.
func (b *Bot) Tick(ctx context.Context) {
	snapshots := b.fetchSnapshots(ctx)

	jobs := make([]core.NotificationJob, 0)
	fired := make(map[string]metric.Event)

	for _, snapshot := range snapshots {
		rules := b.rules.List(rule.WithPair(snapshot.Pair))
		if len(rules) == 0 {
			continue
		}

		for _, result := range b.evaluator.Evaluate(snapshot, rules) {
			if result.Changed {
				if err := b.persistTransition(ctx, result.Rule); err != nil {
					b.log.WithError(err).Errorf("failed to persist rule %s", result.Rule.ID)
					continue
				}
			}

			if result.Job != nil {
				jobs = append(jobs, *result.Job)

				value, _ := snapshot.Metric(result.Rule.Metric)
				fired[result.Rule.ID] = metric.Event{
					RuleID:    result.Rule.ID,
					Pair:      result.Rule.Pair,
					Metric:    result.Rule.Metric,
					Value:     value,
					Threshold: result.Rule.Threshold,
					FiredAt:   result.Rule.LastFiredAt,
				}
			}
		}
	}

	if b.recorder != nil {
		for _, event := range fired {
			if err := b.recorder.Record(ctx, event); err != nil {
				b.log.WithError(err).Errorf("failed to record alert history for %s", event.RuleID)
			}
		}
	}

	if len(jobs) == 0 {
		return
	}

	results := b.dispatcher.Dispatch(ctx, jobs)

	failed := 0
	for _, result := range results {
		if result.Status == core.JobFailed {
			failed++
		}
	}

	if failed > 0 {
		b.mu.Lock()
		b.failedJobs += failed
		b.mu.Unlock()
		b.log.Errorf("%d of %d notifications failed delivery", failed, len(results))
	}
}

// persistTransition writes the evaluator's state change through the rule
// store. Only the arming state and fired timestamp are touched, so a
// concurrent admin edit to threshold or comparator survives a conflict
// retry; a concurrent suppression wins over the transition.
func (b *Bot) persistTransition(ctx context.Context, evaluated core.AlertRule) error {
	return b.rules.Update(ctx, evaluated.ID, func(current core.AlertRule) core.AlertRule {
		if current.State == core.StateSuppressed {
			return current
		}
		current.State = evaluated.State
		current.LastFiredAt = evaluated.LastFiredAt
		return current
	})
}

// fetchSnapshots pulls one snapshot per configured pair concurrently.
// Pairs whose fetch fails are skipped for this tick and logged.
func (b *Bot) fetchSnapshots(ctx context.Context) []core.Snapshot {
	type fetched struct {
		snapshot core.Snapshot
		err      error
		pair     string
	}

	results := make([]fetched, len(b.settings.Pairs))

	wg := sync.WaitGroup{}
	for i, pair := range b.settings.Pairs {
		wg.Add(1)
		go func(i int, pair string) {
			defer wg.Done()
			snapshot, err := b.feed.Fetch(ctx, pair, b.settings.Timeframe)
			results[i] = fetched{snapshot: snapshot, err: err, pair: pair}
		}(i, pair)
	}
	wg.Wait()

	snapshots := make([]core.Snapshot, 0, len(results))
	for _, result := range results {
		if result.err != nil {
			b.log.WithError(result.err).Warnf("skipping %s this cycle", result.pair)
			continue
		}
		snapshots = append(snapshots, result.snapshot)
	}

	return snapshots
}
