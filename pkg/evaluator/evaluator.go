// Package evaluator decides alert rule state transitions from market
// snapshots. It is purely computational: persistence and delivery belong
// to the caller.
package evaluator

import (
	"fmt"
	"time"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
)

// Result is the outcome of evaluating a single rule against a snapshot.
// Changed reports whether the rule's state differs from its input and
// needs to be persisted. Job is non-nil only when the rule fired.
type Result struct {
	Rule    core.AlertRule
	Changed bool
	Job     *core.NotificationJob
}

// Evaluator applies the hysteresis state machine to alert rules.
type Evaluator struct {
	log logger.Logger
	now func() time.Time
}

// New creates an evaluator. The clock is overridable for tests.
func New(log logger.Logger) *Evaluator {
	return &Evaluator{log: log, now: time.Now}
}

// Evaluate runs every rule against the snapshot for its pair. Rules whose
// pair does not match the snapshot are returned unchanged. Evaluation is
// independent per rule, so result order follows input order.
func (e *Evaluator) Evaluate(snapshot core.Snapshot, rules []core.AlertRule) []Result {
	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		results = append(results, e.evaluateRule(snapshot, rule))
	}
	return results
}

func (e *Evaluator) evaluateRule(snapshot core.Snapshot, rule core.AlertRule) Result {
	if rule.Pair != snapshot.Pair || rule.State == core.StateSuppressed {
		return Result{Rule: rule}
	}

	value, ok := snapshot.Metric(rule.Metric)
	if !ok {
		e.log.WithFields(map[string]any{
			"rule":   rule.ID,
			"metric": rule.Metric,
		}).Warnf("skipping rule: %v", core.ErrUnknownMetric)
		return Result{Rule: rule}
	}

	satisfied := rule.Comparator.Satisfied(value, rule.Threshold)
	now := e.now()

	switch rule.State {
	case core.StateArmed:
		if !satisfied {
			return Result{Rule: rule}
		}

		rule.State = core.StateFired
		rule.LastFiredAt = now
		job := buildJob(rule, snapshot, value, now)

		e.log.WithFields(map[string]any{
			"rule":      rule.ID,
			"pair":      rule.Pair,
			"value":     value,
			"threshold": rule.Threshold,
		}).Info("alert fired")

		return Result{Rule: rule, Changed: true, Job: &job}

	case core.StateFired:
		// Re-arming requires both the cooldown to have passed and the
		// condition to have cleared; either alone keeps the rule quiet.
		if rule.CooldownElapsed(now) && !satisfied {
			rule.State = core.StateArmed
			e.log.WithField("rule", rule.ID).Info("alert re-armed")
			return Result{Rule: rule, Changed: true}
		}
		return Result{Rule: rule}
	}

	return Result{Rule: rule}
}

// buildJob formats the notification for a fired rule.
func buildJob(rule core.AlertRule, snapshot core.Snapshot, value float64, now time.Time) core.NotificationJob {
	message := fmt.Sprintf(
		"🚨 *%s alert*\n%s %s %.8g\ncurrent: %.8g\nprice: %.8g\n%s",
		rule.Pair,
		rule.Metric, rule.Comparator, rule.Threshold,
		value,
		snapshot.Price,
		now.UTC().Format(time.RFC3339),
	)

	return core.NotificationJob{
		RuleID:    rule.ID,
		Pair:      rule.Pair,
		Message:   message,
		Status:    core.JobPending,
		CreatedAt: now,
	}
}
