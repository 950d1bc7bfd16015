package core

import "time"

// RuleState describes the arming state of an alert rule.
type RuleState string

const (
	StateArmed      RuleState = "ARMED"
	StateFired      RuleState = "FIRED"
	StateSuppressed RuleState = "SUPPRESSED"
)

// Comparator describes how a metric is compared against a threshold.
type Comparator string

const (
	ComparatorGT  Comparator = ">"
	ComparatorGTE Comparator = ">="
	ComparatorLT  Comparator = "<"
	ComparatorLTE Comparator = "<="
	ComparatorEQ  Comparator = "=="
)

// Satisfied reports whether value matches the comparator against threshold.
// Threshold equality satisfies every comparator; the inclusive bound avoids
// non-deterministic float-equality gaps at the boundary.
func (c Comparator) Satisfied(value, threshold float64) bool {
	switch c {
	case ComparatorGT, ComparatorGTE:
		return value >= threshold
	case ComparatorLT, ComparatorLTE:
		return value <= threshold
	case ComparatorEQ:
		return value == threshold
	}
	return false
}

// Valid reports whether the comparator is one of the known forms.
func (c Comparator) Valid() bool {
	switch c {
	case ComparatorGT, ComparatorGTE, ComparatorLT, ComparatorLTE, ComparatorEQ:
		return true
	}
	return false
}

// AlertRule is a user-defined trigger condition for one instrument.
// The pair is immutable once the rule is referenced; state transitions are
// owned by the evaluator.
type AlertRule struct {
	ID          string        `json:"id"`
	Pair        string        `json:"pair"`
	Metric      string        `json:"metric"`
	Comparator  Comparator    `json:"comparator"`
	Threshold   float64       `json:"threshold"`
	State       RuleState     `json:"state"`
	LastFiredAt time.Time     `json:"last_fired_at"`
	Cooldown    time.Duration `json:"cooldown"`
}

// CooldownElapsed reports whether the rule's cooldown window has passed.
func (r AlertRule) CooldownElapsed(now time.Time) bool {
	return now.Sub(r.LastFiredAt) >= r.Cooldown
}
