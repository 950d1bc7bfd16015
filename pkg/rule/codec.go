package rule

import (
	"encoding/json"
	"fmt"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/alertnrun/pkg/core"
)

// schemaVersion identifies the rule document layout. Bump on breaking
// changes to the serialized form.
const schemaVersion = 1

// keyPrefix namespaces rule documents inside the document store.
const keyPrefix = "rules/"

// ruleDocument is the persisted form of an AlertRule. Cooldowns are kept
// as human-readable duration strings so admin edits survive round-trips.
type ruleDocument struct {
	SchemaVersion int       `json:"schema_version"`
	ID            string    `json:"id"`
	Pair          string    `json:"pair"`
	Metric        string    `json:"metric"`
	Comparator    string    `json:"comparator"`
	Threshold     float64   `json:"threshold"`
	State         string    `json:"state"`
	LastFiredAt   time.Time `json:"last_fired_at"`
	Cooldown      string    `json:"cooldown"`
}

// Key returns the document key for a rule ID.
func Key(id string) string {
	return keyPrefix + id
}

// encodeRule serializes a rule into document bytes.
func encodeRule(rule core.AlertRule) ([]byte, error) {
	doc := ruleDocument{
		SchemaVersion: schemaVersion,
		ID:            rule.ID,
		Pair:          rule.Pair,
		Metric:        rule.Metric,
		Comparator:    string(rule.Comparator),
		Threshold:     rule.Threshold,
		State:         string(rule.State),
		LastFiredAt:   rule.LastFiredAt,
		Cooldown:      rule.Cooldown.String(),
	}

	return json.Marshal(doc)
}

// decodeRule deserializes document bytes into a rule.
func decodeRule(data []byte) (core.AlertRule, error) {
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.AlertRule{}, fmt.Errorf("failed to unmarshal rule: %w", err)
	}

	if doc.SchemaVersion != schemaVersion {
		return core.AlertRule{}, fmt.Errorf("unsupported rule schema version %d", doc.SchemaVersion)
	}

	cooldown, err := str2duration.ParseDuration(doc.Cooldown)
	if err != nil {
		return core.AlertRule{}, fmt.Errorf("invalid cooldown %q: %w", doc.Cooldown, err)
	}

	state := core.RuleState(doc.State)
	if state == "" {
		state = core.StateArmed
	}

	return core.AlertRule{
		ID:          doc.ID,
		Pair:        doc.Pair,
		Metric:      doc.Metric,
		Comparator:  core.Comparator(doc.Comparator),
		Threshold:   doc.Threshold,
		State:       state,
		LastFiredAt: doc.LastFiredAt,
		Cooldown:    cooldown,
	}, nil
}
