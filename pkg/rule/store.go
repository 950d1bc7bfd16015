// Package rule implements the alert rule store: a cached, durable view
// of the user-defined trigger conditions.
package rule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
)

// conflictRetries bounds the reload-and-retry loop on version conflicts.
const conflictRetries = 3

// Filter narrows the rules returned by List.
type Filter func(core.AlertRule) bool

// WithPair keeps rules for one instrument.
func WithPair(pair string) Filter {
	return func(rule core.AlertRule) bool {
		return rule.Pair == pair
	}
}

// WithState keeps rules in the given state.
func WithState(state core.RuleState) Filter {
	return func(rule core.AlertRule) bool {
		return rule.State == state
	}
}

// cachedRule pairs a rule with the document version it was loaded at.
type cachedRule struct {
	rule    core.AlertRule
	version int64
}

// Store holds alert rules with an in-memory cache over the persistence
// gateway. The gateway is the source of truth; the cache is refreshed on
// a timer and callers always receive copies.
type Store struct {
	gateway core.DocumentStore
	log     logger.Logger
	refresh time.Duration

	mu    sync.RWMutex
	cache map[string]cachedRule
}

// NewStore creates a rule store over the given persistence gateway.
func NewStore(gateway core.DocumentStore, refresh time.Duration, log logger.Logger) *Store {
	return &Store{
		gateway: gateway,
		log:     log,
		refresh: refresh,
		cache:   make(map[string]cachedRule),
	}
}

// Load replaces the cache with the gateway's current rule set.
func (s *Store) Load(ctx context.Context) error {
	docs, err := s.gateway.List(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	cache := make(map[string]cachedRule, len(docs))
	for _, doc := range docs {
		rule, err := decodeRule(doc.Data)
		if err != nil {
			s.log.WithError(err).Warnf("skipping unreadable rule document %s", doc.Key)
			continue
		}

		cache[rule.ID] = cachedRule{rule: rule, version: doc.Version}
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	s.log.Infof("loaded %d alert rules", len(cache))
	return nil
}

// StartRefresh refreshes the cache on a timer until the context ends.
func (s *Store) StartRefresh(ctx context.Context) {
	if s.refresh <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(s.refresh)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Load(ctx); err != nil {
					s.log.WithError(err).Error("rule cache refresh failed")
				}
			}
		}
	}()
}

// List returns a copy of the cached rules, optionally filtered, ordered
// by rule ID.
func (s *Store) List(filters ...Filter) []core.AlertRule {
	s.mu.RLock()
	rules := lo.MapToSlice(s.cache, func(_ string, cached cachedRule) core.AlertRule {
		return cached.rule
	})
	s.mu.RUnlock()

	rules = lo.Filter(rules, func(rule core.AlertRule, _ int) bool {
		for _, filter := range filters {
			if !filter(rule) {
				return false
			}
		}
		return true
	})

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// Get returns the cached rule with the given ID.
func (s *Store) Get(id string) (core.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cached, ok := s.cache[id]
	if !ok {
		return core.AlertRule{}, fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}

	return cached.rule, nil
}

// Create persists a new rule. The rule must not already exist.
func (s *Store) Create(ctx context.Context, rule core.AlertRule) error {
	if err := validate(rule); err != nil {
		return err
	}

	if rule.State == "" {
		rule.State = core.StateArmed
	}

	data, err := encodeRule(rule)
	if err != nil {
		return err
	}

	version, err := s.gateway.Save(ctx, core.Document{Key: Key(rule.ID), Data: data}, 0)
	if err != nil {
		return fmt.Errorf("failed to create rule %s: %w", rule.ID, err)
	}

	s.mu.Lock()
	s.cache[rule.ID] = cachedRule{rule: rule, version: version}
	s.mu.Unlock()

	return nil
}

// Mutation transforms a rule during an Update. It receives the current
// persisted rule and returns the rule to store.
type Mutation func(core.AlertRule) core.AlertRule

// Update atomically applies a mutation to a single rule. On a version
// conflict the store reloads the document and reapplies the mutation to
// the fresh rule, so a concurrent writer's edits are carried forward
// rather than overwritten.
func (s *Store) Update(ctx context.Context, id string, mutate Mutation) error {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}

	current := cached.rule
	version := cached.version

	for attempt := 0; attempt < conflictRetries; attempt++ {
		updated := mutate(current)
		updated.ID = id
		if err := validate(updated); err != nil {
			return err
		}

		data, err := encodeRule(updated)
		if err != nil {
			return err
		}

		newVersion, err := s.gateway.Save(ctx, core.Document{Key: Key(id), Data: data}, version)
		if err == nil {
			s.mu.Lock()
			s.cache[id] = cachedRule{rule: updated, version: newVersion}
			s.mu.Unlock()
			return nil
		}

		if !errors.Is(err, core.ErrVersionConflict) {
			return fmt.Errorf("failed to update rule %s: %w", id, err)
		}

		doc, loadErr := s.gateway.Load(ctx, Key(id))
		if loadErr != nil {
			return fmt.Errorf("failed to reload rule %s after conflict: %w", id, loadErr)
		}

		current, err = decodeRule(doc.Data)
		if err != nil {
			return fmt.Errorf("failed to decode rule %s after conflict: %w", id, err)
		}

		s.log.Warnf("version conflict updating rule %s, retrying at version %d", id, doc.Version)
		version = doc.Version
	}

	return fmt.Errorf("failed to update rule %s: %w", id, core.ErrVersionConflict)
}

// Remove deletes a rule from the gateway and the cache.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.gateway.Delete(ctx, Key(id)); err != nil {
		return fmt.Errorf("failed to remove rule %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	return nil
}

// validate checks the rule shape before it reaches the gateway.
func validate(rule core.AlertRule) error {
	if rule.ID == "" {
		return errors.New("rule id cannot be empty")
	}
	if rule.Pair == "" {
		return errors.New("rule pair cannot be empty")
	}
	if rule.Metric == "" {
		return errors.New("rule metric cannot be empty")
	}
	if !rule.Comparator.Valid() {
		return fmt.Errorf("invalid comparator %q", rule.Comparator)
	}
	return nil
}
