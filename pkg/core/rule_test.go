package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComparatorSatisfied(t *testing.T) {
	tt := []struct {
		name       string
		comparator Comparator
		value      float64
		threshold  float64
		want       bool
	}{
		{"gt above", ComparatorGT, 51000, 50000, true},
		{"gt at boundary", ComparatorGT, 50000, 50000, true},
		{"gt below", ComparatorGT, 49999, 50000, false},
		{"gte at boundary", ComparatorGTE, 50000, 50000, true},
		{"lt below", ComparatorLT, 49000, 50000, true},
		{"lt at boundary", ComparatorLT, 50000, 50000, true},
		{"lt above", ComparatorLT, 50001, 50000, false},
		{"lte at boundary", ComparatorLTE, 50000, 50000, true},
		{"eq equal", ComparatorEQ, 50000, 50000, true},
		{"eq unequal", ComparatorEQ, 50000.01, 50000, false},
		{"unknown comparator", Comparator("!="), 50000, 50000, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.comparator.Satisfied(tc.value, tc.threshold))
		})
	}
}

func TestComparatorValid(t *testing.T) {
	assert.True(t, ComparatorGTE.Valid())
	assert.True(t, ComparatorEQ.Valid())
	assert.False(t, Comparator("!=").Valid())
	assert.False(t, Comparator("").Valid())
}

func TestCooldownElapsed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rule := AlertRule{LastFiredAt: now, Cooldown: time.Minute}

	assert.False(t, rule.CooldownElapsed(now.Add(59*time.Second)))
	assert.True(t, rule.CooldownElapsed(now.Add(time.Minute)))
	assert.True(t, rule.CooldownElapsed(now.Add(2*time.Minute)))
}

func TestAccountPositionSize(t *testing.T) {
	sizing := AccountContext{Balance: 10000, RiskPercent: 2}

	// Risking 200 USD over a 1000 USD stop distance.
	assert.InDelta(t, 0.2, sizing.PositionSize(50000, 49000), 1e-9)
	assert.InDelta(t, 0.2, sizing.PositionSize(49000, 50000), 1e-9)
	assert.Zero(t, sizing.PositionSize(50000, 50000))
}

func TestAccountGetBalance(t *testing.T) {
	account := Account{Balances: []Balance{{Asset: "BTC", Free: 0.5, Lock: 0.1}}}

	assert.Equal(t, 0.5, account.GetBalance("BTC").Free)
	assert.Equal(t, "ETH", account.GetBalance("ETH").Asset)
	assert.Zero(t, account.GetBalance("ETH").Free)
}
