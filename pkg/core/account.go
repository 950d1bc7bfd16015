package core

// Balance represents a single asset balance.
type Balance struct {
	Asset string
	Free  float64
	Lock  float64
}

// Account holds the exchange account balances.
type Account struct {
	Balances []Balance
}

// GetBalance returns the balance for an asset, or a zero balance when the
// account does not hold it.
func (a Account) GetBalance(asset string) Balance {
	for _, balance := range a.Balances {
		if balance.Asset == asset {
			return balance
		}
	}
	return Balance{Asset: asset}
}

// AccountContext is the read-only sizing reference for risk calculations.
// It is never mutated by the alert pipeline.
type AccountContext struct {
	Balance     float64
	RiskPercent float64
	Testnet     bool
}

// PositionSize returns the position size for a trade given entry and stop
// prices, risking RiskPercent of the account balance.
func (a AccountContext) PositionSize(entry, stop float64) float64 {
	diff := entry - stop
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 0
	}

	risk := a.Balance * a.RiskPercent / 100.0
	return risk / diff
}
