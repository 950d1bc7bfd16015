package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_SECRET_KEY", "secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}, cfg.Monitor.Pairs)
	require.Equal(t, "1h", cfg.Monitor.Timeframe)
	require.Equal(t, 30*time.Minute, cfg.Monitor.ScanInterval)
	require.Equal(t, time.Hour, cfg.Monitor.DefaultCooldown)
	require.Equal(t, 5, cfg.Monitor.MaxAlertsPerHour)
	require.Equal(t, 3, cfg.Monitor.DispatchAttempts)
	require.Equal(t, 14, cfg.Monitor.RSIPeriod)
	require.False(t, cfg.Binance.Testnet)
	require.Equal(t, int64(42), cfg.Telegram.ChatID)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BINANCE_TESTNET", "true")
	t.Setenv("PRIORITY_SYMBOLS", "solusdt, adausdt")
	t.Setenv("SCAN_INTERVAL", "1d")
	t.Setenv("ACCOUNT_BALANCE", "220")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.Binance.Testnet)
	require.Equal(t, []string{"SOLUSDT", "ADAUSDT"}, cfg.Monitor.Pairs)
	require.Equal(t, 24*time.Hour, cfg.Monitor.ScanInterval)
	require.Equal(t, 220.0, cfg.Account.Balance)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_SECRET_KEY", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "0")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "BINANCE_API_KEY")
	require.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCAN_INTERVAL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_RiskBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RISK_PERCENTAGE", "50")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "RISK_PERCENTAGE")
}
