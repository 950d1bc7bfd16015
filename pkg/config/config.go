// Package config materialises the environment configuration surface.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Config holds all recognized settings for the alert system.
type Config struct {
	Binance  BinanceConfig
	Telegram TelegramConfig
	Firebase FirebaseConfig
	Account  AccountConfig
	Monitor  MonitorConfig
	Log      LogConfig
}

// BinanceConfig covers exchange authentication and the mode switch.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
}

// TelegramConfig identifies the notification channel.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// FirebaseConfig points at the persistence-store credential document.
// When the key path is empty the local document store is used instead.
type FirebaseConfig struct {
	ServiceAccountKey string
	ProjectID         string
}

// AccountConfig is the sizing reference for risk calculations.
type AccountConfig struct {
	Balance     float64
	RiskPercent float64
}

// MonitorConfig governs the scan loop, the rule cache and the indicator
// periods computed for each snapshot.
type MonitorConfig struct {
	Pairs            []string
	Timeframe        string
	ScanInterval     time.Duration
	DefaultCooldown  time.Duration
	CacheRefresh     time.Duration
	MaxAlertsPerHour int
	DispatchAttempts int
	DatabaseFile     string

	RSIPeriod       int
	SMAFast         int
	SMASlow         int
	EMAPeriod       int
	VolumeSMAPeriod int
}

// LogConfig controls log output.
type LogConfig struct {
	Level   string
	JSON    bool
	Colored bool
}

// Load reads configuration from the environment with sane defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	scanInterval, err := parseDuration(v, "monitor.scan_interval")
	if err != nil {
		return nil, err
	}

	cooldown, err := parseDuration(v, "monitor.cooldown")
	if err != nil {
		return nil, err
	}

	cacheRefresh, err := parseDuration(v, "monitor.cache_refresh")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Binance: BinanceConfig{
			APIKey:    v.GetString("binance.api_key"),
			SecretKey: v.GetString("binance.secret_key"),
			Testnet:   v.GetBool("binance.testnet"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram.bot_token"),
			ChatID:   v.GetInt64("telegram.chat_id"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountKey: v.GetString("firebase.service_account_key"),
			ProjectID:         v.GetString("firebase.project_id"),
		},
		Account: AccountConfig{
			Balance:     v.GetFloat64("account.balance"),
			RiskPercent: v.GetFloat64("account.risk_percent"),
		},
		Monitor: MonitorConfig{
			Pairs:            splitPairs(v.GetString("monitor.pairs")),
			Timeframe:        v.GetString("monitor.timeframe"),
			ScanInterval:     scanInterval,
			DefaultCooldown:  cooldown,
			CacheRefresh:     cacheRefresh,
			MaxAlertsPerHour: v.GetInt("monitor.max_alerts_per_hour"),
			DispatchAttempts: v.GetInt("monitor.dispatch_attempts"),
			DatabaseFile:     v.GetString("monitor.database_file"),
			RSIPeriod:        v.GetInt("monitor.rsi_period"),
			SMAFast:          v.GetInt("monitor.sma_fast"),
			SMASlow:          v.GetInt("monitor.sma_slow"),
			EMAPeriod:        v.GetInt("monitor.ema_period"),
			VolumeSMAPeriod:  v.GetInt("monitor.volume_sma_period"),
		},
		Log: LogConfig{
			Level:   v.GetString("log.level"),
			JSON:    v.GetBool("log.json"),
			Colored: v.GetBool("log.colored"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// envBindings maps viper keys to the recognized environment variables.
var envBindings = map[string]string{
	"binance.api_key":              "BINANCE_API_KEY",
	"binance.secret_key":           "BINANCE_SECRET_KEY",
	"binance.testnet":              "BINANCE_TESTNET",
	"telegram.bot_token":           "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":             "TELEGRAM_CHAT_ID",
	"firebase.service_account_key": "FIREBASE_SERVICE_ACCOUNT_KEY",
	"firebase.project_id":          "FIREBASE_PROJECT_ID",
	"account.balance":              "ACCOUNT_BALANCE",
	"account.risk_percent":         "RISK_PERCENTAGE",
	"monitor.pairs":                "PRIORITY_SYMBOLS",
	"monitor.timeframe":            "MAIN_TIMEFRAME",
	"monitor.scan_interval":        "SCAN_INTERVAL",
	"monitor.cooldown":             "ALERT_COOLDOWN",
	"monitor.cache_refresh":        "RULE_CACHE_REFRESH",
	"monitor.max_alerts_per_hour":  "MAX_ALERTS_PER_HOUR",
	"monitor.dispatch_attempts":    "DISPATCH_ATTEMPTS",
	"monitor.database_file":        "DATABASE_FILE",
	"monitor.rsi_period":           "RSI_PERIOD",
	"monitor.sma_fast":             "SMA_FAST",
	"monitor.sma_slow":             "SMA_SLOW",
	"monitor.ema_period":           "EMA_PERIOD",
	"monitor.volume_sma_period":    "VOLUME_SMA_PERIOD",
	"log.level":                    "LOG_LEVEL",
	"log.json":                     "LOG_JSON",
	"log.colored":                  "LOG_COLORED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.testnet", false)

	v.SetDefault("account.balance", 0.0)
	v.SetDefault("account.risk_percent", 5.0)

	v.SetDefault("monitor.pairs", "BTCUSDT,ETHUSDT,BNBUSDT")
	v.SetDefault("monitor.timeframe", "1h")
	v.SetDefault("monitor.scan_interval", "30m")
	v.SetDefault("monitor.cooldown", "1h")
	v.SetDefault("monitor.cache_refresh", "5m")
	v.SetDefault("monitor.max_alerts_per_hour", 5)
	v.SetDefault("monitor.dispatch_attempts", 3)
	v.SetDefault("monitor.database_file", "alertnrun.db")
	v.SetDefault("monitor.rsi_period", 14)
	v.SetDefault("monitor.sma_fast", 20)
	v.SetDefault("monitor.sma_slow", 50)
	v.SetDefault("monitor.ema_period", 21)
	v.SetDefault("monitor.volume_sma_period", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.colored", true)
}

// parseDuration accepts extended duration forms such as "1d" or "1h30m".
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q for %s: %w", raw, key, err)
	}
	return d, nil
}

func splitPairs(raw string) []string {
	parts := strings.Split(raw, ",")
	pairs := make([]string, 0, len(parts))
	for _, part := range parts {
		if pair := strings.ToUpper(strings.TrimSpace(part)); pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// Validate performs fail-fast sanity checks, collecting every problem so
// the operator sees the full list at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Binance.APIKey == "" {
		errs = append(errs, errors.New("BINANCE_API_KEY is not set"))
	}
	if c.Binance.SecretKey == "" {
		errs = append(errs, errors.New("BINANCE_SECRET_KEY is not set"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is not set"))
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("TELEGRAM_CHAT_ID is not set"))
	}
	if len(c.Monitor.Pairs) == 0 {
		errs = append(errs, errors.New("PRIORITY_SYMBOLS must list at least one pair"))
	}
	if c.Monitor.ScanInterval <= 0 {
		errs = append(errs, errors.New("SCAN_INTERVAL must be greater than zero"))
	}
	if c.Monitor.DispatchAttempts < 1 {
		errs = append(errs, errors.New("DISPATCH_ATTEMPTS must be at least 1"))
	}
	if c.Account.RiskPercent < 1 || c.Account.RiskPercent > 20 {
		errs = append(errs, errors.New("RISK_PERCENTAGE must be between 1 and 20"))
	}

	return errors.Join(errs...)
}
