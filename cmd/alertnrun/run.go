package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/raykavin/alertnrun/pkg/bot"
	"github.com/raykavin/alertnrun/pkg/config"
	"github.com/raykavin/alertnrun/pkg/exchange"
	"github.com/raykavin/alertnrun/pkg/exchange/binance"
	"github.com/raykavin/alertnrun/pkg/logger"
	"github.com/raykavin/alertnrun/pkg/metric"
	"github.com/raykavin/alertnrun/pkg/notification"
	"github.com/raykavin/alertnrun/pkg/rule"
)

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the monitoring loop",
		RunE:  runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	spot, err := initializeExchange(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := validatePairs(spot, cfg.Monitor.Pairs); err != nil {
		return err
	}

	feed := exchange.NewSnapshotFeed(spot, exchange.IndicatorConfig{
		RSIPeriod:       cfg.Monitor.RSIPeriod,
		SMAFast:         cfg.Monitor.SMAFast,
		SMASlow:         cfg.Monitor.SMASlow,
		EMAPeriod:       cfg.Monitor.EMAPeriod,
		VolumeSMAPeriod: cfg.Monitor.VolumeSMAPeriod,
	}, log)

	messenger, err := notification.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		return err
	}

	dispatcher := notification.NewDispatcher(
		messenger,
		notification.PerHour(cfg.Monitor.MaxAlertsPerHour),
		cfg.Monitor.DispatchAttempts,
		log,
	)

	rules := rule.NewStore(store, cfg.Monitor.CacheRefresh, log)

	monitor, err := bot.NewBot(bot.Settings{
		Pairs:        cfg.Monitor.Pairs,
		Timeframe:    cfg.Monitor.Timeframe,
		ScanInterval: cfg.Monitor.ScanInterval,
	}, feed, rules, dispatcher, log, bot.WithRecorder(metric.NewRecorder(store)))
	if err != nil {
		return err
	}

	return monitor.Run(ctx)
}

// initializeExchange builds the spot client from the configured
// credentials.
func initializeExchange(ctx context.Context, cfg *config.Config, log logger.Logger) (*binance.Spot, error) {
	options := []binance.SpotOption{
		binance.WithCredentials(cfg.Binance.APIKey, cfg.Binance.SecretKey),
	}
	if cfg.Binance.Testnet {
		options = append(options, binance.WithTestNet())
	}

	return binance.NewSpot(ctx, log, options...)
}

// validatePairs checks every configured pair against the exchange symbol
// table before the loop starts.
func validatePairs(spot *binance.Spot, pairs []string) error {
	progressBar := progressbar.Default(int64(len(pairs)), "validating pairs")
	defer progressBar.Close()

	for _, pair := range pairs {
		if err := spot.ValidatePair(pair); err != nil {
			return err
		}
		_ = progressBar.Add(1)
	}

	return nil
}
