package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raykavin/alertnrun/pkg/config"
	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/logger"
	"github.com/raykavin/alertnrun/pkg/logger/zerolog"
	"github.com/raykavin/alertnrun/pkg/storage"
)

const dateTimeLayout = "2006-01-02 15:04:05"

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:     "alertnrun",
		Short:   "Market monitoring and alert delivery",
		Version: "1.0.0",
	}

	// Add commands
	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildRulesCmd())
	rootCmd.AddCommand(buildStatsCmd())
	rootCmd.AddCommand(buildBalanceCmd())

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger every command
// starts from.
func bootstrap() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log, err := zerolog.New(cfg.Log.Level, dateTimeLayout, cfg.Log.Colored, cfg.Log.JSON)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

// openStore selects the persistence backend: Firestore when a service
// account key is configured, the embedded local database otherwise.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (core.DocumentStore, error) {
	if cfg.Firebase.ServiceAccountKey != "" {
		log.WithField("project", cfg.Firebase.ProjectID).Info("using firestore persistence")
		return storage.FromServiceAccount(ctx, cfg.Firebase.ServiceAccountKey, cfg.Firebase.ProjectID)
	}

	log.WithField("file", cfg.Monitor.DatabaseFile).Info("using local persistence")
	return storage.FromFile(cfg.Monitor.DatabaseFile)
}
