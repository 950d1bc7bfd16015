package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/alertnrun/pkg/core"
	"github.com/raykavin/alertnrun/pkg/rule"
)

// Command line flags for rule creation
var (
	ruleID         string
	rulePair       string
	ruleMetric     string
	ruleComparator string
	ruleThreshold  float64
	ruleCooldown   string
)

func buildRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage alert rules",
	}

	rulesCmd.AddCommand(buildRulesListCmd())
	rulesCmd.AddCommand(buildRulesAddCmd())
	rulesCmd.AddCommand(buildRulesRemoveCmd())

	return rulesCmd
}

func buildRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured alert rules",
		RunE:  runRulesList,
	}
}

func buildRulesAddCmd() *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an alert rule",
		RunE:  runRulesAdd,
	}

	// Add flags
	addCmd.Flags().StringVarP(&ruleID, "id", "i", "", "Rule identifier (e.g. btc-breakout)")
	addCmd.Flags().StringVarP(&rulePair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	addCmd.Flags().StringVarP(&ruleMetric, "metric", "m", core.MetricPrice, "Metric to watch (price, volume, rsi, ...)")
	addCmd.Flags().StringVarP(&ruleComparator, "comparator", "c", ">=", "Comparator (>, >=, <, <=, ==)")
	addCmd.Flags().Float64VarP(&ruleThreshold, "threshold", "t", 0, "Threshold value")
	addCmd.Flags().StringVarP(&ruleCooldown, "cooldown", "d", "", "Cooldown after firing (e.g. 1h, default from ALERT_COOLDOWN)")

	// Required flags
	addCmd.MarkFlagRequired("id")
	addCmd.MarkFlagRequired("pair")
	addCmd.MarkFlagRequired("threshold")

	return addCmd
}

func buildRulesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE:  runRulesRemove,
	}
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	rules := rule.NewStore(store, 0, log)
	if err := rules.Load(cmd.Context()); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Pair", "Metric", "Condition", "State", "Cooldown", "Last Fired"})

	for _, r := range rules.List() {
		lastFired := "-"
		if !r.LastFiredAt.IsZero() {
			lastFired = r.LastFiredAt.UTC().Format(time.RFC3339)
		}

		table.Append([]string{
			r.ID,
			r.Pair,
			r.Metric,
			fmt.Sprintf("%s %s", r.Comparator, strconv.FormatFloat(r.Threshold, 'f', -1, 64)),
			string(r.State),
			r.Cooldown.String(),
			lastFired,
		})
	}

	table.Render()
	return nil
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	cooldown := cfg.Monitor.DefaultCooldown
	if ruleCooldown != "" {
		cooldown, err = str2duration.ParseDuration(ruleCooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown: %w", err)
		}
	}

	store, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	rules := rule.NewStore(store, 0, log)
	err = rules.Create(cmd.Context(), core.AlertRule{
		ID:         ruleID,
		Pair:       rulePair,
		Metric:     ruleMetric,
		Comparator: core.Comparator(ruleComparator),
		Threshold:  ruleThreshold,
		State:      core.StateArmed,
		Cooldown:   cooldown,
	})
	if err != nil {
		return err
	}

	fmt.Printf("rule %s created\n", ruleID)
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	rules := rule.NewStore(store, 0, log)
	if err := rules.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Printf("rule %s removed\n", args[0])
	return nil
}
