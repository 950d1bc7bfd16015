package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/alertnrun/pkg/metric"
)

// Command line flags for history maintenance
var statsPrune string

func buildStatsCmd() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show alert history statistics",
		RunE:  runStats,
	}

	statsCmd.Flags().StringVarP(&statsPrune, "prune", "p", "", "Delete history older than this age before reporting (e.g. 30d)")

	return statsCmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metric.NewRecorder(store)

	if statsPrune != "" {
		age, err := str2duration.ParseDuration(statsPrune)
		if err != nil {
			return fmt.Errorf("invalid prune age: %w", err)
		}

		removed, err := recorder.Prune(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d alerts older than %s\n\n", removed, statsPrune)
	}

	events, err := recorder.Events(cmd.Context())
	if err != nil {
		return err
	}

	summary := metric.Summarize(events)
	if summary.Total == 0 {
		fmt.Println("No alerts recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Pair", "Alerts"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	pairs := make([]string, 0, len(summary.PerPair))
	for pair := range summary.PerPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	for _, pair := range pairs {
		table.Append([]string{pair, strconv.Itoa(summary.PerPair[pair])})
	}
	table.SetFooter([]string{"TOTAL", strconv.Itoa(summary.Total)})
	table.Render()

	fmt.Printf("\nFirst alert:  %s\n", summary.FirstAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("Last alert:   %s\n", summary.LastAt.UTC().Format("2006-01-02 15:04:05"))
	if summary.MeanGap > 0 {
		fmt.Printf("Mean gap:     %s (stddev %s)\n", summary.MeanGap, summary.StdDevGap)
	}

	if len(summary.DailyCounts) > 1 {
		fmt.Println("\n------ ALERTS PER DAY -------")
		hist := histogram.Hist(15, summary.DailyCounts)
		if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(10)); err != nil {
			return err
		}
	}

	return nil
}
