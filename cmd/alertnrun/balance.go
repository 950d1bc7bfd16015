package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raykavin/alertnrun/pkg/core"
)

// Command line flags for sizing
var (
	sizeEntry float64
	sizeStop  float64
)

func buildBalanceCmd() *cobra.Command {
	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Show exchange balances and the position sizing reference",
		RunE:  runBalance,
	}

	balanceCmd.Flags().Float64VarP(&sizeEntry, "entry", "e", 0, "Entry price for position sizing")
	balanceCmd.Flags().Float64VarP(&sizeStop, "stop", "s", 0, "Stop price for position sizing")

	return balanceCmd
}

func runBalance(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	spot, err := initializeExchange(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	account, err := spot.Account(cmd.Context())
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Asset", "Free", "Locked"})

	for _, balance := range account.Balances {
		table.Append([]string{
			balance.Asset,
			strconv.FormatFloat(balance.Free, 'f', -1, 64),
			strconv.FormatFloat(balance.Lock, 'f', -1, 64),
		})
	}
	table.Render()

	sizing := core.AccountContext{
		Balance:     cfg.Account.Balance,
		RiskPercent: cfg.Account.RiskPercent,
		Testnet:     cfg.Binance.Testnet,
	}

	fmt.Printf("\nSizing reference: %.2f USD at %.1f%% risk per trade\n",
		sizing.Balance, sizing.RiskPercent)

	if sizeEntry > 0 && sizeStop > 0 {
		fmt.Printf("Position size for entry %.8g / stop %.8g: %.8g\n",
			sizeEntry, sizeStop, sizing.PositionSize(sizeEntry, sizeStop))
	}

	return nil
}
