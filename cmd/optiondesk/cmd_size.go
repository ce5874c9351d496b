package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagRelaxRegime bool

// sizeCmd computes a single sizing decision and prints it.
var sizeCmd = &cobra.Command{
	Use:   "size <strategy> <symbol>",
	Short: "Compute the admissible size for a prospective trade",
	Long: `Compute the maximum admissible trade size for a strategy on a symbol:
the minimum of the regime, tier, correlation and bounded-Kelly ceilings
plus the absolute hard cap. An infeasible result means "do not trade
now", not an error.

Example usage:
  optiondesk size put_credit_spread SPY
  optiondesk size iron_condor IWM --index 45 --relax-regime`,
	Args: cobra.ExactArgs(2),
	RunE: runSize,
}

func init() {
	sizeCmd.Flags().BoolVar(&flagRelaxRegime, "relax-regime", false, "Relax the regime ceiling during an extreme-volatility window")
	addProviderFlags(sizeCmd.Flags())
}

func runSize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, _, closeAll, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	decision, err := engine.SizeTrade(ctx, args[0], args[1], flagRelaxRegime)
	if err != nil {
		return fmt.Errorf("size %s %s: %w", args[0], args[1], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
