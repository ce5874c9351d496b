package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagCycles   int
	flagInterval time.Duration
)

// cycleCmd runs a fixed number of evaluation cycles and prints the
// reports as JSON lines.
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run evaluation cycles against the configured providers",
	Long: `Run one or more evaluation cycles: classify the volatility regime,
observe the account tier, evaluate exit rules for every open position,
and persist a registry snapshot when a store is configured.

Example usage:
  optiondesk cycle                       # one cycle, simulated providers
  optiondesk cycle -n 10 --interval 5s   # ten cycles, five seconds apart
  optiondesk cycle --index-ws ws://feed.example.com/vix`,
	RunE: runCycle,
}

func init() {
	cycleCmd.Flags().IntVarP(&flagCycles, "cycles", "n", 1, "Number of cycles to run")
	cycleCmd.Flags().DurationVar(&flagInterval, "interval", time.Second, "Delay between cycles")
	addProviderFlags(cycleCmd.Flags())
}

func runCycle(cmd *cobra.Command, args []string) error {
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

	enc := json.NewEncoder(os.Stdout)
	for i := 0; i < flagCycles; i++ {
		if i > 0 {
			time.Sleep(flagInterval)
		}
		report, err := engine.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i+1, err)
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
		if len(report.Failures) > 0 {
			log.Warn().Int("cycle", i+1).Strs("failures", report.Failures).Msg("cycle completed with failures")
		}
	}
	return nil
}
