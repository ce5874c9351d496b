package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagPretty bool
)

// rootCmd is the base command for the optiondesk CLI.
var rootCmd = &cobra.Command{
	Use:   "optiondesk",
	Short: "Options risk-sizing and position-lifecycle engine",
	Long: `optiondesk is the risk core of a systematic options trading framework:
regime-aware position sizing, multi-leg position tracking down to the
individual leg, portfolio concentration limits, and a prioritized
exit-rule engine evaluated once per cycle.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		if flagPretty {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config/risk.yaml", "Path to the risk configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "Human-readable log output")

	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
