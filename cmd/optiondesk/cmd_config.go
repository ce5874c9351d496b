package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd is the parent for configuration inspection.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the risk configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration tables",
	Long: `Validate the regime, tier, correlation and strategy tables. A table
with gaps or overlapping bounds fails here, before any trading decision
could be made against it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Printf("configuration valid: %d regimes, %d tiers, %d correlation groups, %d strategies\n",
			len(cfg.Regimes.Bands), len(cfg.Tiers.Tiers), len(cfg.Correlation.Groups), len(cfg.Strategies))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
