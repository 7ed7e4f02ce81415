package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorboard"
	"github.com/jpalmerr/sensorboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a SensorBoard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sensorboard validate -c config.yaml
  sensorboard validate --config /etc/sensorboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// build the board too so option-level checks run
	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	board, err := sensorboard.New(opts...)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", board.Port())
	fmt.Fprintf(out, "  Poll interval: %s\n", board.PollingInterval())
	fmt.Fprintf(out, "  Upstream:      %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "  Log capacity:  %d\n", board.LogCapacity())
	fmt.Fprintf(out, "  Sensors:       %d\n", len(board.Sensors()))

	return nil
}
