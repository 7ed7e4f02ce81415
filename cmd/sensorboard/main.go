// Package main is the entry point for the sensorboard CLI.
//
// SensorBoard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	sensorboard serve -c config.yaml    # Start polling and the dashboard
//	sensorboard validate -c config.yaml # Validate configuration
//	sensorboard history -c config.yaml  # Print the merged historical table
//	sensorboard control start           # Trigger the upstream simulation
//	sensorboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "sensorboard",
	Short: "A live temperature sensor monitor",
	Long: `SensorBoard is a live monitor for a fleet of temperature sensors.

It polls the upstream sensor API at a fixed interval, aligns every tick's
readings into one row, keeps the newest rows in a rolling log, and streams
them to a web UI with Server-Sent Events.

Quick start:
  1. Create a config file (sensorboard.yaml)
  2. Run: sensorboard serve -c sensorboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 5s
  base_url: http://localhost:4000
  sensors:
    - id: sensor_1
      location: Kitchen`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this sensorboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sensorboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
