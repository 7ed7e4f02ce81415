package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// controlCmd triggers the upstream simulation.
var controlCmd = &cobra.Command{
	Use:   "control start|stop|reset",
	Short: "Trigger the upstream sensor simulation",
	Long: `Send a control trigger to the upstream sensor API.

  start - begin generating sensor data
  stop  - stop generating sensor data
  reset - clean up stored data, then reset every sensor

Failed triggers are retried on transport errors and 5xx responses.

Example:
  sensorboard control start --base-url http://localhost:4000
  sensorboard control reset -c config.yaml`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"start", "stop", "reset"},
	RunE:      runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)

	addUpstreamFlags(controlCmd)
}

func runControl(cmd *cobra.Command, args []string) error {
	board, err := loadBoard(cmd)
	if err != nil {
		return err
	}
	defer board.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
	defer cancel()

	action := args[0]
	switch action {
	case "start":
		err = board.StartGeneration(ctx)
	case "stop":
		err = board.StopGeneration(ctx)
	case "reset":
		err = board.ResetSensors(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", action)
	return nil
}
