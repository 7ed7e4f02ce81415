package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorboard"
	"github.com/jpalmerr/sensorboard/config"
)

const oneShotTimeout = 30 * time.Second

// historyCmd prints the merged historical table.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the merged historical table",
	Long: `Fetch every sensor's historical records and print them merged into one
table, one row per timestamp and one column per sensor.

If any sensor cannot be read the command fails and prints no rows.

Example:
  sensorboard history -c config.yaml
  sensorboard history --base-url http://localhost:4000 --order desc
  sensorboard history -c config.yaml --format json`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	addUpstreamFlags(historyCmd)
	historyCmd.Flags().String("order", "asc", "row order: asc or desc")
	historyCmd.Flags().String("format", "table", "output format: table or json")
}

// addUpstreamFlags registers the flags shared by one-shot commands.
func addUpstreamFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file")
	cmd.Flags().String("base-url", "", "upstream API base URL (overrides config)")
}

// loadBoard builds a board from the optional config file and flag overrides.
func loadBoard(cmd *cobra.Command) (*sensorboard.Board, error) {
	var opts []sensorboard.Option

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		opts, err = config.BuildOptions(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build options: %w", err)
		}
	}

	if baseURL, _ := cmd.Flags().GetString("base-url"); baseURL != "" {
		opts = append(opts, sensorboard.WithBaseURL(baseURL))
	}

	// one-shot commands report errors on stderr through cobra, not the logger
	logger, err := newLogger(cmd, slog.LevelWarn)
	if err != nil {
		return nil, err
	}
	opts = append(opts, sensorboard.WithLogger(logger))

	return sensorboard.New(opts...)
}

func runHistory(cmd *cobra.Command, args []string) error {
	order, _ := cmd.Flags().GetString("order")
	if order != "asc" && order != "desc" {
		return fmt.Errorf("order must be asc or desc, got %q", order)
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("format must be table or json, got %q", format)
	}

	board, err := loadBoard(cmd)
	if err != nil {
		return err
	}
	defer board.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
	defer cancel()

	var histOpts []sensorboard.HistoryOption
	if order == "desc" {
		histOpts = append(histOpts, sensorboard.NewestFirst())
	}
	rows, err := board.History(ctx, histOpts...)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	ids := make([]string, 0, len(board.Sensors()))
	for _, s := range board.Sensors() {
		ids = append(ids, s.ID())
	}
	return writeTable(cmd.OutOrStdout(), ids, rows)
}

// writeTable prints rows as aligned columns. Absent values print as "-".
func writeTable(w io.Writer, ids []string, rows []sensorboard.Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprint(tw, "TIMESTAMP")
	for _, id := range ids {
		fmt.Fprintf(tw, "\t%s", id)
	}
	fmt.Fprintln(tw)

	for _, row := range rows {
		fmt.Fprint(tw, row.Timestamp)
		for _, id := range ids {
			v := row.Values[id]
			if v == nil {
				fmt.Fprint(tw, "\t-")
				continue
			}
			fmt.Fprintf(tw, "\t%s", strconv.FormatFloat(*v, 'f', -1, 64))
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}
