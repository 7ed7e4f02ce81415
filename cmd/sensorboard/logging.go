package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// Log formats accepted by --log-format.
const (
	logFormatJSON = "json"
	logFormatText = "text"
)

func init() {
	rootCmd.PersistentFlags().String("log-format", logFormatJSON, "log output: json or text")
}

// newLogger creates the CLI logger on stderr. JSON suits log collectors;
// text is colorized for terminals.
func newLogger(cmd *cobra.Command, level slog.Level) (*slog.Logger, error) {
	format, _ := cmd.Flags().GetString("log-format")
	switch format {
	case logFormatJSON:
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})), nil
	case logFormatText:
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})), nil
	default:
		return nil, fmt.Errorf("log format must be json or text, got %q", format)
	}
}
