package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorboard"
	"github.com/jpalmerr/sensorboard/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts polling and the dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and the dashboard server",
	Long: `Start the SensorBoard poller and dashboard server.

The server will:
  - Load configuration from the specified YAML file
  - Poll every configured sensor immediately, then once per interval
  - Serve the dashboard UI, REST API and metrics on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  sensorboard serve -c config.yaml
  sensorboard serve --config /etc/sensorboard/config.yaml --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().Bool("debug", false, "log every tick")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	logger, err := newLogger(cmd, level)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"sensors", len(cfg.Sensors),
		"base_url", cfg.BaseURL,
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, sensorboard.WithLogger(logger))

	board, err := sensorboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create SensorBoard: %w", err)
	}
	defer board.Close()

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- board.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
