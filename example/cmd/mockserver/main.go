// Standalone mock sensor API for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/sensorboard control start --base-url http://localhost:4000
//	go run ./cmd/sensorboard serve -c example/config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/sensorboard/example/mockapi"
)

func main() {
	fmt.Println("Mock sensor API starting on :4000")
	fmt.Println("Generation is stopped until /api/sensors/start-generation is called")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := mockapi.NewSimulator(nil, "Kitchen", "Garage", "Server room")
	go sim.Run(ctx, time.Second)

	srv := &http.Server{Addr: ":4000", Handler: sim.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
