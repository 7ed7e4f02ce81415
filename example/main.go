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

	"github.com/jpalmerr/sensorboard"
	"github.com/jpalmerr/sensorboard/example/mockapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start the simulated upstream (see mockapi)
	sim := mockapi.NewSimulator(nil, "Kitchen", "Garage", "Server room")
	sim.SetGenerating(true)
	go sim.Run(ctx, time.Second)
	go func() {
		if err := http.ListenAndServe(":4000", sim.Handler()); err != nil {
			slog.Error("mock api error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	kitchen, _ := sensorboard.NewSensor("sensor_1", sensorboard.WithLocation("Kitchen"))
	garage, _ := sensorboard.NewSensor("sensor_2", sensorboard.WithLocation("Garage"))
	server, _ := sensorboard.NewSensor("sensor_3", sensorboard.WithLocation("Server room"))

	board, err := sensorboard.New(
		sensorboard.WithBaseURL("http://localhost:4000"),
		sensorboard.WithSensors(kitchen, garage, server),
		sensorboard.WithPollingInterval(2*time.Second),
		sensorboard.WithTitle("SensorBoard Demo"),
		sensorboard.WithTickCallback(func(r sensorboard.TickResult) {
			for _, reading := range r.Readings {
				if reading.Level == sensorboard.LevelCritical {
					slog.Warn("critical temperature",
						"sensor", reading.SensorID,
						"location", reading.Location,
						"value", *reading.Value,
					)
				}
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create sensorboard", "error", err)
		os.Exit(1)
	}
	defer board.Close()

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   SensorBoard Demo                                    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Sensors: 3 simulated on :4000 (1 reading/s)         ║")
	fmt.Println("  ║   Metrics: http://localhost:8080/metrics              ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := board.Start(ctx); err != nil {
		slog.Error("sensorboard error", "error", err)
		os.Exit(1)
	}
}
