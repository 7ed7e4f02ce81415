// Package sensorboard provides an embeddable live monitor for a fleet of
// temperature sensors exposed by an upstream HTTP API.
//
// SensorBoard polls every known sensor on a fixed period, aligns the
// readings of each tick into one row keyed by timestamp, keeps the newest
// rows in a bounded rolling log, and serves a real-time dashboard. Historical
// records from all sensors can be merged on demand into a single table.
//
// # Quick Start
//
// Create a board and start it with graceful shutdown:
//
//	board, _ := sensorboard.New(sensorboard.WithBaseURL("http://localhost:4000"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// SensorBoard uses the functional options pattern for configuration:
//
//	s1, _ := sensorboard.NewSensor("sensor_1", sensorboard.WithLocation("Kitchen"))
//	s2, _ := sensorboard.NewSensor("sensor_2", sensorboard.WithLocation("Garage"))
//
//	board, err := sensorboard.New(
//	    sensorboard.WithSensors(s1, s2),
//	    sensorboard.WithPollingInterval(5 * time.Second),
//	    sensorboard.WithFetchTimeout(2 * time.Second),
//	    sensorboard.WithLogCapacity(51),
//	    sensorboard.WithThresholds(40, 50),
//	)
//
// # Alignment and failure
//
// Every row carries exactly one value per known sensor. A sensor that
// reported null, or had no record at a timestamp, has a nil value in that
// row. Absence is data, not failure.
//
// A poll cycle either reads every sensor or fails as a whole: if any sensor
// is unreachable, times out, or answers with a malformed body, the cycle
// reports an error matching [ErrPollCycleFailed], the rolling log is left
// untouched, and the next tick polls again. Use errors.Is with
// [ErrSourceUnavailable] and [ErrMalformedResponse] to tell causes apart.
//
// # Architecture
//
// SensorBoard consists of several internal packages (under internal/):
//
//   - internal/source: upstream HTTP reads, control triggers, typed errors
//   - internal/fetch: concurrent fail-fast reads across all sensors
//   - internal/merge: timestamp alignment of per-sensor records
//   - internal/rollinglog: bounded log of the newest aligned rows
//   - internal/poller: periodic scheduler with skip-if-in-flight
//   - internal/store: live snapshot with pub/sub for real-time updates
//   - internal/metrics: Prometheus collectors
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package sensorboard
