package sensorboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jpalmerr/sensorboard/dashboard"
	"github.com/jpalmerr/sensorboard/internal/fetch"
	"github.com/jpalmerr/sensorboard/internal/merge"
	"github.com/jpalmerr/sensorboard/internal/metrics"
	"github.com/jpalmerr/sensorboard/internal/poller"
	"github.com/jpalmerr/sensorboard/internal/rollinglog"
	"github.com/jpalmerr/sensorboard/internal/server"
	"github.com/jpalmerr/sensorboard/internal/source"
	"github.com/jpalmerr/sensorboard/internal/store"
)

const (
	defaultBaseURL         = "http://localhost:4000"
	defaultPollingInterval = 5 * time.Second
	defaultFetchTimeout    = 10 * time.Second
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
	defaultControlRetries  = 3
)

// Errors reported by poll ticks and [Board.History]. Use errors.Is.
var (
	// ErrPollCycleFailed matches any cycle in which at least one sensor
	// could not be read. No partial data is produced for such a cycle.
	ErrPollCycleFailed = fetch.ErrPollCycleFailed

	// ErrSourceUnavailable matches a sensor read that failed in transport,
	// returned a non-2xx status or timed out.
	ErrSourceUnavailable = source.ErrSourceUnavailable

	// ErrMalformedResponse matches a sensor read whose body could not be
	// interpreted. A null reading is never malformed.
	ErrMalformedResponse = source.ErrMalformedResponse
)

// Board is the main orchestrator for sensor polling and dashboard serving.
//
// Board polls every known sensor on a fixed period, merges each tick's
// readings into one time-aligned row, keeps the newest rows in a bounded
// rolling log, and serves a real-time dashboard via HTTP. It is created using
// [New] with functional options and started with [Board.Start].
//
// The typical lifecycle is:
//
//	board, err := sensorboard.New(sensorboard.WithBaseURL("http://localhost:4000"))
//	if err != nil {
//	    slog.Error("failed to create sensorboard", "error", err)
//	    os.Exit(1)
//	}
//	defer board.Close()
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	board.Start(ctx) // blocks until context cancelled
//
// History, Log and the control triggers work without Start, which lets
// one-shot tools share the same configuration.
type Board struct {
	title           string
	baseURL         string
	sensors         []Sensor
	ids             []merge.SensorID
	locations       map[merge.SensorID]string
	pollingInterval time.Duration
	fetchTimeout    time.Duration
	port            int
	maxConcurrency  int
	thresholds      Thresholds
	logger          *slog.Logger
	tickCallbacks   []func(TickResult)
	backoffInitial  time.Duration
	backoffMax      time.Duration

	reader     *source.HTTPReader
	fetcher    *fetch.Fetcher
	controller *source.Controller
	log        *rollinglog.Log
	store      *store.MemoryStore
	metrics    *metrics.Metrics

	mu      sync.Mutex
	running bool

	// resetMu orders snapshot updates against ResetSensors
	resetMu sync.Mutex
}

// New creates a new [Board] instance with the given options.
//
// Defaults:
//   - Sensors: sensor_1, sensor_2, sensor_3
//   - Base URL: http://localhost:4000
//   - Polling interval: 5 seconds
//   - Fetch timeout: 10 seconds
//   - Rolling log capacity: 51 rows
//   - Port: 8080
//   - Max concurrency: 10
//   - Thresholds: warning 40, critical 50
//
// Returns an error if any option is invalid or a sensor id is repeated.
//
// Example:
//
//	board, err := sensorboard.New(
//	    sensorboard.WithBaseURL("https://sensors.example.com"),
//	    sensorboard.WithPollingInterval(10 * time.Second),
//	    sensorboard.WithPort(9090),
//	)
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		baseURL:         defaultBaseURL,
		pollingInterval: defaultPollingInterval,
		fetchTimeout:    defaultFetchTimeout,
		logCapacity:     rollinglog.DefaultCapacity,
		maxConcurrency:  defaultMaxConcurrency,
		port:            defaultPort,
		thresholds:      DefaultThresholds(),
		controlRetries:  defaultControlRetries,
		historyLimit:    source.DefaultHistoryLimit,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.sensors) == 0 {
		cfg.sensors = DefaultSensors()
	}

	// sensor ids key every row, so they must be unique
	ids := make([]merge.SensorID, 0, len(cfg.sensors))
	locations := make(map[merge.SensorID]string, len(cfg.sensors))
	seen := make(map[string]bool, len(cfg.sensors))
	for _, s := range cfg.sensors {
		if s.id == "" {
			return nil, errors.New("sensor must be created with NewSensor")
		}
		if seen[s.id] {
			return nil, fmt.Errorf("duplicate sensor id: %q", s.id)
		}
		seen[s.id] = true
		ids = append(ids, merge.SensorID(s.id))
		locations[merge.SensorID(s.id)] = s.location
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	reader := source.NewHTTPReader(cfg.baseURL, copyMap(cfg.headers), cfg.fetchTimeout,
		source.WithHistoryLimit(cfg.historyLimit))

	return &Board{
		title:           cfg.title,
		baseURL:         cfg.baseURL,
		sensors:         append([]Sensor(nil), cfg.sensors...),
		ids:             ids,
		locations:       locations,
		pollingInterval: cfg.pollingInterval,
		fetchTimeout:    cfg.fetchTimeout,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		thresholds:      cfg.thresholds,
		logger:          logger,
		tickCallbacks:   cfg.tickCallbacks,
		backoffInitial:  cfg.backoffInitial,
		backoffMax:      cfg.backoffMax,

		reader:     reader,
		fetcher:    fetch.NewFetcher(reader, ids, cfg.fetchTimeout, cfg.maxConcurrency),
		controller: source.NewController(cfg.baseURL, copyMap(cfg.headers), cfg.fetchTimeout, cfg.controlRetries),
		log:        rollinglog.New(cfg.logCapacity),
		store:      store.NewMemoryStore(),
		metrics:    metrics.New(),
	}, nil
}

// Start begins polling sensors and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - All sensors are polled immediately, then at the configured interval
//   - Each successful tick appends one aligned row to the rolling log
//   - The HTTP server starts on the configured port
//   - The dashboard is available at http://localhost:<port>
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or the board is already running.
func (b *Board) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("board is already running")
	}
	b.running = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	b.logger.Info("sensorboard starting", "sensor_count", len(b.ids), "upstream", b.baseURL)
	b.logger.Info("polling configured", "interval", b.pollingInterval.String(), "log_capacity", b.log.Cap())
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	// start the polling scheduler
	scheduler := poller.NewScheduler(b.fetcher, b.ids, b.log, b.pollingInterval, b.logger)
	if b.backoffInitial > 0 {
		scheduler.SetBackoff(b.newBackoff())
	}
	scheduler.Start(ctx)

	// track the results consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for tick := range scheduler.Results() {
			b.handleTick(tick)
		}
	}()

	// cleanup function ensures scheduler is stopped and all results are processed
	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()        // wait for all results to be processed
	}

	// start the HTTP server
	httpServer := server.NewServer(b.store, boardAPI{b}, b.port, dashboard.Assets, b.title, b.metrics.Handler(), b.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	b.logger.Info("sensorboard stopped")
	return nil
}

// newBackoff builds the failure backoff policy. It never gives up.
func (b *Board) newBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.backoffInitial
	eb.MaxInterval = b.backoffMax
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// handleTick applies one tick to the snapshot and metrics, then runs the
// tick callbacks.
func (b *Board) handleTick(tick poller.Tick) {
	if tick.Skipped {
		b.metrics.RecordSkip(tick.SkipReason)
		b.logger.Debug("tick skipped", "tick", tick.ID, "reason", tick.SkipReason)
		b.runCallbacks(b.toTickResult(tick, nil))
		return
	}

	b.metrics.RecordCycle(tick.Err == nil, tick.Latency.Seconds())
	b.metrics.SetLogRows(b.log.Len())

	// store update first (callbacks fire after data is persisted)
	readings, current := b.applyTick(tick)
	if !current {
		b.logger.Debug("discarding tick from before reset", "tick", tick.ID)
		return
	}

	b.runCallbacks(b.toTickResult(tick, readings))
}

// applyTick records a polled tick in the snapshot store. It reports false,
// leaving the store untouched, when the tick predates a reset.
func (b *Board) applyTick(tick poller.Tick) ([]Reading, bool) {
	b.resetMu.Lock()
	defer b.resetMu.Unlock()

	if tick.Generation != b.log.Generation() {
		return nil, false
	}

	if tick.Err != nil {
		b.store.RecordFailure(tick.Err.Error(), tick.StartedAt, tick.Latency)
		b.recordSourceFailures(tick.Err)
		b.logger.Warn("poll cycle failed",
			"tick", tick.ID,
			"latency_ms", tick.Latency.Milliseconds(),
			"error", tick.Err.Error(),
		)
		return nil, true
	}

	readings := b.classify(tick.Readings)
	b.store.RecordSuccess(toSensorStatuses(readings), string(tick.Timestamp), tick.StartedAt, tick.Latency)
	for _, r := range readings {
		if r.Value != nil {
			b.metrics.SetSensorValue(r.SensorID, *r.Value, true)
		} else {
			b.metrics.SetSensorValue(r.SensorID, 0, false)
		}
	}
	b.logger.Debug("poll cycle completed",
		"tick", tick.ID,
		"timestamp", string(tick.Timestamp),
		"latency_ms", tick.Latency.Milliseconds(),
		"log_rows", b.log.Len(),
	)
	return readings, true
}

// recordSourceFailures counts each failed sensor of a cycle.
func (b *Board) recordSourceFailures(err error) {
	var pcf *fetch.PollCycleFailedError
	if !errors.As(err, &pcf) {
		return
	}
	for _, f := range pcf.Failures {
		b.metrics.RecordSourceFailure(string(f.SensorID), source.Kind(f.Err))
		b.logger.Debug("sensor read failed", "sensor", string(f.SensorID), "error", f.Err.Error())
	}
}

// classify converts upstream readings to public readings with levels.
func (b *Board) classify(in []source.Reading) []Reading {
	out := make([]Reading, len(in))
	for i, r := range in {
		location := r.Location
		if location == "" {
			location = b.locations[r.SensorID]
		}
		value := r.Value.Ptr()
		out[i] = Reading{
			SensorID: string(r.SensorID),
			Location: location,
			Value:    value,
			Level:    b.thresholds.Classify(value),
		}
	}
	return out
}

func (b *Board) runCallbacks(result TickResult) {
	for _, cb := range b.tickCallbacks {
		invokeCallbackSafe(cb, result, b.logger)
	}
}

func (b *Board) toTickResult(tick poller.Tick, readings []Reading) TickResult {
	result := TickResult{
		ID:         tick.ID,
		Timestamp:  string(tick.Timestamp),
		StartedAt:  tick.StartedAt,
		Latency:    tick.Latency,
		Readings:   readings,
		Err:        tick.Err,
		Skipped:    tick.Skipped,
		SkipReason: tick.SkipReason,
	}
	if tick.OK() {
		result.Row = toRow(tick.Row)
	}
	return result
}

func toSensorStatuses(readings []Reading) []store.SensorStatus {
	out := make([]store.SensorStatus, len(readings))
	for i, r := range readings {
		out[i] = store.SensorStatus{
			ID:       r.SensorID,
			Location: r.Location,
			Value:    r.Value,
			Level:    r.Level.String(),
		}
	}
	return out
}

// toRow converts an aligned row to its public form.
func toRow(r merge.Row) Row {
	values := make(map[string]*float64, len(r.Values))
	for id, v := range r.Values {
		values[string(id)] = v.Ptr()
	}
	return Row{Timestamp: string(r.Timestamp), Values: values}
}

func toRows(rows []merge.Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = toRow(r)
	}
	return out
}

// HistoryOption adjusts a [Board.History] call.
type HistoryOption func(*historyConfig)

type historyConfig struct {
	newestFirst bool
}

// NewestFirst returns history rows descending by timestamp, as charts
// plotting the latest readings on the left expect.
func NewestFirst() HistoryOption {
	return func(cfg *historyConfig) {
		cfg.newestFirst = true
	}
}

// History fetches every sensor's historical records and merges them into one
// table, ascending by timestamp unless [NewestFirst] is given, with one value
// per known sensor per row.
//
// The table is recomputed on every call. If any sensor cannot be read the
// whole call fails with an error matching [ErrPollCycleFailed] and no rows.
func (b *Board) History(ctx context.Context, opts ...HistoryOption) ([]Row, error) {
	var cfg historyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	table, err := b.history(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.newestFirst {
		table = table.Reversed()
	}
	return toRows(table), nil
}

func (b *Board) history(ctx context.Context) (merge.Table, error) {
	entries, err := b.fetcher.History(ctx)
	if err != nil {
		return nil, err
	}
	return merge.Merge(b.ids, entries), nil
}

// Log returns the rolling log, oldest row first.
func (b *Board) Log() []Row {
	return toRows(b.log.Rows())
}

// StartGeneration asks the upstream simulation to start producing readings.
func (b *Board) StartGeneration(ctx context.Context) error {
	return b.controller.Start(ctx)
}

// StopGeneration asks the upstream simulation to stop producing readings.
func (b *Board) StopGeneration(ctx context.Context) error {
	return b.controller.Stop(ctx)
}

// ResetSensors cleans up and resets the upstream sensors, then clears the
// rolling log and the live snapshot. A poll still in flight when the reset
// happens is discarded.
func (b *Board) ResetSensors(ctx context.Context) error {
	if err := b.controller.Reset(ctx); err != nil {
		return err
	}

	b.resetMu.Lock()
	b.log.Reset()
	b.store.Reset()
	b.resetMu.Unlock()

	b.metrics.SetLogRows(0)
	return nil
}

// Close releases idle upstream connections. The board remains usable.
func (b *Board) Close() {
	b.reader.Close()
	b.controller.Close()
}

// Sensors returns a copy of the known sensor set.
func (b *Board) Sensors() []Sensor {
	cp := make([]Sensor, len(b.sensors))
	copy(cp, b.sensors)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// PollingInterval returns the configured interval between ticks.
func (b *Board) PollingInterval() time.Duration {
	return b.pollingInterval
}

// LogCapacity returns the rolling log capacity.
func (b *Board) LogCapacity() int {
	return b.log.Cap()
}

// Thresholds returns the configured classification thresholds.
func (b *Board) Thresholds() Thresholds {
	return b.thresholds
}

// boardAPI exposes a Board to the HTTP server.
type boardAPI struct {
	b *Board
}

func (a boardAPI) Rows() []merge.Row {
	return a.b.log.Rows()
}

func (a boardAPI) Latest() (merge.Row, bool) {
	return a.b.log.Latest()
}

func (a boardAPI) History(ctx context.Context) (merge.Table, error) {
	return a.b.history(ctx)
}

func (a boardAPI) Control(ctx context.Context, action string) error {
	switch action {
	case server.ActionStart:
		return a.b.StartGeneration(ctx)
	case server.ActionStop:
		return a.b.StopGeneration(ctx)
	case server.ActionReset:
		return a.b.ResetSensors(ctx)
	default:
		return fmt.Errorf("unknown control action %q", action)
	}
}

// invokeCallbackSafe calls a tick callback with panic recovery.
// Panics are logged with the tick's correlation ID but do not propagate.
func invokeCallbackSafe(cb func(TickResult), result TickResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tick callback panicked",
				"panic", r,
				"tick", result.ID,
			)
		}
	}()
	cb(result)
}
