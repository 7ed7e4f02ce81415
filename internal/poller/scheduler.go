package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jpalmerr/sensorboard/internal/merge"
	"github.com/jpalmerr/sensorboard/internal/rollinglog"
	"github.com/jpalmerr/sensorboard/internal/source"
)

// Skip reasons reported in [Tick.SkipReason].
const (
	SkipInFlight = "in_flight"
	SkipBackoff  = "backoff"
)

const resultsBuffer = 16

// Fetcher reads every sensor's live value for one tick.
// [fetch.Fetcher] implements it.
type Fetcher interface {
	Latest(ctx context.Context, at merge.Timestamp) ([]merge.Entry, []source.Reading, error)
}

// Tick holds the outcome of one poll cycle.
//
// A successful tick carries the aligned row that was appended to the rolling
// log. A failed tick carries Err and left the log untouched. A skipped tick
// never started a poll.
type Tick struct {
	// ID correlates log lines and callbacks for one tick.
	ID string

	// StartedAt is when the tick fired.
	StartedAt time.Time

	// Timestamp stamps every reading of the tick and keys its row.
	Timestamp merge.Timestamp

	// Generation is the rolling log generation when the tick fired. A tick
	// whose generation is older than the log's predates a reset.
	Generation uint64

	// Row is the appended row. Zero unless the tick succeeded.
	Row merge.Row

	// Readings are the per-sensor live readings in sensor order.
	Readings []source.Reading

	// Latency is the duration of the fetch and merge.
	Latency time.Duration

	// Err is the cycle error, usually a *fetch.PollCycleFailedError.
	Err error

	// Skipped is true when the tick fired but no poll was started.
	Skipped bool

	// SkipReason is SkipInFlight or SkipBackoff for skipped ticks.
	SkipReason string
}

// OK reports whether the tick polled successfully.
func (t Tick) OK() bool {
	return !t.Skipped && t.Err == nil
}

// Scheduler runs fetch, merge and append on a fixed period.
//
// The scheduler polls immediately on start, then once per interval. A tick
// that fires while the previous poll is still running is skipped, so at most
// one read per sensor is in flight and rows are appended in tick order.
// Outcomes are emitted on [Scheduler.Results].
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	fetcher  Fetcher
	sensors  []merge.SensorID
	log      *rollinglog.Log
	interval time.Duration
	backoff  backoff.BackOff
	results  chan Tick
	logger   *slog.Logger
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
	holdUntil time.Time

	inFlight atomic.Bool
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - fetcher: reads every sensor for one tick
//   - sensors: the known sensor set; every row carries exactly these keys
//   - log: rolling log that receives one row per successful tick
//   - interval: time between ticks
//   - logger: logger for scheduler events (panic recovery)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(fetcher Fetcher, sensors []merge.SensorID, log *rollinglog.Log, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		fetcher:  fetcher,
		sensors:  append([]merge.SensorID(nil), sensors...),
		log:      log,
		interval: interval,
		results:  make(chan Tick, resultsBuffer),
		logger:   logger,
		now:      time.Now,
	}
}

// SetBackoff enables failure backoff. After a failed tick, ticks are skipped
// until the delay from b has passed; a successful tick resets b.
// Must be called before [Scheduler.Start].
func (s *Scheduler) SetBackoff(b backoff.BackOff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backoff = b
}

// Results returns a receive-only channel that emits one [Tick] per tick.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed.
func (s *Scheduler) Results() <-chan Tick {
	return s.results
}

// InFlight reports whether a poll is currently running.
func (s *Scheduler) InFlight() bool {
	return s.inFlight.Load()
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The scheduler will:
//  1. Poll all sensors immediately
//  2. Tick every interval, skipping ticks while a poll is in flight
//  3. Continue until [Scheduler.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	pollCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		// pollers hold wg too, so the channel closes only after the last one exits
		defer func() {
			go func() {
				s.wg.Wait()
				s.closeOnce.Do(func() { close(s.results) })
			}()
		}()

		s.tick(pollCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.tick(pollCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop cancels the scheduler's context and blocks until:
//   - The polling loop exits
//   - Any in-flight poll returns; its result is discarded
//   - The results channel is closed
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.wg.Wait()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// tick starts a poll unless one is already running or backoff holds.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	t := Tick{
		ID:         uuid.NewString(),
		StartedAt:  now,
		Timestamp:  merge.TimestampOf(now),
		Generation: s.log.Generation(),
	}

	s.mu.Lock()
	held := now.Before(s.holdUntil)
	s.mu.Unlock()

	switch {
	case held:
		t.Skipped, t.SkipReason = true, SkipBackoff
	case !s.inFlight.CompareAndSwap(false, true):
		t.Skipped, t.SkipReason = true, SkipInFlight
	}

	if t.Skipped {
		s.emit(ctx, t)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.poll(ctx, t)
	}()
}

// poll runs one fetch-merge-append cycle.
func (s *Scheduler) poll(ctx context.Context, t Tick) {
	entries, readings, err := s.safeFetch(ctx, t)
	t.Latency = s.now().Sub(t.StartedAt)

	if err == nil {
		t.Row = s.alignedRow(t.Timestamp, entries)
		t.Readings = readings
	}
	t.Err = err

	s.mu.Lock()
	if s.stopped || ctx.Err() != nil {
		// completed after stop: not appended, not emitted
		s.mu.Unlock()
		return
	}
	if err == nil {
		if !s.log.AppendIf(t.Generation, t.Row) {
			// the log was reset while this poll ran
			s.mu.Unlock()
			s.logger.Debug("discarding poll from before reset", "tick", t.ID)
			return
		}
		if s.backoff != nil {
			s.backoff.Reset()
			s.holdUntil = time.Time{}
		}
	} else if s.backoff != nil {
		if d := s.backoff.NextBackOff(); d != backoff.Stop {
			s.holdUntil = s.now().Add(d)
		}
	}
	s.mu.Unlock()

	s.emit(ctx, t)
}

// alignedRow merges one tick's entries into its single row.
func (s *Scheduler) alignedRow(at merge.Timestamp, entries []merge.Entry) merge.Row {
	table := merge.Group(s.sensors, entries)
	if len(table) == 1 {
		return table[0]
	}
	// no known sensors, or every entry ignored
	row := merge.Row{Timestamp: at, Values: make(map[merge.SensorID]merge.Value, len(s.sensors))}
	for _, id := range s.sensors {
		row.Values[id] = merge.Absent
	}
	return row
}

func (s *Scheduler) emit(ctx context.Context, t Tick) {
	select {
	case s.results <- t:
	case <-ctx.Done():
	}
}

// safeFetch calls the fetcher with panic recovery.
// A panic is logged with its stack and a correlation ID and reported as the
// tick's error so the loop keeps running.
func (s *Scheduler) safeFetch(ctx context.Context, t Tick) (entries []merge.Entry, readings []source.Reading, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("fetch panic",
				"correlation_id", t.ID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			entries, readings = nil, nil
			err = fmt.Errorf("fetch panic (correlation_id: %s)", t.ID)
		}
	}()
	return s.fetcher.Latest(ctx, t.Timestamp)
}
