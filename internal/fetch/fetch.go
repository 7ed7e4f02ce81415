// Package fetch fans sensor reads out across every known sensor and joins
// them under a fail-fast policy.
//
// Each sensor's outcome is kept as a tagged [Result]: either records (which
// may hold absent readings) or an error. A cycle succeeds only when every
// sensor succeeds; otherwise the caller gets a [PollCycleFailedError] and no
// partial data.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/sensorboard/internal/merge"
	"github.com/jpalmerr/sensorboard/internal/source"
)

// ErrPollCycleFailed matches every [PollCycleFailedError].
var ErrPollCycleFailed = errors.New("poll cycle failed")

// Reader reads one sensor's data. [source.HTTPReader] implements it.
type Reader interface {
	Records(ctx context.Context, id merge.SensorID) ([]merge.RawRecord, error)
	Latest(ctx context.Context, id merge.SensorID) (source.Reading, error)
}

// Result is one sensor's tagged outcome. Err is nil on success.
type Result struct {
	SensorID merge.SensorID
	Records  []merge.RawRecord
	Reading  source.Reading
	Err      error
}

// OK reports whether the read succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// PollCycleFailedError reports a cycle aborted because at least one sensor
// could not be read. Failures holds only the failed results, in sensor order.
type PollCycleFailedError struct {
	Failures []Result
}

func (e *PollCycleFailedError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Err.Error()
	}
	return fmt.Sprintf("poll cycle failed (%d sensor(s)): %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes every per-sensor error to errors.Is and errors.As.
func (e *PollCycleFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// Is makes errors.Is(err, ErrPollCycleFailed) hold.
func (e *PollCycleFailedError) Is(target error) bool {
	return target == ErrPollCycleFailed
}

// Fetcher reads every known sensor concurrently.
type Fetcher struct {
	reader         Reader
	sensors        []merge.SensorID
	timeout        time.Duration
	maxConcurrency int
}

// NewFetcher creates a [Fetcher].
//
// Parameters:
//   - reader: per-sensor data source
//   - sensors: the fixed, known sensor set
//   - timeout: bound on each sensor read (0 means no extra bound)
//   - maxConcurrency: maximum reads in flight (values below 1 mean unlimited)
func NewFetcher(reader Reader, sensors []merge.SensorID, timeout time.Duration, maxConcurrency int) *Fetcher {
	return &Fetcher{
		reader:         reader,
		sensors:        append([]merge.SensorID(nil), sensors...),
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
	}
}

// History reads every sensor's historical records and flattens them, in
// sensor order, into merge input.
func (f *Fetcher) History(ctx context.Context) ([]merge.Entry, error) {
	results := f.fanOut(ctx, func(ctx context.Context, id merge.SensorID) Result {
		records, err := f.reader.Records(ctx, id)
		return Result{SensorID: id, Records: records, Err: err}
	})
	if err := failFast(results); err != nil {
		return nil, err
	}

	var entries []merge.Entry
	for _, r := range results {
		for _, rec := range r.Records {
			entries = append(entries, merge.Entry{SensorID: r.SensorID, Record: rec})
		}
	}
	return entries, nil
}

// Latest reads every sensor's live value. All entries are stamped with at,
// so they merge into exactly one row. The readings are returned in sensor
// order for display.
func (f *Fetcher) Latest(ctx context.Context, at merge.Timestamp) ([]merge.Entry, []source.Reading, error) {
	results := f.fanOut(ctx, func(ctx context.Context, id merge.SensorID) Result {
		reading, err := f.reader.Latest(ctx, id)
		return Result{SensorID: id, Reading: reading, Err: err}
	})
	if err := failFast(results); err != nil {
		return nil, nil, err
	}

	entries := make([]merge.Entry, len(results))
	readings := make([]source.Reading, len(results))
	for i, r := range results {
		entries[i] = merge.Entry{
			SensorID: r.SensorID,
			Record:   merge.RawRecord{Timestamp: at, Value: r.Reading.Value},
		}
		readings[i] = r.Reading
		readings[i].SensorID = r.SensorID
	}
	return entries, readings, nil
}

// fanOut runs read once per sensor and waits for every call to settle.
// Failures do not cancel sibling reads; each sensor's outcome is recorded.
func (f *Fetcher) fanOut(ctx context.Context, read func(context.Context, merge.SensorID) Result) []Result {
	results := make([]Result, len(f.sensors))

	var g errgroup.Group
	if f.maxConcurrency > 0 {
		g.SetLimit(f.maxConcurrency)
	}

	for i, id := range f.sensors {
		g.Go(func() error {
			readCtx := ctx
			if f.timeout > 0 {
				var cancel context.CancelFunc
				readCtx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}

			r := read(readCtx, id)
			if r.Err != nil && !isSourceError(r.Err) {
				// anything the reader did not classify is an infrastructure failure
				r.Err = &source.SourceUnavailableError{SensorID: id, Err: r.Err}
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func isSourceError(err error) bool {
	return errors.Is(err, source.ErrSourceUnavailable) || errors.Is(err, source.ErrMalformedResponse)
}

// failFast returns a [PollCycleFailedError] if any result failed.
func failFast(results []Result) error {
	var failures []Result
	for _, r := range results {
		if !r.OK() {
			failures = append(failures, r)
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &PollCycleFailedError{Failures: failures}
}
