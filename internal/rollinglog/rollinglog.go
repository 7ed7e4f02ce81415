// Package rollinglog provides a capacity-bounded history of aligned rows.
//
// A [Log] keeps the most recent rows in append order and evicts the oldest
// row once capacity is reached. Appends are O(1): rows live in a fixed-size
// ring and are never re-sorted. The log does not deduplicate timestamps;
// callers that append one row per poll tick get exactly one entry per tick.
//
// Every [Log.Reset] starts a new generation. A writer that read
// [Log.Generation] before slow work uses [Log.AppendIf] so rows produced
// before a reset never reappear after it.
package rollinglog

import (
	"sync"

	"github.com/jpalmerr/sensorboard/internal/merge"
)

// DefaultCapacity holds the last 50 rows plus the newest.
const DefaultCapacity = 51

// Log is a fixed-capacity FIFO of rows.
//
// Log is safe for concurrent use. In SensorBoard the poll scheduler is the
// only writer while HTTP handlers read snapshots via [Log.Rows].
type Log struct {
	mu    sync.RWMutex
	ring  []merge.Row
	head  int // index of the oldest row
	count int
	gen   uint64
}

// New creates an empty [Log] holding at most capacity rows.
// A capacity below 1 is treated as 1.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{ring: make([]merge.Row, capacity)}
}

// Append adds row at the tail, evicting the oldest row when full.
// The row is copied so later changes by the caller do not leak in.
func (l *Log) Append(row merge.Row) {
	row = row.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(row)
}

// AppendIf appends row only if no reset happened since gen was read from
// [Log.Generation]. It reports whether the row was appended.
func (l *Log) AppendIf(gen uint64, row merge.Row) bool {
	row = row.Clone()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return false
	}
	l.appendLocked(row)
	return true
}

func (l *Log) appendLocked(row merge.Row) {
	if l.count < len(l.ring) {
		l.ring[(l.head+l.count)%len(l.ring)] = row
		l.count++
		return
	}

	// full: overwrite the oldest slot and advance head
	l.ring[l.head] = row
	l.head = (l.head + 1) % len(l.ring)
}

// Rows returns a copy of the stored rows, oldest first.
func (l *Log) Rows() []merge.Row {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]merge.Row, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.ring[(l.head+i)%len(l.ring)].Clone()
	}
	return out
}

// Latest returns the most recently appended row.
// The boolean is false when the log is empty.
func (l *Log) Latest() (merge.Row, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.count == 0 {
		return merge.Row{}, false
	}
	return l.ring[(l.head+l.count-1)%len(l.ring)].Clone(), true
}

// Len returns the number of rows currently held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Cap returns the maximum number of rows the log holds.
func (l *Log) Cap() int {
	return len(l.ring)
}

// Generation returns the number of resets so far.
func (l *Log) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// Reset discards every row and starts a new generation.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	for i := range l.ring {
		l.ring[i] = merge.Row{}
	}
	l.head = 0
	l.count = 0
}
