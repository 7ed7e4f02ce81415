package store

import (
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore holds a single snapshot with a publish-subscribe mechanism for
// real-time updates. Each recorded tick replaces or amends the snapshot.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type MemoryStore struct {
	mu          sync.RWMutex
	status      Status
	subscribers map[chan Status]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		status:      Status{Sensors: []SensorStatus{}},
		subscribers: make(map[chan Status]struct{}),
	}
}

// RecordSuccess stores a successful tick and notifies all subscribers.
//
// The sensor list is copied. AllDown is derived from it: true when the list
// is non-empty and every value is nil.
func (m *MemoryStore) RecordSuccess(sensors []SensorStatus, timestamp string, at time.Time, latency time.Duration) {
	copied := copySensors(sensors)

	allDown := len(copied) > 0
	for _, s := range copied {
		if s.Value != nil {
			allDown = false
			break
		}
	}

	m.mu.Lock()
	m.status = Status{
		Sensors:       copied,
		Timestamp:     timestamp,
		CheckedAt:     at,
		LastAttemptAt: at,
		LatencyMs:     latency.Milliseconds(),
		AllDown:       allDown,
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
}

// RecordFailure records a failed tick and notifies all subscribers.
//
// The last good readings stay in place so the dashboard can keep showing
// them alongside the error indicator.
func (m *MemoryStore) RecordFailure(err string, at time.Time, latency time.Duration) {
	m.mu.Lock()
	m.status.Error = &err
	m.status.LastAttemptAt = at
	m.status.LatencyMs = latency.Milliseconds()
	m.status.ConsecutiveFailures++
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
}

// Current returns a copy of the current snapshot.
func (m *MemoryStore) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Reset clears the snapshot and notifies all subscribers.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	m.status = Status{Sensors: []SensorStatus{}}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snapshot)
}

// snapshotLocked copies the snapshot. Caller must hold mu.
func (m *MemoryStore) snapshotLocked() Status {
	s := m.status
	s.Sensors = copySensors(m.status.Sensors)
	if m.status.Error != nil {
		msg := *m.status.Error
		s.Error = &msg
	}
	return s
}

func copySensors(in []SensorStatus) []SensorStatus {
	out := make([]SensorStatus, len(in))
	for i, s := range in {
		if s.Value != nil {
			v := *s.Value
			s.Value = &v
		}
		out[i] = s
	}
	return out
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Status {
	ch := make(chan Status, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Status) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the message
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(status Status) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
