package store

import "time"

// SensorStatus is one sensor's entry in the live snapshot.
type SensorStatus struct {
	// ID is the sensor identifier.
	ID string `json:"id"`

	// Location is the upstream's display location, if any.
	Location string `json:"location"`

	// Value is the latest reading. nil means the sensor reported no value.
	Value *float64 `json:"value"`

	// Level is the classification of Value (e.g., "normal", "offline").
	Level string `json:"level"`
}

// Status is the current live snapshot served to the dashboard.
//
// Status is the storage representation of the latest poll, optimized for
// JSON serialization (used by the REST API and SSE). It is decoupled from
// the poller's internal types to allow independent evolution.
type Status struct {
	// Sensors holds the latest successful readings in sensor order.
	Sensors []SensorStatus `json:"sensors"`

	// Timestamp keys the row appended by the latest successful tick.
	Timestamp string `json:"timestamp"`

	// CheckedAt is when the latest successful tick fired.
	CheckedAt time.Time `json:"checked_at"`

	// LastAttemptAt is when the latest polled tick fired, successful or not.
	LastAttemptAt time.Time `json:"last_attempt_at"`

	// LatencyMs is the latest tick's poll latency in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// Error is the latest tick's failure. nil when the latest tick succeeded.
	// On failure the previous Sensors are kept and shown as stale.
	Error *string `json:"error"`

	// ConsecutiveFailures counts failed ticks since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// AllDown is true when every sensor in the snapshot reported no value.
	AllDown bool `json:"all_down"`
}

// Store defines the interface for storing and subscribing to snapshot updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// RecordSuccess replaces the snapshot with a successful tick's readings,
	// clears the error and notifies all subscribers.
	RecordSuccess(sensors []SensorStatus, timestamp string, at time.Time, latency time.Duration)

	// RecordFailure keeps the previous readings, records the error and
	// notifies all subscribers.
	RecordFailure(err string, at time.Time, latency time.Duration)

	// Current returns a copy of the current snapshot.
	Current() Status

	// Reset clears the snapshot back to its initial empty state.
	Reset()

	// Subscribe returns a channel that receives snapshot updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Status

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Status)
}
