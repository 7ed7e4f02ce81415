package sensorboard

import (
	"fmt"
	"time"
)

// Level classifies a temperature reading for display.
//
// Level is a string type so it serializes and logs readably while the
// defined constants keep it type safe.
type Level string

const (
	// LevelOffline indicates the sensor reported no value.
	LevelOffline Level = "offline"

	// LevelNormal indicates a value below the warning threshold.
	LevelNormal Level = "normal"

	// LevelWarning indicates a value at or above the warning threshold.
	LevelWarning Level = "warning"

	// LevelCritical indicates a value at or above the critical threshold.
	LevelCritical Level = "critical"
)

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// Default temperature thresholds in degrees Celsius.
const (
	DefaultWarningThreshold  = 40.0
	DefaultCriticalThreshold = 50.0
)

// Thresholds are the temperature bounds used to classify readings.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// DefaultThresholds returns warning 40°C and critical 50°C.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: DefaultWarningThreshold, Critical: DefaultCriticalThreshold}
}

// Validate returns an error unless Warning is below Critical.
func (t Thresholds) Validate() error {
	if t.Warning >= t.Critical {
		return fmt.Errorf("warning threshold (%g) must be below critical threshold (%g)", t.Warning, t.Critical)
	}
	return nil
}

// Classify returns the [Level] of a reading. A nil value is offline.
func (t Thresholds) Classify(value *float64) Level {
	switch {
	case value == nil:
		return LevelOffline
	case *value >= t.Critical:
		return LevelCritical
	case *value >= t.Warning:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Reading is one sensor's live value from a successful tick.
type Reading struct {
	// SensorID is the upstream sensor identifier.
	SensorID string

	// Location is the display location.
	Location string

	// Value is the reported temperature. nil means the sensor reported none.
	Value *float64

	// Level is the classification of Value.
	Level Level
}

// Row is one time-aligned row: a timestamp and one value per known sensor.
// A nil value means that sensor has no reading at this timestamp.
type Row struct {
	Timestamp string              `json:"timestamp"`
	Values    map[string]*float64 `json:"values"`
}

// TickResult holds the outcome of one poll tick.
//
// A successful tick carries the row appended to the rolling log and the
// classified readings. A failed tick carries Err (matching
// [ErrPollCycleFailed]) and left the rolling log untouched. A skipped tick
// never polled.
type TickResult struct {
	// ID is the tick's correlation ID, also present in log lines.
	ID string

	// Timestamp keys the tick's row.
	Timestamp string

	// StartedAt is when the tick fired.
	StartedAt time.Time

	// Latency is the time spent fetching and merging.
	Latency time.Duration

	// Row is the appended row. Zero unless the tick succeeded.
	Row Row

	// Readings holds each sensor's classified reading, in sensor order.
	Readings []Reading

	// Err is the cycle error, if any.
	Err error

	// Skipped is true when the tick fired without polling.
	Skipped bool

	// SkipReason is "in_flight" or "backoff" for skipped ticks.
	SkipReason string
}

// OK reports whether the tick polled successfully.
func (r TickResult) OK() bool {
	return !r.Skipped && r.Err == nil
}
