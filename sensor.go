package sensorboard

import (
	"errors"
	"strings"
)

// Sensor identifies one temperature sensor exposed by the upstream API.
//
// Sensor is immutable after creation via [NewSensor]. The ID selects the
// upstream endpoints to read; the location is a display fallback used when
// the upstream snapshot does not report one.
type Sensor struct {
	id       string
	location string
}

// ID returns the sensor's upstream identifier (e.g., "sensor_1").
func (s Sensor) ID() string {
	return s.id
}

// Location returns the configured display location, or "" if none was set.
func (s Sensor) Location() string {
	return s.location
}

// NewSensor creates a [Sensor] with the given upstream identifier and options.
//
// Returns an error if the id is empty or contains a slash or whitespace.
//
// Example:
//
//	s, err := sensorboard.NewSensor("sensor_1",
//	    sensorboard.WithLocation("Greenhouse"),
//	)
func NewSensor(id string, opts ...SensorOption) (Sensor, error) {
	if id == "" {
		return Sensor{}, errors.New("sensor id cannot be empty")
	}
	if strings.ContainsAny(id, "/ \t\n") {
		return Sensor{}, errors.New("sensor id cannot contain slashes or whitespace")
	}

	cfg := &sensorConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Sensor{}, err
		}
	}

	return Sensor{id: id, location: cfg.location}, nil
}

// DefaultSensors returns the upstream's stock sensor set: sensor_1, sensor_2
// and sensor_3.
func DefaultSensors() []Sensor {
	return []Sensor{{id: "sensor_1"}, {id: "sensor_2"}, {id: "sensor_3"}}
}

// sensorConfig holds mutable state during sensor construction.
type sensorConfig struct {
	location string
}

// SensorOption is a function that configures a [Sensor] during construction.
type SensorOption func(*sensorConfig) error

// WithLocation sets the sensor's display location.
//
// Returns an error if the location is blank.
func WithLocation(location string) SensorOption {
	return func(cfg *sensorConfig) error {
		if strings.TrimSpace(location) == "" {
			return errors.New("location cannot be blank")
		}
		cfg.location = location
		return nil
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
