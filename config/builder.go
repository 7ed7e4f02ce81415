package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/sensorboard"
)

// BuildSensors converts the configured sensors into SDK Sensor values.
//
// Returns nil when no sensors are configured, letting the SDK apply its
// default sensor set.
func BuildSensors(cfg *Config) ([]sensorboard.Sensor, error) {
	if len(cfg.Sensors) == 0 {
		return nil, nil
	}

	sensors := make([]sensorboard.Sensor, 0, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		var opts []sensorboard.SensorOption
		if sc.Location != "" {
			opts = append(opts, sensorboard.WithLocation(sc.Location))
		}

		s, err := sensorboard.NewSensor(sc.ID, opts...)
		if err != nil {
			return nil, fmt.Errorf("sensors[%d] (%s): %w", i, sc.ID, err)
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// BuildOptions converts parsed configuration into SDK options.
//
// Only fields set in the file produce options; the rest keep SDK defaults.
// Callers append their own options (logger, callbacks) to the result.
func BuildOptions(cfg *Config) ([]sensorboard.Option, error) {
	sensors, err := BuildSensors(cfg)
	if err != nil {
		return nil, err
	}

	opts := []sensorboard.Option{
		sensorboard.WithPort(cfg.Port),
		sensorboard.WithPollingInterval(cfg.PollInterval.Duration()),
		sensorboard.WithBaseURL(cfg.BaseURL),
	}

	if cfg.Title != "" {
		opts = append(opts, sensorboard.WithTitle(cfg.Title))
	}
	if len(sensors) > 0 {
		opts = append(opts, sensorboard.WithSensors(sensors...))
	}
	if cfg.Timeout != 0 {
		opts = append(opts, sensorboard.WithFetchTimeout(cfg.Timeout.Duration()))
	}
	if cfg.LogCapacity != 0 {
		opts = append(opts, sensorboard.WithLogCapacity(cfg.LogCapacity))
	}
	if cfg.MaxConcurrency != 0 {
		opts = append(opts, sensorboard.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, sensorboard.WithHeaders(mapToKeyValuePairs(cfg.Headers)...))
	}
	if t := cfg.Thresholds; t != nil {
		opts = append(opts, sensorboard.WithThresholds(t.Warning, t.Critical))
	}
	if cfg.ControlRetries != 0 {
		opts = append(opts, sensorboard.WithControlRetries(cfg.ControlRetries))
	}
	if b := cfg.FailureBackoff; b != nil {
		opts = append(opts, sensorboard.WithFailureBackoff(b.Initial.Duration(), b.Max.Duration()))
	}

	return opts, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
