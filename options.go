package sensorboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	title           string
	baseURL         string
	sensors         []Sensor
	headers         map[string]string
	pollingInterval time.Duration
	fetchTimeout    time.Duration
	logCapacity     int
	maxConcurrency  int
	port            int
	thresholds      Thresholds
	logger          *slog.Logger
	tickCallbacks   []func(TickResult)
	backoffInitial  time.Duration
	backoffMax      time.Duration
	controlRetries  uint
	historyLimit    int64
}

// Option is a function that configures a [Board] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithSensor adds a single [Sensor] to the known sensor set.
//
// Can be called multiple times. If no sensor is configured, [New] uses
// [DefaultSensors].
func WithSensor(s Sensor) Option {
	return func(cfg *boardConfig) error {
		cfg.sensors = append(cfg.sensors, s)
		return nil
	}
}

// WithSensors adds multiple [Sensor] values to the known sensor set.
//
// Equivalent to calling [WithSensor] multiple times.
//
// Example:
//
//	board, err := sensorboard.New(
//	    sensorboard.WithSensors(s1, s2, s3),
//	)
func WithSensors(sensors ...Sensor) Option {
	return func(cfg *boardConfig) error {
		cfg.sensors = append(cfg.sensors, sensors...)
		return nil
	}
}

// WithBaseURL sets the upstream API's base URL.
//
// Defaults to http://localhost:4000 if not specified.
//
// Returns an error if the URL is invalid or has no http(s) scheme.
func WithBaseURL(rawURL string) Option {
	return func(cfg *boardConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("base URL must have a scheme (http:// or https://)")
		}
		if u.Host == "" {
			return errors.New("base URL must have a host")
		}
		cfg.baseURL = rawURL
		return nil
	}
}

// WithHeaders adds custom HTTP headers to every upstream request.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	board, err := sensorboard.New(
//	    sensorboard.WithHeaders("Authorization", "Bearer token123"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *boardConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithPollingInterval sets how often all sensors are polled.
//
// A tick that fires while the previous poll is still running is skipped.
// Defaults to 5 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithFetchTimeout bounds every upstream read. A read that exceeds it counts
// as the sensor being unavailable. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithLogCapacity sets how many live rows the rolling log keeps.
// Defaults to 51.
//
// Returns an error if n is below 1.
func WithLogCapacity(n int) Option {
	return func(cfg *boardConfig) error {
		if n < 1 {
			return errors.New("log capacity must be at least 1")
		}
		cfg.logCapacity = n
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of concurrent sensor reads.
//
// Defaults to 10 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *boardConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithHistoryLimit sets the maximum size in bytes of one sensor's
// historical response.
//
// The upstream keeps every record until it is cleaned up, so long-running
// simulations grow their history without bound. Defaults to 32MB. A larger
// response fails the history request with [ErrSourceUnavailable].
//
// Returns an error if the value is zero or negative.
func WithHistoryLimit(bytes int64) Option {
	return func(cfg *boardConfig) error {
		if bytes <= 0 {
			return errors.New("history limit must be positive")
		}
		cfg.historyLimit = bytes
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "SensorBoard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithThresholds sets the warning and critical temperature thresholds used
// to classify readings. Defaults to 40 and 50.
//
// Returns an error unless warning is below critical.
func WithThresholds(warning, critical float64) Option {
	return func(cfg *boardConfig) error {
		t := Thresholds{Warning: warning, Critical: critical}
		if err := t.Validate(); err != nil {
			return err
		}
		cfg.thresholds = t
		return nil
	}
}

// WithTickCallback registers a function to be called after every tick,
// including failed and skipped ticks.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They are invoked synchronously
// from a single goroutine after the snapshot is updated. Panics within
// callbacks are recovered and logged; they do not stop polling.
//
// Example:
//
//	board, err := sensorboard.New(
//	    sensorboard.WithTickCallback(func(r sensorboard.TickResult) {
//	        for _, reading := range r.Readings {
//	            if reading.Level == sensorboard.LevelCritical {
//	                log.Printf("ALERT: %s is at %.1f°C", reading.SensorID, *reading.Value)
//	            }
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithTickCallback(cb func(TickResult)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.tickCallbacks = append(cfg.tickCallbacks, cb)
		return nil
	}
}

// WithFailureBackoff enables exponential backoff after failed ticks.
//
// After a failure, ticks are skipped until a delay starting at initial and
// growing up to max has passed. A successful tick resets the delay. By
// default backoff is disabled and polling keeps its fixed period.
//
// Returns an error unless 0 < initial <= max.
func WithFailureBackoff(initial, max time.Duration) Option {
	return func(cfg *boardConfig) error {
		if initial <= 0 || max < initial {
			return errors.New("failure backoff requires 0 < initial <= max")
		}
		cfg.backoffInitial = initial
		cfg.backoffMax = max
		return nil
	}
}

// WithControlRetries sets how many attempts a control trigger (start, stop,
// reset) makes before giving up. Defaults to 3.
//
// Returns an error if n is below 1.
func WithControlRetries(n int) Option {
	return func(cfg *boardConfig) error {
		if n < 1 {
			return errors.New("control retries must be at least 1")
		}
		cfg.controlRetries = uint(n)
		return nil
	}
}
