// Package config provides YAML configuration parsing for SensorBoard.
//
// This package enables running SensorBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Greenhouse
//	port: 8080
//	poll_interval: 5s
//	base_url: ${SENSOR_API_URL:-http://localhost:4000}
//	timeout: 2s
//	log_capacity: 51
//
//	sensors:
//	  - id: sensor_1
//	    location: Kitchen
//	  - id: sensor_2
//
//	thresholds:
//	  warning: 40
//	  critical: 50
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production configs.
// This keeps an accidental "1ms" from hammering the upstream API.
const minPollInterval = 100 * time.Millisecond

// Defaults applied by [Parse].
const (
	DefaultPort         = 8080
	DefaultPollInterval = 5 * time.Second
	DefaultBaseURL      = "http://localhost:4000"
)

// Config is the root configuration structure for SensorBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "SensorBoard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between poll ticks.
	// Accepts duration strings like "5s", "1m", "500ms".
	// Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// BaseURL is the upstream sensor API root.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	BaseURL string `yaml:"base_url"`

	// Timeout bounds every upstream read. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// LogCapacity is the number of live rows kept. Defaults to 51.
	LogCapacity int `yaml:"log_capacity"`

	// MaxConcurrency bounds concurrent sensor reads. Defaults to 10.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Sensors lists the known sensors. Defaults to sensor_1..sensor_3.
	Sensors []SensorConfig `yaml:"sensors"`

	// Thresholds sets the classification bounds.
	Thresholds *ThresholdsConfig `yaml:"thresholds"`

	// Headers are custom HTTP headers sent with every upstream request.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// ControlRetries is the number of attempts per control trigger.
	ControlRetries int `yaml:"control_retries"`

	// FailureBackoff enables exponential backoff after failed ticks.
	FailureBackoff *BackoffConfig `yaml:"failure_backoff"`
}

// SensorConfig defines one known sensor.
type SensorConfig struct {
	// ID is the upstream sensor identifier.
	ID string `yaml:"id"`

	// Location is a display fallback when the upstream reports none.
	Location string `yaml:"location"`
}

// ThresholdsConfig holds the warning and critical temperatures.
type ThresholdsConfig struct {
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
}

// BackoffConfig bounds the delay after failed ticks.
type BackoffConfig struct {
	Initial Duration `yaml:"initial"`
	Max     Duration `yaml:"max"`
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// Both Go durations ("5s", "1m30s") and ISO 8601 durations ("PT5S") are
// accepted.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	if strings.HasPrefix(s, "P") {
		iso, err := duration.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(iso.ToTimeDuration())
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in BaseURL and Header values.
// Defaults are applied for Port (8080), PollInterval (5s) and BaseURL.
// Other unset fields keep the SDK defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	expanded, err := expandEnvVars(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	c.BaseURL = expanded

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("base_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	if c.Timeout != 0 && c.Timeout.Duration() <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout.Duration())
	}
	if c.LogCapacity < 0 {
		return fmt.Errorf("log_capacity must be at least 1, got %d", c.LogCapacity)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.ControlRetries < 0 {
		return fmt.Errorf("control_retries must be at least 1, got %d", c.ControlRetries)
	}

	seen := make(map[string]int, len(c.Sensors))
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.ID == "" {
			return fmt.Errorf("sensors[%d]: id is required", i)
		}
		if strings.ContainsAny(s.ID, "/ \t\n") {
			return fmt.Errorf("sensors[%d] (%s): id cannot contain slashes or whitespace", i, s.ID)
		}
		if j, dup := seen[s.ID]; dup {
			return fmt.Errorf("sensors[%d] (%s): duplicate of sensors[%d]", i, s.ID, j)
		}
		seen[s.ID] = i
	}

	if t := c.Thresholds; t != nil && t.Warning >= t.Critical {
		return fmt.Errorf("thresholds: warning (%g) must be below critical (%g)", t.Warning, t.Critical)
	}

	if b := c.FailureBackoff; b != nil {
		if b.Initial.Duration() <= 0 {
			return fmt.Errorf("failure_backoff: initial must be positive, got %s", b.Initial.Duration())
		}
		if b.Max.Duration() < b.Initial.Duration() {
			return fmt.Errorf("failure_backoff: max (%s) must not be below initial (%s)",
				b.Max.Duration(), b.Initial.Duration())
		}
	}

	return nil
}
