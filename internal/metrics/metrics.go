// Package metrics provides Prometheus instrumentation for the poll loop.
//
// Metrics are registered on a private registry so several boards can live in
// one process (and in one test binary) without colliding. The registry is
// exposed over HTTP by [Metrics.Handler].
//
// Metrics exposed:
//   - sensorboard_poll_cycles_total: Counter of polled ticks by result (ok, failed)
//   - sensorboard_poll_skipped_total: Counter of skipped ticks by reason
//   - sensorboard_poll_duration_seconds: Histogram of poll latency
//   - sensorboard_source_failures_total: Counter of per-sensor failures by kind
//   - sensorboard_rolling_log_rows: Gauge of rows held by the rolling log
//   - sensorboard_sensor_value: Gauge of the latest reading per sensor
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll cycle results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics holds all Prometheus metrics for one board.
type Metrics struct {
	registry *prometheus.Registry

	PollCycles     *prometheus.CounterVec
	PollSkipped    *prometheus.CounterVec
	PollDuration   prometheus.Histogram
	SourceFailures *prometheus.CounterVec
	RollingLogRows prometheus.Gauge
	SensorValue    *prometheus.GaugeVec
}

// New creates all metrics on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorboard_poll_cycles_total",
			Help: "Total number of polled ticks by result",
		}, []string{"result"}),

		PollSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorboard_poll_skipped_total",
			Help: "Total number of ticks skipped without polling, by reason",
		}, []string{"reason"}),

		PollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensorboard_poll_duration_seconds",
			Help:    "Time spent fetching and merging one tick",
			Buckets: prometheus.DefBuckets,
		}),

		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorboard_source_failures_total",
			Help: "Total number of per-sensor read failures by kind",
		}, []string{"sensor", "kind"}),

		RollingLogRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sensorboard_rolling_log_rows",
			Help: "Number of rows currently held by the rolling log",
		}),

		SensorValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sensorboard_sensor_value",
			Help: "Latest reported value per sensor; absent sensors have no series",
		}, []string{"sensor"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCycle records a polled tick and its latency.
func (m *Metrics) RecordCycle(ok bool, seconds float64) {
	result := ResultOK
	if !ok {
		result = ResultFailed
	}
	m.PollCycles.WithLabelValues(result).Inc()
	m.PollDuration.Observe(seconds)
}

// RecordSkip increments the skipped-tick counter.
func (m *Metrics) RecordSkip(reason string) {
	m.PollSkipped.WithLabelValues(reason).Inc()
}

// RecordSourceFailure increments the per-sensor failure counter.
func (m *Metrics) RecordSourceFailure(sensor, kind string) {
	m.SourceFailures.WithLabelValues(sensor, kind).Inc()
}

// SetLogRows sets the rolling log size.
func (m *Metrics) SetLogRows(n int) {
	m.RollingLogRows.Set(float64(n))
}

// SetSensorValue sets a sensor's latest value, or removes its series when
// the sensor reported nothing.
func (m *Metrics) SetSensorValue(sensor string, value float64, valid bool) {
	if !valid {
		m.SensorValue.DeleteLabelValues(sensor)
		return
	}
	m.SensorValue.WithLabelValues(sensor).Set(value)
}
