package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordCycle(t *testing.T) {
	m := New()

	m.RecordCycle(true, 0.12)
	m.RecordCycle(true, 0.08)
	m.RecordCycle(false, 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollCycles.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollCycles.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PollDuration))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordSkip("in_flight")
	m.RecordSkip("in_flight")
	m.RecordSourceFailure("sensor_2", "unavailable")
	m.SetLogRows(51)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollSkipped.WithLabelValues("in_flight")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFailures.WithLabelValues("sensor_2", "unavailable")))
	assert.Equal(t, 51.0, testutil.ToFloat64(m.RollingLogRows))
}

func TestMetrics_SensorValueAbsentRemovesSeries(t *testing.T) {
	m := New()

	m.SetSensorValue("sensor_1", 38.5, true)
	m.SetSensorValue("sensor_2", 12, true)
	require.Equal(t, 2, testutil.CollectAndCount(m.SensorValue))

	m.SetSensorValue("sensor_2", 0, false)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SensorValue))
	assert.Equal(t, 38.5, testutil.ToFloat64(m.SensorValue.WithLabelValues("sensor_1")))
}

func TestMetrics_PrivateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordSkip("backoff")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PollSkipped.WithLabelValues("backoff")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PollSkipped.WithLabelValues("backoff")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordCycle(true, 0.1)
	m.SetSensorValue("sensor_1", 21.5, true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `sensorboard_poll_cycles_total{result="ok"} 1`), text)
	assert.Contains(t, text, `sensorboard_sensor_value{sensor="sensor_1"} 21.5`)
	assert.Contains(t, text, "go_goroutines")
}
