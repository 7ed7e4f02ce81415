package sensorboard

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeUpstream serves the sensor API for three sensors.
type fakeUpstream struct {
	mu       sync.Mutex
	values   map[string]string // raw JSON lastValue per sensor
	history  map[string]string // raw JSON body per sensor
	failLive bool
	failHist map[string]int // status code per sensor
	controls []string
	ctrlCode int
}

func newFakeUpstream(t *testing.T) (*fakeUpstream, *httptest.Server) {
	t.Helper()
	up := &fakeUpstream{
		values: map[string]string{
			"sensor_1": "21.5",
			"sensor_2": "null",
			"sensor_3": "45",
		},
		history: map[string]string{
			"sensor_1": `{"sensorId":"sensor_1","records":[{"timestamp":"2025-03-01T10:00:05Z","value":2},{"timestamp":"2025-03-01T10:00:00Z","value":1}]}`,
			"sensor_2": `{"sensorId":"sensor_2","records":[{"timestamp":"2025-03-01T10:00:00Z","value":null}]}`,
			"sensor_3": `{"sensorId":"sensor_3","records":[{"timestamp":"2025-03-01T10:00:10Z","value":3}]}`,
		},
		failHist: map[string]int{},
		ctrlCode: http.StatusOK,
	}
	srv := httptest.NewServer(http.HandlerFunc(up.serve))
	t.Cleanup(srv.Close)
	return up, srv
}

func (u *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/sensors/")
	switch path {
	case "sensor-data":
		if u.failLive {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		parts := make([]string, 0, 3)
		for _, id := range []string{"sensor_1", "sensor_2", "sensor_3"} {
			parts = append(parts, fmt.Sprintf(`{"id":%q,"location":"room %s","lastValue":%s}`, id, id[len(id)-1:], u.values[id]))
		}
		_, _ = fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(parts, ","))
	case "start-generation", "stop-generation", "cleanup", "reset-sensors":
		u.controls = append(u.controls, path)
		w.WriteHeader(u.ctrlCode)
	default:
		if code, ok := u.failHist[path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := u.history[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}
}

func (u *fakeUpstream) setLiveFailing(fail bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failLive = fail
}

func (u *fakeUpstream) setHistoryStatus(id string, code int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failHist[id] = code
}

func (u *fakeUpstream) controlCalls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.controls...)
}
