// Package mockapi simulates the upstream sensor API for demos and local
// testing.
//
// A [Simulator] holds a few sensors that each produce a temperature record
// per step while generation is running. It serves the same endpoints the
// real API exposes:
//
//	GET /api/sensors/sensor-data      live snapshot
//	GET /api/sensors/{id}             historical records for one sensor
//	GET /api/sensors/start-generation
//	GET /api/sensors/stop-generation
//	GET /api/sensors/cleanup
//	GET /api/sensors/reset-sensors
package mockapi

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
)

// nullChance is the probability that a step reports no value for a sensor.
const nullChance = 0.05

type record struct {
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

type sensor struct {
	id       string
	location string
	base     float64
	records  []record
}

// Simulator is an in-memory sensor API. It is safe for concurrent use.
type Simulator struct {
	mu         sync.Mutex
	sensors    []*sensor
	generating bool
	rng        *rand.Rand
	logger     *slog.Logger
}

// NewSimulator creates a simulator with one sensor per location, named
// sensor_1, sensor_2, and so on. Generation starts stopped.
func NewSimulator(logger *slog.Logger, locations ...string) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulator{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger,
	}
	for i, loc := range locations {
		s.sensors = append(s.sensors, &sensor{
			id:       "sensor_" + strconv.Itoa(i+1),
			location: loc,
			base:     20 + float64(i)*10,
		})
	}
	return s
}

// SetGenerating starts or stops record generation.
func (s *Simulator) SetGenerating(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = on
}

// Step appends one record per sensor stamped at now, if generating.
// All sensors share the timestamp, so their records align.
func (s *Simulator) Step(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.generating {
		return
	}

	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	for _, sn := range s.sensors {
		var value *float64
		if s.rng.Float64() >= nullChance {
			// drift around the base, occasionally spiking past thresholds
			v := sn.base + s.rng.NormFloat64()*4
			if s.rng.Float64() < 0.03 {
				v += 25
			}
			v = float64(int(v*10)) / 10
			value = &v
		}
		sn.records = append(sn.records, record{Timestamp: ts, Value: value})
	}
}

// Run steps the simulator every interval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Step(now)
		}
	}
}

// Handler returns the HTTP API.
func (s *Simulator) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sensors/sensor-data", s.handleLive)
	mux.HandleFunc("GET /api/sensors/start-generation", s.control("start", func() { s.generating = true }))
	mux.HandleFunc("GET /api/sensors/stop-generation", s.control("stop", func() { s.generating = false }))
	mux.HandleFunc("GET /api/sensors/cleanup", s.control("cleanup", s.clearRecords))
	mux.HandleFunc("GET /api/sensors/reset-sensors", s.control("reset", func() { s.generating = false }))
	mux.HandleFunc("GET /api/sensors/{id}", s.handleHistory)
	return mux
}

func (s *Simulator) clearRecords() {
	for _, sn := range s.sensors {
		sn.records = nil
	}
}

// control runs fn under the lock and answers with a small JSON ack.
func (s *Simulator) control(name string, fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		fn()
		s.mu.Unlock()
		s.logger.Info("control", "action", name)
		writeJSON(w, map[string]string{"message": name + " ok"})
	}
}

func (s *Simulator) handleLive(w http.ResponseWriter, r *http.Request) {
	type item struct {
		ID        string   `json:"id"`
		Location  string   `json:"location"`
		LastValue *float64 `json:"lastValue"`
	}

	s.mu.Lock()
	data := make([]item, 0, len(s.sensors))
	for _, sn := range s.sensors {
		it := item{ID: sn.id, Location: sn.location}
		if n := len(sn.records); n > 0 {
			it.LastValue = sn.records[n-1].Value
		}
		data = append(data, it)
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"data": data})
}

func (s *Simulator) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	var found *sensor
	for _, sn := range s.sensors {
		if sn.id == id {
			found = sn
			break
		}
	}
	var records []record
	if found != nil {
		records = append([]record{}, found.records...)
	}
	s.mu.Unlock()

	if found == nil {
		http.Error(w, "unknown sensor", http.StatusNotFound)
		return
	}

	// the upstream returns records newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	writeJSON(w, map[string]any{"sensorId": id, "records": records})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
