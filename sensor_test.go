package sensorboard

import (
	"testing"
)

func TestNewSensor_Valid(t *testing.T) {
	s, err := NewSensor("sensor_1", WithLocation("Kitchen"))
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}
	if s.ID() != "sensor_1" {
		t.Errorf("ID() = %q, want %q", s.ID(), "sensor_1")
	}
	if s.Location() != "Kitchen" {
		t.Errorf("Location() = %q, want %q", s.Location(), "Kitchen")
	}
}

func TestNewSensor_InvalidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"slash", "a/b"},
		{"space", "sensor 1"},
		{"tab", "sensor\t1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSensor(tt.id); err == nil {
				t.Errorf("NewSensor(%q) expected error, got nil", tt.id)
			}
		})
	}
}

func TestWithLocation_Blank(t *testing.T) {
	if _, err := NewSensor("sensor_1", WithLocation("  ")); err == nil {
		t.Error("NewSensor() expected error for blank location, got nil")
	}
}

func TestNewSensor_NoLocation(t *testing.T) {
	s, err := NewSensor("sensor_9")
	if err != nil {
		t.Fatalf("NewSensor() error = %v", err)
	}
	if s.Location() != "" {
		t.Errorf("Location() = %q, want empty", s.Location())
	}
}

func TestDefaultSensors(t *testing.T) {
	got := DefaultSensors()
	want := []string{"sensor_1", "sensor_2", "sensor_3"}
	if len(got) != len(want) {
		t.Fatalf("len(DefaultSensors()) = %d, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.ID() != want[i] {
			t.Errorf("DefaultSensors()[%d] = %q, want %q", i, s.ID(), want[i])
		}
	}
}
