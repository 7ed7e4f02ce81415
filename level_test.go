package sensorboard

import (
	"testing"
)

func fptr(f float64) *float64 { return &f }

func TestThresholds_Classify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name  string
		value *float64
		want  Level
	}{
		{"nil is offline", nil, LevelOffline},
		{"zero is normal", fptr(0), LevelNormal},
		{"negative is normal", fptr(-5), LevelNormal},
		{"below warning", fptr(39.9), LevelNormal},
		{"at warning", fptr(40), LevelWarning},
		{"between", fptr(45), LevelWarning},
		{"at critical", fptr(50), LevelCritical},
		{"above critical", fptr(80), LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := th.Classify(tt.value); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("DefaultThresholds().Validate() error = %v", err)
	}
	if err := (Thresholds{Warning: 50, Critical: 50}).Validate(); err == nil {
		t.Error("Validate() expected error for equal thresholds, got nil")
	}
	if err := (Thresholds{Warning: 60, Critical: 50}).Validate(); err == nil {
		t.Error("Validate() expected error for inverted thresholds, got nil")
	}
}

func TestLevel_String(t *testing.T) {
	if LevelCritical.String() != "critical" {
		t.Errorf("LevelCritical.String() = %q", LevelCritical.String())
	}
}

func TestTickResult_OK(t *testing.T) {
	if !(TickResult{}).OK() {
		t.Error("zero TickResult should be OK")
	}
	if (TickResult{Skipped: true}).OK() {
		t.Error("skipped TickResult should not be OK")
	}
	if (TickResult{Err: ErrPollCycleFailed}).OK() {
		t.Error("failed TickResult should not be OK")
	}
}
