package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// executeCmd runs the root command with args and returns captured stdout
// and any error. Flags are reset first since commands are package globals.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// upstream serves two sensors' history and records control calls.
type upstream struct {
	mu       sync.Mutex
	calls    []string
	failHist bool
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()

		name := strings.TrimPrefix(r.URL.Path, "/api/sensors/")
		switch name {
		case "start-generation", "stop-generation", "cleanup", "reset-sensors":
			u.calls = append(u.calls, name)
		case "a":
			if u.failHist {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = fmt.Fprint(w, `{"sensorId":"a","records":[{"timestamp":"2025-03-01T10:00:05Z","value":2.5},{"timestamp":"2025-03-01T10:00:00Z","value":1}]}`)
		case "b":
			_, _ = fmt.Fprint(w, `{"sensorId":"b","records":[{"timestamp":"2025-03-01T10:00:00Z","value":null}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func (u *upstream) controlCalls() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.calls...)
}

func TestVersion(t *testing.T) {
	out, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(out, "sensorboard dev") {
		t.Errorf("output = %q, want version line", out)
	}
}

func TestRunValidate_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
port: 8080
poll_interval: 10s
base_url: http://localhost:4000
sensors:
  - id: sensor_1
    location: Kitchen
  - id: sensor_2
`)

	output, err := executeCmd(t, "validate", "-c", path)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Port:          8080",
		"Poll interval: 10s",
		"Upstream:      http://localhost:4000",
		"Log capacity:  51",
		"Sensors:       2",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
sensors:
  - location: Kitchen
`)

	_, err := executeCmd(t, "validate", "-c", path)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}

	if !strings.Contains(err.Error(), "id is required") {
		t.Errorf("error should mention 'id is required', got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}

	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunHistory_Table(t *testing.T) {
	_, srv := newUpstream(t)
	path := writeConfig(t, fmt.Sprintf(`
base_url: %s
sensors:
  - id: a
  - id: b
`, srv.URL))

	out, err := executeCmd(t, "history", "-c", path)
	if err != nil {
		t.Fatalf("history command error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows:\n%s", len(lines), out)
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "TIMESTAMP a b" {
		t.Errorf("header = %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); strings.Join(fields, " ") != "2025-03-01T10:00:00Z 1 -" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); strings.Join(fields, " ") != "2025-03-01T10:00:05Z 2.5 -" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestRunHistory_DescJSON(t *testing.T) {
	_, srv := newUpstream(t)
	path := writeConfig(t, `
sensors:
  - id: a
  - id: b
`)

	out, err := executeCmd(t, "history", "-c", path, "--base-url", srv.URL, "--order", "desc", "--format", "json")
	if err != nil {
		t.Fatalf("history command error = %v", err)
	}

	first := strings.Index(out, "2025-03-01T10:00:05Z")
	second := strings.Index(out, "2025-03-01T10:00:00Z")
	if first < 0 || second < 0 || first > second {
		t.Errorf("want newest row first, got:\n%s", out)
	}
	if !strings.Contains(out, `"b": null`) {
		t.Errorf("absent value should encode as null, got:\n%s", out)
	}
}

func TestRunHistory_SourceFailure(t *testing.T) {
	u, srv := newUpstream(t)
	u.failHist = true
	path := writeConfig(t, fmt.Sprintf(`
base_url: %s
sensors:
  - id: a
  - id: b
`, srv.URL))

	out, err := executeCmd(t, "history", "-c", path)
	if err == nil {
		t.Fatal("history command expected error, got nil")
	}
	if !strings.Contains(err.Error(), "poll cycle failed") {
		t.Errorf("error = %v, want poll cycle failure", err)
	}
	if out != "" {
		t.Errorf("output = %q, want nothing printed on failure", out)
	}
}

func TestRunHistory_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad order", []string{"history", "--order", "sideways"}},
		{"bad format", []string{"history", "--format", "xml"}},
		{"bad base url", []string{"history", "--base-url", "localhost"}},
		{"bad log format", []string{"history", "--log-format", "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCmd(t, tt.args...); err == nil {
				t.Errorf("%v expected error, got nil", tt.args)
			}
		})
	}
}

func TestRunControl(t *testing.T) {
	tests := []struct {
		action string
		want   []string
	}{
		{"start", []string{"start-generation"}},
		{"stop", []string{"stop-generation"}},
		{"reset", []string{"cleanup", "reset-sensors"}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			u, srv := newUpstream(t)

			out, err := executeCmd(t, "control", tt.action, "--base-url", srv.URL)
			if err != nil {
				t.Fatalf("control %s error = %v", tt.action, err)
			}
			if !strings.Contains(out, tt.action+": ok") {
				t.Errorf("output = %q", out)
			}
			if got := u.controlCalls(); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("upstream calls = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunHistory_TextLogFormat(t *testing.T) {
	_, srv := newUpstream(t)

	out, err := executeCmd(t, "history", "--base-url", srv.URL, "--log-format", "text", "--format", "json")
	if err == nil {
		t.Fatalf("history against default sensors expected error, got output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "poll cycle failed") {
		t.Errorf("error = %v, want poll cycle failure", err)
	}
}

func TestRunControl_InvalidArgs(t *testing.T) {
	for _, args := range [][]string{
		{"control"},
		{"control", "pause"},
		{"control", "start", "stop"},
	} {
		if _, err := executeCmd(t, args...); err == nil {
			t.Errorf("%v expected error, got nil", args)
		}
	}
}
