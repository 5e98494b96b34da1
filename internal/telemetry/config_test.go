package telemetry_test

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/petasbytes/fig2code/internal/telemetry"
)

// Run TestProbe in a clean env so startup-only telemetry config is deterministic.
// Builds env with PATH + GO_WANT_HELPER_PROCESS, then applies explicit overrides.
func runWithEnv(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestProbe"}, args...)...)
	// Avoid setting empty F2C_* vars; empty still counts as "set" for LookupEnv.
	base := []string{"GO_WANT_HELPER_PROCESS=1"}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			base = append(base, kv)
			break
		}
	}
	// Apply requested overrides last.
	for k, v := range env {
		base = append(base, k+"="+v)
	}
	cmd.Env = base
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestStartupConfig_Matrix(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string // encode expected booleans in output: "trace=.. observe=.. persist=.."
	}{
		{"baseline_off", map[string]string{}, "trace=false observe=false persist=false"},
		{"trace_defaults", map[string]string{"F2C_TRACE": "1"}, "trace=true observe=true persist=true"},
		{"trace_observe_off", map[string]string{"F2C_TRACE": "1", "F2C_OBSERVE_JSON": "0"}, "trace=true observe=false persist=true"},
		{"trace_persist_off", map[string]string{"F2C_TRACE": "1", "F2C_PERSIST_PAYLOADS": "0"}, "trace=true observe=true persist=false"},
		{"observe_only", map[string]string{"F2C_OBSERVE_JSON": "1"}, "trace=false observe=true persist=false"},
		{"persist_only", map[string]string{"F2C_PERSIST_PAYLOADS": "1"}, "trace=false observe=false persist=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runWithEnv(t, tt.env)
			if err != nil {
				t.Fatalf("subprocess error: %v\n%s", err, got)
			}
			if !containsLine(got, tt.want) {
				t.Fatalf("want line:\n%s\ngot output:\n%s", tt.want, got)
			}
		})
	}
}

// The subprocess probe prints the config booleans so the parent can assert.
func TestProbe(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	// Print the values for parent process assertion
	fmt.Printf(
		"trace=%v observe=%v persist=%v\n",
		telemetry.TraceEnabled(),
		telemetry.ObserveEnabled(),
		telemetry.PersistPayloadsEnabled(),
	)
}

// containsLine reports whether output has a line exactly equal to want.
func containsLine(output, want string) bool {
	return slices.Contains(strings.Split(output, "\n"), want)
}

func TestDir_DefaultAndOverride(t *testing.T) {
	t.Setenv("F2C_ARTIFACTS_DIR", "")
	if got := telemetry.Dir(); got != telemetry.DefaultDir {
		t.Fatalf("want %q, got %q", telemetry.DefaultDir, got)
	}
	t.Setenv("F2C_ARTIFACTS_DIR", "/tmp/x")
	if got := telemetry.Dir(); got != "/tmp/x" {
		t.Fatalf("want /tmp/x, got %q", got)
	}
}

func TestDir_Override(t *testing.T) {
	t.Setenv("F2C_ARTIFACTS_DIR", "")
	if got := telemetry.Dir(); got != telemetry.DefaultDir {
		t.Fatalf("default dir: got %q", got)
	}
	t.Setenv("F2C_ARTIFACTS_DIR", "/tmp/f2c events")
	if got := telemetry.Dir(); got != "/tmp/f2c events" {
		t.Fatalf("override dir: got %q", got)
	}
}
