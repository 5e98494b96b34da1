package telemetry_test

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/petasbytes/fig2code/internal/telemetry"
)

func TestEmit_Gating(t *testing.T) {
	// Run in a subprocess so startup-evaluated telemetry config sees F2C_OBSERVE_JSON=0.
	tmpDir := t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=TestEmitGatingProbe")
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"F2C_OBSERVE_JSON=0",
		"F2C_TRACE=",
		"F2C_PERSIST_PAYLOADS=",
		"F2C_ARTIFACTS_DIR=",
	)
	cmd.Dir = tmpDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("subprocess error: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "no_file=true") {
		t.Fatalf("expected no_file=true, got output:\n%s", out)
	}
}

func TestEmitGatingProbe(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	telemetry.Emit("attempt_started", map[string]any{"turns": 1})
	if _, err := os.Stat(filepath.Join(telemetry.DefaultDir, telemetry.EventsFile)); os.IsNotExist(err) {
		println("no_file=true")
	} else {
		println("no_file=false")
	}
}

// readEvents decodes every line of <dir>/events.jsonl.
func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, telemetry.EventsFile))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	s := bufio.NewScanner(f)
	for s.Scan() {
		var m map[string]any
		if err := json.Unmarshal(s.Bytes(), &m); err != nil {
			t.Fatalf("line %d is not JSON: %v\n%s", len(out)+1, err, s.Text())
		}
		out = append(out, m)
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func observeInto(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("F2C_OBSERVE_JSON", "1")
	t.Setenv("F2C_ARTIFACTS_DIR", dir)
	return dir
}

func TestEmit_WritesEventAndTime(t *testing.T) {
	dir := observeInto(t)

	telemetry.Emit("attempt_failed", map[string]any{"kind": "execution", "duration_ms": 42})

	events := readEvents(t, dir)
	if len(events) != 1 {
		t.Fatalf("want 1 event, got %d", len(events))
	}
	e := events[0]
	if e["event"] != "attempt_failed" || e["kind"] != "execution" || e["duration_ms"] != float64(42) {
		t.Fatalf("event mismatch: %#v", e)
	}
	ts, ok := e["time"].(string)
	if !ok {
		t.Fatal("expected time field as string")
	}
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Fatalf("time not RFC3339Nano: %v", err)
	}
}

func TestEmit_DefaultDir(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("F2C_OBSERVE_JSON", "1")
	t.Setenv("F2C_ARTIFACTS_DIR", "")

	telemetry.Emit("session_saved", nil)

	events := readEvents(t, telemetry.DefaultDir)
	if len(events) != 1 || len(events[0]) != 2 {
		t.Fatalf("want a single event with only event and time, got %#v", events)
	}
}

func TestEmit_FieldsNotMutated(t *testing.T) {
	observeInto(t)
	fields := map[string]any{"record": "a.json"}

	telemetry.Emit("session_saved", fields)

	if len(fields) != 1 || fields["record"] != "a.json" {
		t.Fatalf("fields mutated: %#v", fields)
	}
}

func TestEmitContext_FillsIdentifiers(t *testing.T) {
	dir := observeInto(t)
	ctx := telemetry.WithAttempt(telemetry.WithRunID(context.Background(), "run-1"), 2)

	telemetry.EmitContext(ctx, "attempt_started", map[string]any{"turns": 5})
	telemetry.EmitContext(ctx, "attempt_started", map[string]any{"attempt": 9})
	telemetry.EmitContext(context.Background(), "bare", nil)

	events := readEvents(t, dir)
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	if events[0]["run_id"] != "run-1" || events[0]["attempt"] != float64(2) || events[0]["turns"] != float64(5) {
		t.Fatalf("context ids not applied: %#v", events[0])
	}
	if events[1]["attempt"] != float64(9) {
		t.Fatalf("explicit field should win: %#v", events[1])
	}
	if _, ok := events[2]["run_id"]; ok {
		t.Fatalf("no run_id expected without context value: %#v", events[2])
	}
}

func TestEmit_ConcurrentLinesStayWhole(t *testing.T) {
	dir := observeInto(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			telemetry.Emit("attempt_started", map[string]any{"n": i, "pad": strings.Repeat("x", 512)})
		}(i)
	}
	wg.Wait()

	if got := len(readEvents(t, dir)); got != n {
		t.Fatalf("want %d events, got %d", n, got)
	}
}

func TestEmit_MarshalErrorWritesNothing(t *testing.T) {
	dir := observeInto(t)

	telemetry.Emit("bad", map[string]any{"x": math.NaN()})

	if _, err := os.Stat(filepath.Join(dir, telemetry.EventsFile)); !os.IsNotExist(err) {
		t.Fatalf("expected no events file on marshal error, got err=%v", err)
	}
}

func TestEmit_ReadOnlyFileIsIgnored(t *testing.T) {
	dir := observeInto(t)
	path := filepath.Join(dir, telemetry.EventsFile)
	if err := os.WriteFile(path, nil, 0o444); err != nil {
		t.Fatal(err)
	}
	if f, err := os.OpenFile(path, os.O_WRONLY, 0); err == nil {
		f.Close()
		t.Skip("running with permissions that ignore file modes")
	}

	telemetry.Emit("x", map[string]any{"a": 1})

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 0 {
		t.Fatalf("expected read-only file size 0, got %d", fi.Size())
	}
}
