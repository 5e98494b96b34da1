package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventsFile is the JSONL file name under Dir.
const EventsFile = "events.jsonl"

// Loops run concurrently in batch and server modes, so appends are serialized.
var eventsMu sync.Mutex

// Emit appends one event to <Dir>/events.jsonl when observation is enabled.
// The line carries fields plus "event" and an RFC3339Nano "time"; fields is
// not modified. Failures are reported on stderr and otherwise ignored.
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}
	line, err := encodeEvent(name, fields)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: encode %s: %v\n", name, err)
		return
	}
	if err := appendLine(Dir(), line); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: %v\n", err)
	}
}

// EmitContext is Emit with run_id and attempt filled in from ctx unless
// fields already sets them.
func EmitContext(ctx context.Context, name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}
	m := make(map[string]any, len(fields)+2)
	if id, ok := RunIDFromContext(ctx); ok {
		m["run_id"] = id
	}
	if n, ok := AttemptFromContext(ctx); ok {
		m["attempt"] = n
	}
	for k, v := range fields {
		m[k] = v
	}
	Emit(name, m)
}

func encodeEvent(name string, fields map[string]any) ([]byte, error) {
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	m["event"] = name
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func appendLine(dir string, line []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	eventsMu.Lock()
	defer eventsMu.Unlock()

	path := filepath.Join(dir, EventsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
