package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PersistPayload writes a raw API body to <Dir>/payloads when enabled.
// kind is "request" or "response".
func PersistPayload(ctx context.Context, kind string, body []byte) {
	if !PersistPayloadsEnabled() || len(body) == 0 {
		return
	}
	runID, ok := RunIDFromContext(ctx)
	if !ok {
		runID = "norun"
	}
	attempt, _ := AttemptFromContext(ctx)

	dir := filepath.Join(Dir(), "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: mkdir %s: %v\n", dir, err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_a%d_%s.json", runID, attempt, kind))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry: write %s: %v\n", path, err)
	}
}
