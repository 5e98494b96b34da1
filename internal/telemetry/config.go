package telemetry

import (
	"os"
)

// DefaultDir is where events and payloads go when F2C_ARTIFACTS_DIR is unset.
const DefaultDir = ".fig2code"

var (
	traceEnabled           bool
	observeEnabled         bool
	persistPayloadsEnabled bool
)

func init() {
	// Read once at process start. Mid-run environment changes have no effect.
	traceEnabled = os.Getenv("F2C_TRACE") == "1"

	// Observe: default to 1 when trace=1 and F2C_OBSERVE_JSON is unset; honour explicit 0/1.
	if v, ok := os.LookupEnv("F2C_OBSERVE_JSON"); ok {
		observeEnabled = (v == "1")
	} else {
		observeEnabled = traceEnabled
	}

	// Persist payloads: default to 1 when trace=1 and F2C_PERSIST_PAYLOADS is unset; honour explicit 0/1.
	if v, ok := os.LookupEnv("F2C_PERSIST_PAYLOADS"); ok {
		persistPayloadsEnabled = (v == "1")
	} else {
		persistPayloadsEnabled = traceEnabled
	}
}

// TraceEnabled reports whether trace mode was enabled at startup.
func TraceEnabled() bool { return traceEnabled }

// ObserveEnabled reports whether JSONL emission was enabled at startup, considering trace defaults.
func ObserveEnabled() bool {
	// Preserve startup-evaluated default, but allow tests to enable mid-run via env override.
	if os.Getenv("F2C_OBSERVE_JSON") == "1" {
		return true
	}
	return observeEnabled
}

// PersistPayloadsEnabled reports whether request and response payload persistence was enabled at startup.
func PersistPayloadsEnabled() bool {
	if os.Getenv("F2C_PERSIST_PAYLOADS") == "1" {
		return true
	}
	return persistPayloadsEnabled
}

// Dir returns the telemetry output directory.
func Dir() string {
	if v := os.Getenv("F2C_ARTIFACTS_DIR"); v != "" {
		return v
	}
	return DefaultDir
}
