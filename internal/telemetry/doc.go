// Package telemetry writes opt-in JSONL events and raw API payloads for
// offline inspection of generate-execute-repair runs.
//
// Switches are read from the environment at startup:
//
//	F2C_TRACE=1             default both switches below on
//	F2C_OBSERVE_JSON=0|1    append events to <dir>/events.jsonl
//	F2C_PERSIST_PAYLOADS=0|1  write request/response bodies to <dir>/payloads
//	F2C_ARTIFACTS_DIR       output directory (default .fig2code)
//
// Events never carry generated code or prompt text, only sizes and outcomes.
package telemetry
