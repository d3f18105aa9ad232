package config

import "time"

// Central place for run-wide timing constants, mirroring the teacher's
// single-file convention for defaults shared across the package.

const (
	// DefaultBatchSize is the flush threshold for results.save_mode:
	// batched when the config omits batch_size.
	DefaultBatchSize = 100

	// MQTTPublishTimeout bounds a single telemetry-bridge publish call
	// (internal/telemetry/mqttsink), matching the teacher's own
	// MQTTTimeout budget for its transmitter.
	MQTTPublishTimeout = 5 * time.Second

	// InspectorWriteTimeout is a websocket write budget for inspector
	// clients. internal/inspector does not read it; it uses its own
	// writeWait of one second.
	InspectorWriteTimeout = 2 * time.Second
)
