// Package logging provides structured logging for the simple MQTT client.
//
// It wraps Go's log/slog package so that the connection manager, the demo
// entry point and the telemetry sink all log the same way.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("trying to connect to MQTT broker", "broker", url)
//
// Never log broker passwords or InfluxDB tokens.
package logging
