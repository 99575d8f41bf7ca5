// Package services defines shared utilities consumed by the pipeline
// components and the HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, asset IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the stable codes recorded on jobs and returned over HTTP.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
