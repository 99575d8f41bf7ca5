// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no studio-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result provide convenient access to stream counts,
// duration and sample-rate parsing, and the primary audio stream, which is
// what ingestion validates and records for every asset.
package ffprobe
