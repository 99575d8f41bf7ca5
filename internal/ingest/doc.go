// Package ingest normalizes the four audio source kinds (YouTube, direct
// URL, uploaded audio, uploaded video) into stored assets. Each entry point
// validates synchronously before any job or temp file exists; the fetch
// paths converge on one tail that probes the audio, enforces caps, creates
// the asset, and extracts waveform peaks. Temp working directories are
// removed on success, failure, and cancellation alike.
package ingest
