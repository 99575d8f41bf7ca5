// Package daemon coordinates the long-running studio process.
//
// It wires configuration, the job store, the storage backend, the pipeline
// runner, and the HTTP API into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon sweeps orphaned jobs at startup and
// runs the periodic asset TTL cleanup.
//
// Keep orchestration logic here: job handlers live in the pipeline package and
// request handling lives in the api package, while the daemon focuses on
// startup, shutdown, and high level coordination.
package daemon
