// Package api hosts the daemon's HTTP surface: the job polling resource,
// ingestion and render submission, asset catalog reads, the worker callback
// webhook, and signed file serving for the local storage backend. It also
// defines the wire DTOs the CLI consumes, translated from internal models so
// external callers never couple to store row shapes.
//
// Handlers decode JSON, call the underlying services, and map the services
// error markers onto HTTP statuses in one place (respond.go). Submission
// endpoints validate synchronously and answer 202 with a job id; everything
// asynchronous is observed by polling the job resource.
package api
