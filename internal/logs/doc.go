// Package logs reads the daemon log file for the CLI: bounded "last N
// lines" reads plus a polling follow mode. Every read reports the offset
// just past the last line it returned, and follow mode feeds that offset
// back in so no line is emitted twice.
package logs
