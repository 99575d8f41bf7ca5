// Package config loads, normalizes, and validates studio configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// STUDIO_SIGNING_SECRET. The Config type centralizes every knob the daemon and
// CLI need, covering storage backends, ingestion limits, render targets, and
// the HTTP API in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
