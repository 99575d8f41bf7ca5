// Package recipe models user-authored edit recipes: an ordered clip list over
// source assets, an output format, and a normalization flag.
//
// Validation is pure and runs against caller-supplied source durations before
// any job is created or temp file written. The canonical JSON form and its
// SHA-256 prefix are the content-addressed cache key for rendered previews,
// so identical edits resolve to the same storage object.
package recipe
