// Package notify pushes pipeline events to an ntfy topic.
//
// Notifications are best effort: callers log delivery failures and move on,
// so a broken topic never fails a job. Without a configured topic every call
// is a no-op.
package notify
