// Package pipeline executes jobs in-process.
//
// Submit launches one goroutine per accepted job, bound to the cancellation
// signal the job store registered for it. There is no worker pool and no
// global serialization; per-asset safety comes from content-addressed keys
// and the caller-level rule of one active save per asset. Render jobs are
// executed by an external worker and complete through the callback webhook,
// so the runner leaves them pending.
//
// Handlers report stage and progress through the store, clean up their temp
// directories on every exit path, and end the job with Complete or Fail.
// When the cancellation signal fired instead, the cancelled row the store
// persisted before firing it is left standing.
package pipeline
