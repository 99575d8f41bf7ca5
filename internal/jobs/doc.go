// Package jobs persists the pipeline's job records in SQLite and enforces
// their lifecycle.
//
// A job moves pending -> processing -> complete | failed | cancelled; the
// right-hand states are terminal. Transition guards live in SQL WHERE
// clauses, so racing writers cannot resurrect a terminal row and a late
// failure never overwrites a cancellation. Each live job also owns a
// process-local cancellation context in the store's signal registry;
// the durable row remains the cross-restart source of truth, and
// RecoverOrphaned fails any rows left in flight by a previous process.
package jobs
