package jobs

import (
	"context"
	"sync"
)

// signalRegistry tracks the process-local cancellation context of every live
// job. The durable row is the cross-restart source of truth; the registry only
// lets Cancel interrupt work running in this process.
type signalRegistry struct {
	mu      sync.Mutex
	entries map[string]signalEntry
}

type signalEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newSignalRegistry() *signalRegistry {
	return &signalRegistry{entries: make(map[string]signalEntry)}
}

// register allocates a fresh cancellation context for the job id, replacing
// any previous entry.
func (r *signalRegistry) register(id string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	prev, ok := r.entries[id]
	r.entries[id] = signalEntry{ctx: ctx, cancel: cancel}
	r.mu.Unlock()
	if ok {
		prev.cancel()
	}
	return ctx
}

// get returns the live context for the job id, nil when none is registered.
func (r *signalRegistry) get(id string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		return entry.ctx
	}
	return nil
}

// release cancels and removes the entry for the job id. Safe to call for ids
// that were never registered.
func (r *signalRegistry) release(id string) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

func (r *signalRegistry) releaseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]signalEntry)
	r.mu.Unlock()
	for _, entry := range entries {
		entry.cancel()
	}
}

// Signal returns the cancellation context registered for a live job, nil once
// the job is terminal or the signal has been released. Workers derive their
// execution context from it so Cancel interrupts in-flight work.
func (s *Store) Signal(id string) context.Context {
	return s.signals.get(id)
}
