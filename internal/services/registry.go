// Package services – session Registry
//
// The registry owns the live profile sessions, one controller per signed-in
// customer identity. Sessions are created and initialized on first use and
// disposed explicitly (sign-out) or collectively on shutdown.
package services

import (
	"context"
	"sync"
)

// Registry maps session identities to their profile controllers. It is safe
// for concurrent use.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*ProfileController
}

// NewRegistry constructs an empty registry sharing one set of collaborators
// across all sessions.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*ProfileController),
	}
}

// Get returns the active controller for identity, creating and initializing
// one when absent or previously disposed. A failed initialization is not
// cached, so the next request retries the lookups. Concurrent first requests
// for one identity may both activate; exactly one session is kept and the
// other is finalized.
func (r *Registry) Get(ctx context.Context, identity string) (*ProfileController, error) {
	r.mu.Lock()
	if pc, ok := r.sessions[identity]; ok && pc.Snapshot().Phase == PhaseActive {
		r.mu.Unlock()
		return pc, nil
	}
	d := r.deps
	if d.Channels != nil {
		// Each session gets its own channel handle so disposing one session
		// never tears down broadcast for the others.
		d.Channel = d.Channels()
	}
	pc := NewProfileController(d, identity)
	r.mu.Unlock()

	// Initialize outside the registry lock: it performs remote calls.
	if err := pc.Initialize(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cur, ok := r.sessions[identity]; ok && cur.Snapshot().Phase == PhaseActive {
		// A concurrent request activated first; keep its session and
		// release the one built here so its channel handle is not leaked.
		r.mu.Unlock()
		_ = pc.Finalize()
		return cur, nil
	}
	r.sessions[identity] = pc
	r.mu.Unlock()
	return pc, nil
}

// Peek returns the controller for identity without creating one.
func (r *Registry) Peek(identity string) (*ProfileController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.sessions[identity]
	return pc, ok
}

// Dispose finalizes and removes the session for identity. Disposing an
// unknown identity is a no-op.
func (r *Registry) Dispose(identity string) error {
	r.mu.Lock()
	pc, ok := r.sessions[identity]
	delete(r.sessions, identity)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return pc.Finalize()
}

// DisposeAll finalizes every session; used during shutdown.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	sessions := make([]*ProfileController, 0, len(r.sessions))
	for id, pc := range r.sessions {
		sessions = append(sessions, pc)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, pc := range sessions {
		_ = pc.Finalize()
	}
}

// Len reports how many sessions are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
