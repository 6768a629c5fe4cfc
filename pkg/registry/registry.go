package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/taylored/runnerd/pkg/types"
)

var (
	// ErrNotFound is returned when no record exists for a session id.
	ErrNotFound = errors.New("runner not found")
	// ErrConflict is returned when an insert collides with an existing record.
	ErrConflict = errors.New("runner already exists")
)

// Registry owns the mapping from session id to runner record. All methods
// are safe for concurrent use and linearizable with respect to each other:
// the registry mutex is the single synchronization point for "does a runner
// exist".
//
// In reuse mode the registry degenerates to a single shared slot: the first
// insert wins and every lookup regardless of session id returns it.
type Registry struct {
	mu        sync.RWMutex
	reuseMode bool
	runners   map[string]*types.RunnerRecord
	singleton *types.RunnerRecord
}

// New creates a registry. reuseMode selects the singleton behavior.
func New(reuseMode bool) *Registry {
	return &Registry{
		reuseMode: reuseMode,
		runners:   make(map[string]*types.RunnerRecord),
	}
}

// ReuseMode reports whether the registry runs in reuse (singleton) mode.
func (r *Registry) ReuseMode() bool {
	return r.reuseMode
}

// Lookup returns a copy of the record for session, or ErrNotFound.
// In reuse mode the singleton is returned for any session id.
func (r *Registry) Lookup(session string) (*types.RunnerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.reuseMode {
		if r.singleton == nil {
			return nil, ErrNotFound
		}
		rec := *r.singleton
		return &rec, nil
	}
	rec, ok := r.runners[session]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Insert registers a new record. It fails with ErrConflict if the session
// already has a record (per-session mode) or the singleton slot is occupied
// (reuse mode).
func (r *Registry) Insert(rec *types.RunnerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reuseMode {
		if r.singleton != nil {
			return ErrConflict
		}
		cp := *rec
		r.singleton = &cp
		return nil
	}
	if _, ok := r.runners[rec.SessionID]; ok {
		return ErrConflict
	}
	cp := *rec
	r.runners[rec.SessionID] = &cp
	return nil
}

// Remove deletes and returns the record for session, or ErrNotFound.
// In reuse mode only the singleton's own session id removes it.
func (r *Registry) Remove(session string) (*types.RunnerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reuseMode {
		if r.singleton == nil || r.singleton.SessionID != session {
			return nil, ErrNotFound
		}
		rec := r.singleton
		r.singleton = nil
		return rec, nil
	}
	rec, ok := r.runners[session]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.runners, session)
	return rec, nil
}

// Touch refreshes the last-activity timestamp for session. The timestamp
// never moves backward. In reuse mode the supplied session id must match the
// singleton's.
func (r *Registry) Touch(session string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rec *types.RunnerRecord
	if r.reuseMode {
		if r.singleton == nil || r.singleton.SessionID != session {
			return ErrNotFound
		}
		rec = r.singleton
	} else {
		var ok bool
		rec, ok = r.runners[session]
		if !ok {
			return ErrNotFound
		}
	}

	if now := time.Now(); now.After(rec.LastActivity) {
		rec.LastActivity = now
	}
	return nil
}

// TouchAny refreshes the singleton regardless of session id. Used by the
// reuse-mode provision path, where any incoming session maps to the shared
// runner. Falls back to Touch in per-session mode.
func (r *Registry) TouchAny(session string) error {
	if !r.reuseMode {
		return r.Touch(session)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.singleton == nil {
		return ErrNotFound
	}
	if now := time.Now(); now.After(r.singleton.LastActivity) {
		r.singleton.LastActivity = now
	}
	return nil
}

// Snapshot returns copies of every live record. Used by the reaper, which
// must not hold the registry lock while talking to the container daemon.
func (r *Registry) Snapshot() []*types.RunnerRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.reuseMode {
		if r.singleton == nil {
			return nil
		}
		rec := *r.singleton
		return []*types.RunnerRecord{&rec}
	}
	out := make([]*types.RunnerRecord, 0, len(r.runners))
	for _, rec := range r.runners {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reuseMode {
		if r.singleton == nil {
			return 0
		}
		return 1
	}
	return len(r.runners)
}
