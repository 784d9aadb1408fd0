package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	avatarcropper "github.com/profilekit/avatar-cropper"
)

// DefaultSessionTTL is how long an idle session survives before the
// janitor evicts it.
const DefaultSessionTTL = 15 * time.Minute

// Entry is one live cropping session together with its bookkeeping.
type Entry struct {
	mu      sync.Mutex
	session *avatarcropper.Session

	// Label is the caller-supplied description of the upload, echoed back
	// in state responses. The session itself never reads it.
	Label string

	lastSeen time.Time
}

// Do runs fn while holding the entry lock. Session methods are not safe
// for concurrent use, so every handler touches the session through Do.
func (e *Entry) Do(fn func(s *avatarcropper.Session)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// Registry tracks live cropping sessions by ID and evicts the ones that
// have been idle longer than the TTL.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Entry
	ttl      time.Duration
}

// NewRegistry creates a session registry. A non-positive ttl falls back to
// DefaultSessionTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Registry{
		sessions: make(map[string]*Entry),
		ttl:      ttl,
	}
}

// Put stores a session under a fresh ID and returns the ID.
func (r *Registry) Put(session *avatarcropper.Session, label string) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Entry{
		session:  session,
		Label:    label,
		lastSeen: time.Now(),
	}
	return id
}

// Get returns the entry for id and marks it as recently used.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = time.Now()
	return entry, true
}

// Delete removes the session for id. It reports whether a session was
// registered under that ID.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Sweep evicts every session idle longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
