package session

import (
	"sync"
)

// Registry maps userKey to its live session. It is the one piece of shared
// mutable state in the core and is mutex-guarded throughout.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the user's live session, if any.
func (r *Registry) Get(userKey string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userKey]
	return s, ok
}

// Put installs a session for the user. It returns false when the user
// already owns a different live session, without replacing it.
func (r *Registry) Put(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.UserKey]; ok && existing != s {
		return false
	}
	r.sessions[s.UserKey] = s
	return true
}

// Remove drops the user's entry if it still points at s.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[s.UserKey]; ok && existing == s {
		delete(r.sessions, s.UserKey)
	}
}

// Swap removes and returns the user's current session so the caller can
// stop it before installing a replacement.
func (r *Registry) Swap(userKey string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userKey]
	if ok {
		delete(r.sessions, userKey)
	}
	return s, ok
}

// All returns every live session.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
