// ABOUTME: In-memory concept graph sessions with TTL cleanup and a capacity limit.
// ABOUTME: Each session owns an undo/redo stack and serializes access to it with a mutex.
package server

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/conceptgraph/graph"
)

// Session is one interactive graph. Handlers hold mu while touching stack.
type Session struct {
	mu         sync.Mutex
	ID         string
	Name       string
	CreatedAt  time.Time
	LastAccess time.Time
	stack      *graph.Stack
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// SessionStore holds sessions by id.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// NewSessionStore creates a store. maxSessions of zero means no limit; a ttl
// of zero disables expiry.
func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Add registers a new session over stack, evicting the least recently used
// session when the store is full.
func (s *SessionStore) Add(name string, stack *graph.Stack) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		var oldestID string
		var oldestTime time.Time
		for id, sess := range s.sessions {
			if oldestTime.IsZero() || sess.LastAccess.Before(oldestTime) {
				oldestID = id
				oldestTime = sess.LastAccess
			}
		}
		delete(s.sessions, oldestID)
	}

	now := s.now()
	sess := &Session{
		ID:         uuid.New().String(),
		Name:       name,
		CreatedAt:  now,
		LastAccess: now,
		stack:      stack,
	}
	s.sessions[sess.ID] = sess
	return sess
}

// Get retrieves a session by id and updates its LastAccess time.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.LastAccess = s.now()
	return sess, true
}

// Delete removes a session, reporting whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// List returns every session, oldest first.
func (s *SessionStore) List() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, SessionInfo{ID: sess.ID, Name: sess.Name, CreatedAt: sess.CreatedAt, LastAccess: sess.LastAccess})
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle longer than the TTL.
func (s *SessionStore) Cleanup() {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// StartCleanup starts a background cleanup goroutine and returns a stop function.
func (s *SessionStore) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
