// Package session tracks live comparison sessions: the pair of annotated
// documents and the sync coordinator that keeps their renderings aligned.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sunzi-skynet/contentcheck-3000/internal/viewsync"
)

// Session is one active comparison. The coordinator and its measurement
// buffer are owned by this session alone, so concurrent comparisons cannot
// cross-contaminate each other's alignment cycles.
type Session struct {
	ID          string
	SourceURL   string
	TargetURL   string
	SourceDoc   string
	TargetDoc   string
	Coordinator *viewsync.Coordinator
	CreatedAt   time.Time
	LastAccess  time.Time
}

// Manager handles session lifecycle.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewManager creates a session manager. A zero ttl defaults to one hour.
func NewManager(ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// NewID returns a fresh session identifier. Callers need the identifier
// before creating the session because it is baked into the annotated
// documents' surface scripts.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Create registers a session.
func (m *Manager) Create(s *Session) {
	now := time.Now()
	s.CreatedAt = now
	s.LastAccess = now
	if s.Coordinator == nil {
		s.Coordinator = viewsync.NewCoordinator()
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

// Get retrieves a session by ID, refreshing its last-access time. Expired
// sessions are dropped on access.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, false
	}
	if time.Since(s.LastAccess) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	s.LastAccess = time.Now()
	return s, true
}

// Delete removes a session and disables its coordinator so surfaces stop
// receiving sync traffic.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	s, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if exists && s.Coordinator != nil {
		s.Coordinator.Disable()
	}
}

// CleanupExpired removes sessions idle past the TTL and returns the count.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastAccess.Before(cutoff) {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
