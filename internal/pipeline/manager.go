package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Factory builds a new Session for a project.
type Factory func(projectID string) *Session

// Manager keeps the live sessions served by the HTTP API.
type Manager struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Sessions idle for longer than ttl are
// evicted by Prune; a zero ttl keeps them until deleted.
func NewManager(factory Factory, ttl time.Duration) *Manager {
	return &Manager{
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session for projectID.
func (m *Manager) Create(projectID string) *Session {
	s := m.factory(projectID)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete resets and forgets the session with id.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Reset()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops sessions that are not busy and have not changed within the
// ttl. It returns the number removed.
func (m *Manager) Prune() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		snap := s.Snapshot()
		if snap.Phase.Busy() || snap.UpdatedAt.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	if removed > 0 {
		zap.L().Debug("pipeline: pruned sessions", zap.Int("removed", removed))
	}
	return removed
}
