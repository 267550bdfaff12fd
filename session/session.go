// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/wordchain/network"
)

// Session is one connected bridge.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt  time.Time
	lastActive time.Time
	// 订阅的服务器
	servers map[string]struct{}
	mutex   sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		servers:    make(map[string]struct{}),
	}
}

// Subscribe adds servers whose decisions the session receives.
func (s *Session) Subscribe(serverIDs ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, id := range serverIDs {
		s.servers[id] = struct{}{}
	}
}

func (s *Session) Unsubscribe(serverIDs ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, id := range serverIDs {
		delete(s.servers, id)
	}
}

func (s *Session) Subscribed(serverID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.servers[serverID]
	return ok
}

// Touch marks the session as alive.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Send(msgID uint16, data []byte) error {
	return s.Conn.Send(msgID, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// All returns a snapshot of the sessions.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Subscribers returns the sessions subscribed to serverID.
func (m *Manager) Subscribers(serverID string) []*Session {
	var result []*Session
	for _, session := range m.All() {
		if session.Subscribed(serverID) {
			result = append(result, session)
		}
	}
	return result
}

// Idle returns the sessions without activity since before.
func (m *Manager) Idle(before time.Time) []*Session {
	var result []*Session
	for _, session := range m.All() {
		if session.LastActive().Before(before) {
			result = append(result, session)
		}
	}
	return result
}
