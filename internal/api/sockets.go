package api

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// MaxSocketsPerUser bounds concurrent chat websockets of one user.
const MaxSocketsPerUser = 8

// SocketRegistry tracks open chat websockets per user.
type SocketRegistry struct {
	mu     sync.Mutex
	active map[string]map[*websocket.Conn]struct{}
}

// NewSocketRegistry creates an empty registry.
func NewSocketRegistry() *SocketRegistry {
	return &SocketRegistry{
		active: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register adds conn for userID. It returns false when the user already has
// MaxSocketsPerUser open connections.
func (m *SocketRegistry) Register(userID string, conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[userID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		m.active[userID] = conns
	}
	if len(conns) >= MaxSocketsPerUser {
		return false
	}
	conns[conn] = struct{}{}
	slog.Debug("Chat socket registered", "user_id", userID, "open", len(conns))
	return true
}

// Unregister removes conn for userID.
func (m *SocketRegistry) Unregister(userID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.active, userID)
		}
	}
}

// Count returns the number of open sockets of userID.
func (m *SocketRegistry) Count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active[userID])
}

// CloseAll closes every registered socket, for server shutdown.
func (m *SocketRegistry) CloseAll(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, conns := range m.active {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, reason)
		}
		delete(m.active, userID)
	}
}
