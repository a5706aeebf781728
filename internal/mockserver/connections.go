package mockserver

import (
	"sync"

	"github.com/coder/websocket"
)

// ConnectionManager tracks sockets and which player each one speaks for.
type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	players     map[string]string          // playerID → connectionID
	mu          sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		players:     make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// RemoveConnection drops the socket and returns the player bound to it.
func (cm *ConnectionManager) RemoveConnection(id string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	for playerID, connID := range cm.players {
		if connID == id {
			delete(cm.players, playerID)
			return playerID
		}
	}
	return ""
}

// BindPlayer maps playerID to connectionID, replacing any previous binding.
func (cm *ConnectionManager) BindPlayer(playerID, connectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.players[playerID] = connectionID
}

func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

func (cm *ConnectionManager) GetPlayerConnection(playerID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[cm.players[playerID]]
}

// All returns every open socket.
func (cm *ConnectionManager) All() []*websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conns := make([]*websocket.Conn, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	return conns
}
