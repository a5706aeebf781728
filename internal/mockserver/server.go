package mockserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"guessr-client/internal/protocol"
)

const (
	writeWait          = 3 * time.Second
	roundTimelimit     = 60 * time.Second
	nextRoundTimelimit = 15 * time.Second

	maxMessagesPerSecond = 20
)

// Server is an in-memory game server speaking the client protocol. It
// exists for tests and local runs; it keeps no state across restarts.
type Server struct {
	mu                sync.Mutex
	gameManager       *GameManager
	connectionManager *ConnectionManager
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth
	pings             atomic.Int64
	log               *zap.Logger
}

// New creates a mock server for matches of matchSize rounds.
func New(matchSize int, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		gameManager:       NewGameManager(matchSize),
		connectionManager: NewConnectionManager(),
		rateLimiter:       NewRateLimiter(maxMessagesPerSecond, time.Second),
		connectionHealth:  NewConnectionHealth(),
		log:               log,
	}
}

// RegisterRoutes mounts /ws, /lobby and /health.
func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.websocketHandler)
	r.Get("/lobby", s.lobbyHandler)
	r.Get("/health", s.healthHandler)
	return r
}

func (s *Server) lobbyHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	lobbies := s.gameManager.PublicLobbies()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(lobbies); err != nil {
		s.log.Error("Failed to write lobby response", zap.Error(err))
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"up"}`))
}

// PingAll sends PING to every connection.
func (s *Server) PingAll(ctx context.Context) {
	data, _ := protocol.EncodeResponse(protocol.Ping, protocol.PingPayload{})
	for _, conn := range s.connectionManager.All() {
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			s.log.Warn("Failed to send ping", zap.Error(err))
		}
	}
}

// Connections is the number of open sockets.
func (s *Server) Connections() int {
	return len(s.connectionManager.All())
}

// Pings is the number of PING envelopes received from clients.
func (s *Server) Pings() int64 {
	return s.pings.Load()
}

// Send delivers one message to playerID, for scripting server behavior
// such as ABORTED.
func (s *Server) Send(ctx context.Context, playerID string, t protocol.RequestType, payload protocol.Payload) error {
	conn := s.connectionManager.GetPlayerConnection(playerID)
	if conn == nil {
		return ErrNotInGame
	}
	return s.sendMessage(ctx, conn, t, payload)
}

// SendRaw writes data unchanged to playerID's socket.
func (s *Server) SendRaw(ctx context.Context, playerID string, data []byte) error {
	conn := s.connectionManager.GetPlayerConnection(playerID)
	if conn == nil {
		return ErrNotInGame
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// CloseInactive closes every connection that sent nothing for longer than
// timeout and returns how many were closed.
func (s *Server) CloseInactive(timeout time.Duration) int {
	closed := 0
	for _, connID := range s.connectionHealth.Inactive(timeout) {
		conn := s.connectionManager.GetConnection(connID)
		if conn == nil {
			continue
		}
		s.log.Info("Closing inactive connection", zap.String("connection", connID))
		// Close waits for the peer's reply; do not hold up the sweep.
		go conn.Close(websocket.StatusPolicyViolation, "inactive")
		closed++
	}
	return closed
}
