package mockserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"guessr-client/internal/protocol"
)

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("Failed to open websocket", zap.Error(err))
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log := s.log.With(zap.String("connection", connectionID))
	log.Debug("New connection")
	s.connectionHealth.UpdateActivity(connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer func() {
		s.rateLimiter.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		playerID := s.connectionManager.RemoveConnection(connectionID)
		log.Debug("Connection closed")
		if playerID != "" {
			s.mu.Lock()
			s.leave(playerID)
			s.mu.Unlock()
		}
	}()

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			log.Debug("Connection read error", zap.Error(err))
			return
		}

		s.connectionHealth.UpdateActivity(connectionID)

		if !s.rateLimiter.Allow(connectionID) {
			log.Warn("Rate limited")
			s.sendError(socket, ErrRateLimited.Error())
			continue
		}

		if msgType != websocket.MessageText {
			log.Warn("Non-text input")
			continue
		}

		t, req, err := protocol.DecodeRequest(data)
		if err != nil {
			log.Warn("Invalid envelope", zap.Error(err))
			s.sendError(socket, "Invalid envelope")
			continue
		}
		if req.PlayerID == "" {
			s.sendError(socket, "Missing player_id")
			continue
		}
		s.connectionManager.BindPlayer(req.PlayerID, connectionID)

		payload, err := protocol.DecodePayload(t, req.Payload)
		if err != nil {
			log.Warn("Invalid payload", zap.Stringer("type", t), zap.Error(err))
			s.sendError(socket, err.Error())
			continue
		}

		log.Debug("Message", zap.Stringer("type", t), zap.String("player_id", req.PlayerID))

		s.mu.Lock()
		s.route(socket, req.PlayerID, payload)
		s.mu.Unlock()
	}
}

func (s *Server) route(socket *websocket.Conn, playerID string, payload protocol.Payload) {
	switch p := payload.(type) {
	case protocol.PingPayload:
		s.pings.Add(1)

	case protocol.CreateGamePayload:
		s.handleCreateGame(socket, playerID, p)

	case protocol.JoinGamePayload:
		s.handleJoinGame(socket, playerID, p)

	case protocol.ChangeReadyStatusPayload:
		s.handleChangeReadyStatus(socket, playerID, p)

	case protocol.GuessLocationPayload:
		s.handleGuessLocation(socket, playerID, p)

	case protocol.GotoNextRoundPayload:
		s.handleGotoNextRound(socket, playerID)

	case protocol.LeaveGamePayload:
		s.leave(playerID)

	default:
		s.sendError(socket, fmt.Sprintf("Unsupported message type: %s", payload.RequestType()))
	}
}

func (s *Server) handleCreateGame(socket *websocket.Conn, playerID string, p protocol.CreateGamePayload) {
	g, err := s.gameManager.CreateGame(playerID, p)
	if err != nil {
		s.sendError(socket, err.Error())
		return
	}
	s.log.Info("Game created", zap.String("game_id", g.GameID), zap.String("player_id", playerID))

	s.sendMessage(context.Background(), socket, protocol.JoinedGame, protocol.JoinedGamePayload{
		GameID:  g.GameID,
		Players: g.lobbyPlayers(),
	})
}

func (s *Server) handleJoinGame(socket *websocket.Conn, playerID string, p protocol.JoinGamePayload) {
	g, err := s.gameManager.JoinGame(playerID, p.GameID)
	if err != nil {
		s.sendError(socket, err.Error())
		return
	}

	s.sendMessage(context.Background(), socket, protocol.JoinedGame, protocol.JoinedGamePayload{
		GameID:  g.GameID,
		Players: g.lobbyPlayers(),
	})
	s.broadcast(g, playerID, protocol.OtherPlayerJoined, protocol.OtherPlayerJoinedPayload{PlayerID: playerID})
}

func (s *Server) handleChangeReadyStatus(socket *websocket.Conn, playerID string, p protocol.ChangeReadyStatusPayload) {
	g, allReady, err := s.gameManager.SetReady(playerID, p.Ready)
	if err != nil {
		s.sendError(socket, err.Error())
		return
	}

	// The sender also receives the update so its own registry entry follows.
	s.broadcast(g, "", protocol.OtherPlayerReady, protocol.OtherPlayerReadyPayload{PlayerID: playerID, Ready: p.Ready})

	if allReady {
		s.startRound(g, 0)
	}
}

func (s *Server) handleGuessLocation(socket *websocket.Conn, playerID string, p protocol.GuessLocationPayload) {
	g, allGuessed, err := s.gameManager.Guess(playerID, p.Location)
	if err != nil {
		s.sendError(socket, err.Error())
		return
	}

	s.broadcast(g, playerID, protocol.OtherPlayerGuessed, protocol.OtherPlayerGuessedPayload{PlayerID: playerID})

	if allGuessed {
		s.endRound(g)
	}
}

func (s *Server) endRound(g *ActiveGame) {
	s.broadcast(g, "", protocol.RoundEnded, s.gameManager.EndRound(g))
	s.broadcast(g, "", protocol.GotoNextRoundTimelimit, protocol.GotoNextRoundTimelimitPayload{
		Time: float64(nextRoundTimelimit.Milliseconds()),
	})
}

func (s *Server) handleGotoNextRound(socket *websocket.Conn, playerID string) {
	g, allReady, err := s.gameManager.ReadyForNext(playerID)
	if err != nil {
		s.sendError(socket, err.Error())
		return
	}
	if allReady {
		s.advance(g)
	}
}

// advance finishes g after its last round and starts the next one otherwise.
func (s *Server) advance(g *ActiveGame) {
	if s.gameManager.LastRound(g) {
		s.broadcast(g, "", protocol.GameFinished, s.gameManager.Finish(g))
		s.log.Info("Game finished", zap.String("game_id", g.GameID))
		return
	}
	s.startRound(g, g.RoundIndex+1)
}

func (s *Server) startRound(g *ActiveGame, index int) {
	next, err := s.gameManager.StartRound(g, index)
	if err != nil {
		s.broadcast(g, "", protocol.Error, protocol.ErrorPayload{Reason: err.Error()})
		return
	}
	s.broadcast(g, "", protocol.NextRound, next)
	s.broadcast(g, "", protocol.RoundTimelimit, protocol.RoundTimelimitPayload{
		Time: float64(roundTimelimit.Milliseconds()),
	})
}

func (s *Server) leave(playerID string) {
	g, err := s.gameManager.LeaveGame(playerID)
	if err != nil {
		return
	}
	s.broadcast(g, playerID, protocol.OtherPlayerLeft, protocol.OtherPlayerLeftPayload{PlayerID: playerID})

	if len(g.Players) == 1 && g.Status != StatusLobby && g.Status != StatusFinished {
		s.broadcast(g, "", protocol.Aborted, protocol.AbortedPayload{Reason: "all other players left"})
		return
	}

	// The leaver may have been the last one the phase was waiting for.
	if s.gameManager.RoundSettled(g) {
		switch g.Status {
		case StatusPlaying:
			s.endRound(g)
		case StatusIntermission:
			s.advance(g)
		}
	}
}

func (s *Server) sendMessage(ctx context.Context, socket *websocket.Conn, t protocol.RequestType, payload protocol.Payload) error {
	data, err := protocol.EncodeResponse(t, payload)
	if err != nil {
		return fmt.Errorf("Marshal error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := socket.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.Warn("Failed to send message", zap.Stringer("type", t), zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) sendError(socket *websocket.Conn, reason string) {
	s.sendMessage(context.Background(), socket, protocol.Error, protocol.ErrorPayload{Reason: reason})
}

// broadcast sends to every player of g except skip.
func (s *Server) broadcast(g *ActiveGame, skip string, t protocol.RequestType, payload protocol.Payload) {
	for _, id := range g.Order {
		if id == skip {
			continue
		}
		conn := s.connectionManager.GetPlayerConnection(id)
		if conn == nil {
			continue
		}
		s.sendMessage(context.Background(), conn, t, payload)
	}
}
