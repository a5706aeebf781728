package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"guessr-client/internal/game"
	"guessr-client/internal/protocol"
)

// The server decides the phase: handlers apply its triggers from any
// non-terminal state. Each one checks the transition before touching the
// registry so a refused message leaves the session unchanged.

func (d *Dispatcher) onJoinedGame(_ context.Context, p protocol.JoinedGamePayload) error {
	s := d.session
	s.mu.Lock()
	if from := s.machine.Current(); !game.CanTransition(from, game.StateLobby) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", game.ErrInvalidTransition, from, game.StateLobby)
	}
	if err := s.setGameID(p.GameID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("join %s: %w", p.GameID, err)
	}
	for _, player := range p.Players {
		s.registry.Add(player.PlayerID, player.Ready)
	}
	_ = s.machine.Transition(game.StateLobby)
	state := s.machine.Current()
	s.mu.Unlock()

	d.log.Info("joined game", zap.String("game_id", p.GameID), zap.Int("players", len(p.Players)))
	s.publish(Event{Type: protocol.JoinedGame, State: state})
	return nil
}

func (d *Dispatcher) onOtherPlayerJoined(_ context.Context, p protocol.OtherPlayerJoinedPayload) error {
	s := d.session
	s.mu.Lock()
	if _, exists := s.registry.Get(p.PlayerID); exists {
		s.mu.Unlock()
		d.log.Debug("player already registered", zap.String("player_id", p.PlayerID))
		return nil
	}
	s.registry.Add(p.PlayerID, false)
	state := s.machine.Current()
	s.mu.Unlock()

	s.publish(Event{Type: protocol.OtherPlayerJoined, State: state, PlayerID: p.PlayerID})
	return nil
}

func (d *Dispatcher) onOtherPlayerReady(_ context.Context, p protocol.OtherPlayerReadyPayload) error {
	s := d.session
	s.mu.Lock()
	known := s.registry.SetReady(p.PlayerID, p.Ready)
	state := s.machine.Current()
	s.mu.Unlock()

	if !known {
		d.log.Debug("ready status for unknown player", zap.String("player_id", p.PlayerID))
		return nil
	}
	s.publish(Event{Type: protocol.OtherPlayerReady, State: state, PlayerID: p.PlayerID})
	return nil
}

func (d *Dispatcher) onNextRound(_ context.Context, p protocol.NextRoundPayload) error {
	s := d.session
	s.mu.Lock()
	if from := s.machine.Current(); !game.CanTransition(from, game.StatePlaying) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", game.ErrInvalidTransition, from, game.StatePlaying)
	}
	if err := s.registry.SetPanorama(p.RoundIndex, p.PanoramaID); err != nil {
		s.mu.Unlock()
		return err
	}
	s.roundIndex = p.RoundIndex
	s.currentPanorama = p.PanoramaID
	_ = s.machine.Transition(game.StatePlaying)
	state := s.machine.Current()
	s.mu.Unlock()

	s.publish(Event{
		Type:       protocol.NextRound,
		State:      state,
		RoundIndex: p.RoundIndex,
		PanoramaID: p.PanoramaID,
	})
	return nil
}

func (d *Dispatcher) onOtherPlayerGuessed(_ context.Context, p protocol.OtherPlayerGuessedPayload) error {
	d.session.publish(Event{
		Type:     protocol.OtherPlayerGuessed,
		State:    d.session.State(),
		PlayerID: p.PlayerID,
	})
	return nil
}

func (d *Dispatcher) onRoundEnded(_ context.Context, p protocol.RoundEndedPayload) error {
	s := d.session
	s.mu.Lock()
	if from := s.machine.Current(); !game.CanTransition(from, game.StateIntermission) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", game.ErrInvalidTransition, from, game.StateIntermission)
	}
	updated, err := s.registry.EndRound(s.roundIndex, p.Rounds)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	_ = s.machine.Transition(game.StateIntermission)
	state := s.machine.Current()
	index := s.roundIndex
	s.mu.Unlock()

	d.log.Debug("round ended", zap.Int("round_index", index), zap.Strings("updated", updated))
	s.publish(Event{Type: protocol.RoundEnded, State: state, RoundIndex: index})
	return nil
}

func (d *Dispatcher) onGameFinished(_ context.Context, p protocol.GameFinishedPayload) error {
	s := d.session
	s.mu.Lock()
	if err := s.machine.Transition(game.StateFinished); err != nil {
		s.mu.Unlock()
		return err
	}
	s.final = make(map[string][]game.Round, len(p.Players))
	for id, rounds := range p.Players {
		s.final[id] = append([]game.Round(nil), rounds...)
	}
	s.mu.Unlock()

	d.log.Info("game finished", zap.String("game_id", s.Metadata().GameID))
	s.publish(Event{Type: protocol.GameFinished, State: game.StateFinished})
	return nil
}

func (d *Dispatcher) onAborted(_ context.Context, p protocol.AbortedPayload) error {
	return d.fail(protocol.Aborted, game.StateAborted, p.Reason)
}

func (d *Dispatcher) onError(_ context.Context, p protocol.ErrorPayload) error {
	return d.fail(protocol.Error, game.StateError, p.Reason)
}

func (d *Dispatcher) fail(t protocol.RequestType, to game.State, reason string) error {
	s := d.session
	s.mu.Lock()
	err := s.machine.Fail(to, reason)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	d.log.Error("session ended by server", zap.Stringer("type", t), zap.String("reason", reason))
	s.publish(Event{Type: t, State: to, Reason: reason})
	return nil
}

func (d *Dispatcher) onPing(ctx context.Context, _ protocol.PingPayload) error {
	if d.sender == nil {
		return nil
	}
	if err := d.sender.Send(ctx, protocol.Ping, protocol.PingPayload{}); err != nil {
		return fmt.Errorf("echo ping: %w", err)
	}
	return nil
}

func (d *Dispatcher) onRoundTimelimit(_ context.Context, p protocol.RoundTimelimitPayload) error {
	d.log.Info(fmt.Sprintf("You have %g seconds to guess the location", p.Time/1000))
	d.session.publish(Event{Type: protocol.RoundTimelimit, State: d.session.State(), Time: p.Time})
	return nil
}

func (d *Dispatcher) onGotoNextRoundTimelimit(_ context.Context, p protocol.GotoNextRoundTimelimitPayload) error {
	d.log.Info(fmt.Sprintf("You have %g seconds to go to the next round", p.Time/1000))
	d.session.publish(Event{Type: protocol.GotoNextRoundTimelimit, State: d.session.State(), Time: p.Time})
	return nil
}

func (d *Dispatcher) onOtherPlayerLeft(_ context.Context, p protocol.OtherPlayerLeftPayload) error {
	s := d.session
	s.mu.Lock()
	removed := s.registry.Remove(p.PlayerID)
	state := s.machine.Current()
	s.mu.Unlock()

	if !removed {
		d.log.Debug("unknown player left", zap.String("player_id", p.PlayerID))
	}
	s.publish(Event{Type: protocol.OtherPlayerLeft, State: state, PlayerID: p.PlayerID})
	return nil
}

func (d *Dispatcher) onOutboundOnly(t protocol.RequestType) Handler {
	return func(context.Context, protocol.Payload) error {
		d.log.Warn("server sent a client-only message type", zap.Stringer("type", t))
		return nil
	}
}
