package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"guessr-client/internal/protocol"
)

var (
	ErrNoHandler      = errors.New("no handler for type")
	ErrSessionEnded   = errors.New("session is in a terminal state")
	ErrHandlerRefused = errors.New("handler refused message")
)

// Sender transmits an outbound envelope for the session's player.
type Sender interface {
	Send(ctx context.Context, t protocol.RequestType, p protocol.Payload) error
}

// Handler applies one decoded payload.
type Handler func(ctx context.Context, p protocol.Payload) error

// handle adapts a typed handler. The payload was decoded by the schema for
// the same request type, so the assertion only fails on a wiring mistake.
func handle[T protocol.Payload](fn func(context.Context, T) error) Handler {
	return func(ctx context.Context, p protocol.Payload) error {
		v, ok := p.(T)
		if !ok {
			return fmt.Errorf("%w: got %T", protocol.ErrInvalidPayload, p)
		}
		return fn(ctx, v)
	}
}

// Dispatcher routes inbound envelopes to handlers by request type. Dispatch
// must be called from a single goroutine, in arrival order.
type Dispatcher struct {
	session  *Session
	sender   Sender
	handlers map[protocol.RequestType]Handler
	log      *zap.Logger
}

// NewDispatcher wires every request type to its handler. sender may be nil.
func NewDispatcher(s *Session, sender Sender, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		session:  s,
		sender:   sender,
		handlers: make(map[protocol.RequestType]Handler),
		log:      log,
	}

	d.handlers[protocol.JoinedGame] = handle(d.onJoinedGame)
	d.handlers[protocol.OtherPlayerJoined] = handle(d.onOtherPlayerJoined)
	d.handlers[protocol.OtherPlayerReady] = handle(d.onOtherPlayerReady)
	d.handlers[protocol.NextRound] = handle(d.onNextRound)
	d.handlers[protocol.OtherPlayerGuessed] = handle(d.onOtherPlayerGuessed)
	d.handlers[protocol.RoundEnded] = handle(d.onRoundEnded)
	d.handlers[protocol.GameFinished] = handle(d.onGameFinished)
	d.handlers[protocol.Aborted] = handle(d.onAborted)
	d.handlers[protocol.Error] = handle(d.onError)
	d.handlers[protocol.Ping] = handle(d.onPing)
	d.handlers[protocol.RoundTimelimit] = handle(d.onRoundTimelimit)
	d.handlers[protocol.GotoNextRoundTimelimit] = handle(d.onGotoNextRoundTimelimit)
	d.handlers[protocol.OtherPlayerLeft] = handle(d.onOtherPlayerLeft)

	// Outbound-only types. The server never sends these; if it does they are
	// logged and ignored.
	for _, t := range []protocol.RequestType{
		protocol.CreateGame,
		protocol.JoinGame,
		protocol.ChangeReadyStatus,
		protocol.GuessLocation,
		protocol.GotoNextRound,
		protocol.LeaveGame,
	} {
		d.handlers[t] = d.onOutboundOnly(t)
	}

	return d
}

// Handle replaces the handler for t.
func (d *Dispatcher) Handle(t protocol.RequestType, h Handler) {
	d.handlers[t] = h
}

// Dispatch validates one inbound message and runs its handler to completion.
// Failures are logged and returned; none of them affect the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	resp, err := protocol.DecodeResponse(data)
	if err != nil {
		d.log.Error("failed to parse message", zap.Error(err))
		return err
	}

	h, ok := d.handlers[resp.Type]
	if !ok {
		d.log.Error("no handler for type", zap.Stringer("type", resp.Type))
		return fmt.Errorf("%w: %s", ErrNoHandler, resp.Type)
	}

	payload, err := protocol.DecodePayload(resp.Type, resp.Payload)
	if err != nil {
		d.log.Error("payload does not match type", zap.Stringer("type", resp.Type), zap.Error(err))
		return err
	}

	if state := d.session.State(); state.Terminal() && resp.Type != protocol.Ping {
		d.log.Debug("discarding message after terminal state",
			zap.Stringer("type", resp.Type), zap.String("state", string(state)))
		return fmt.Errorf("%w: %s", ErrSessionEnded, state)
	}

	d.log.Debug("Received message", zap.Stringer("type", resp.Type))

	if err := h(ctx, payload); err != nil {
		d.log.Warn("handler refused message", zap.Stringer("type", resp.Type), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrHandlerRefused, resp.Type, err)
	}
	return nil
}
