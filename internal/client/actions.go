package client

import (
	"context"

	"guessr-client/internal/game"
	"guessr-client/internal/protocol"
)

// The actions below are fire-and-forget: their effect, if any, arrives later
// as an inbound message. The server decides whether an action is valid.

// CreateGame asks the server to open a new game over panoramas.
func (c *Client) CreateGame(ctx context.Context, panoramas []game.Location, visibility protocol.Visibility) error {
	return c.Send(ctx, protocol.CreateGame, protocol.CreateGamePayload{
		Panoramas:  panoramas,
		Visibility: visibility,
	})
}

// JoinGame asks to join the game with the given code.
func (c *Client) JoinGame(ctx context.Context, gameID string) error {
	return c.Send(ctx, protocol.JoinGame, protocol.JoinGamePayload{GameID: gameID})
}

// LeaveGame leaves the current game.
func (c *Client) LeaveGame(ctx context.Context) error {
	return c.Send(ctx, protocol.LeaveGame, protocol.LeaveGamePayload{})
}

// ChangeReadyStatus toggles lobby readiness.
func (c *Client) ChangeReadyStatus(ctx context.Context, ready bool) error {
	return c.Send(ctx, protocol.ChangeReadyStatus, protocol.ChangeReadyStatusPayload{Ready: ready})
}

// GuessLocation submits a guess for the current round.
func (c *Client) GuessLocation(ctx context.Context, location game.Point) error {
	return c.Send(ctx, protocol.GuessLocation, protocol.GuessLocationPayload{Location: location})
}

// NextRound tells the server this player is ready for the next round.
func (c *Client) NextRound(ctx context.Context) error {
	return c.Send(ctx, protocol.GotoNextRound, protocol.GotoNextRoundPayload{})
}
