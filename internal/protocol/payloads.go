package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"guessr-client/internal/game"
)

// ErrInvalidPayload wraps every payload schema violation.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload is the sum type of every message body. Each variant reports the
// request type it belongs to.
type Payload interface {
	RequestType() RequestType
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// PlayerLobbyData is one entry of a lobby listing.
type PlayerLobbyData struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

// Lobby is a public game waiting for players, as served by GET /lobby.
type Lobby struct {
	GameID  string            `json:"game_id"`
	Players []PlayerLobbyData `json:"players"`
}

// ============================================================================
// CLIENT → SERVER
// ============================================================================

type CreateGamePayload struct {
	Panoramas  []game.Location `json:"panoramas"`
	Visibility Visibility      `json:"visibility"`
}

type JoinGamePayload struct {
	GameID string `json:"game_id"`
}

type ChangeReadyStatusPayload struct {
	Ready bool `json:"ready"`
}

type GuessLocationPayload struct {
	Location game.Point `json:"location"`
}

// Empty is the body of GOTO_NEXT_ROUND, LEAVE_GAME and PING.
type Empty struct{}

type GotoNextRoundPayload = Empty

// ============================================================================
// SERVER → CLIENT
// ============================================================================

type JoinedGamePayload struct {
	GameID  string            `json:"game_id"`
	Players []PlayerLobbyData `json:"players"`
}

type OtherPlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
}

type OtherPlayerReadyPayload struct {
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

type NextRoundPayload struct {
	PanoramaID int `json:"panorama_id"`
	RoundIndex int `json:"round_index"`
}

type OtherPlayerGuessedPayload struct {
	PlayerID string `json:"player_id"`
}

type RoundEndedPayload struct {
	Rounds map[string]game.Round `json:"rounds"`
}

type GameFinishedPayload struct {
	Players map[string][]game.Round `json:"players"`
}

type AbortedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// TimelimitPayload carries a remaining time in milliseconds.
type TimelimitPayload struct {
	Time float64 `json:"time"`
}

type OtherPlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// Typed wrappers so every request type maps to a distinct variant.
type (
	PingPayload                   Empty
	LeaveGamePayload              Empty
	RoundTimelimitPayload         TimelimitPayload
	GotoNextRoundTimelimitPayload TimelimitPayload
)

func (CreateGamePayload) RequestType() RequestType             { return CreateGame }
func (JoinGamePayload) RequestType() RequestType               { return JoinGame }
func (JoinedGamePayload) RequestType() RequestType             { return JoinedGame }
func (OtherPlayerJoinedPayload) RequestType() RequestType      { return OtherPlayerJoined }
func (ChangeReadyStatusPayload) RequestType() RequestType      { return ChangeReadyStatus }
func (OtherPlayerReadyPayload) RequestType() RequestType       { return OtherPlayerReady }
func (NextRoundPayload) RequestType() RequestType              { return NextRound }
func (GuessLocationPayload) RequestType() RequestType          { return GuessLocation }
func (OtherPlayerGuessedPayload) RequestType() RequestType     { return OtherPlayerGuessed }
func (RoundEndedPayload) RequestType() RequestType             { return RoundEnded }
func (Empty) RequestType() RequestType                         { return GotoNextRound }
func (GameFinishedPayload) RequestType() RequestType           { return GameFinished }
func (AbortedPayload) RequestType() RequestType                { return Aborted }
func (ErrorPayload) RequestType() RequestType                  { return Error }
func (PingPayload) RequestType() RequestType                   { return Ping }
func (RoundTimelimitPayload) RequestType() RequestType         { return RoundTimelimit }
func (GotoNextRoundTimelimitPayload) RequestType() RequestType { return GotoNextRoundTimelimit }
func (LeaveGamePayload) RequestType() RequestType              { return LeaveGame }
func (OtherPlayerLeftPayload) RequestType() RequestType        { return OtherPlayerLeft }

// ============================================================================
// PER-TYPE SCHEMAS
// ============================================================================

type schema struct {
	required []string
	decode   func(json.RawMessage) (Payload, error)
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

var schemas = map[RequestType]schema{
	CreateGame:             {[]string{"panoramas", "visibility"}, decodeAs[CreateGamePayload]},
	JoinGame:               {[]string{"game_id"}, decodeAs[JoinGamePayload]},
	JoinedGame:             {[]string{"game_id", "players"}, decodeAs[JoinedGamePayload]},
	OtherPlayerJoined:      {[]string{"player_id"}, decodeAs[OtherPlayerJoinedPayload]},
	ChangeReadyStatus:      {[]string{"ready"}, decodeAs[ChangeReadyStatusPayload]},
	OtherPlayerReady:       {[]string{"player_id", "ready"}, decodeAs[OtherPlayerReadyPayload]},
	NextRound:              {[]string{"panorama_id", "round_index"}, decodeAs[NextRoundPayload]},
	GuessLocation:          {[]string{"location"}, decodeAs[GuessLocationPayload]},
	OtherPlayerGuessed:     {[]string{"player_id"}, decodeAs[OtherPlayerGuessedPayload]},
	RoundEnded:             {[]string{"rounds"}, decodeAs[RoundEndedPayload]},
	GotoNextRound:          {nil, decodeAs[Empty]},
	GameFinished:           {[]string{"players"}, decodeAs[GameFinishedPayload]},
	Aborted:                {[]string{"reason"}, decodeAs[AbortedPayload]},
	Error:                  {[]string{"reason"}, decodeAs[ErrorPayload]},
	Ping:                   {nil, decodeAs[PingPayload]},
	RoundTimelimit:         {[]string{"time"}, decodeAs[RoundTimelimitPayload]},
	GotoNextRoundTimelimit: {[]string{"time"}, decodeAs[GotoNextRoundTimelimitPayload]},
	LeaveGame:              {nil, decodeAs[LeaveGamePayload]},
	OtherPlayerLeft:        {[]string{"player_id"}, decodeAs[OtherPlayerLeftPayload]},
}

// DecodePayload checks raw against the schema for t and returns the typed
// variant. Empty-bodied types accept a missing or null payload.
func DecodePayload(t RequestType, raw json.RawMessage) (Payload, error) {
	s, ok := schemas[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown request type %d", ErrInvalidPayload, int(t))
	}

	if isNull(raw) {
		if len(s.required) > 0 {
			return nil, fmt.Errorf("%w: %s payload is empty", ErrInvalidPayload, t)
		}
		raw = json.RawMessage("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s payload is not an object: %v", ErrInvalidPayload, t, err)
	}
	for _, key := range s.required {
		if v, ok := fields[key]; !ok || isNull(v) {
			return nil, fmt.Errorf("%w: %s payload missing %q", ErrInvalidPayload, t, key)
		}
	}

	p, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
	}
	if v, ok := p.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, t, err)
		}
	}
	return p, nil
}

func (p CreateGamePayload) validate() error {
	if !p.Visibility.Valid() {
		return fmt.Errorf("visibility %q", p.Visibility)
	}
	return nil
}

func (p JoinGamePayload) validate() error {
	if p.GameID == "" {
		return errors.New("empty game_id")
	}
	return nil
}

func (p JoinedGamePayload) validate() error {
	if p.GameID == "" {
		return errors.New("empty game_id")
	}
	seen := make(map[string]bool, len(p.Players))
	for _, player := range p.Players {
		if player.PlayerID == "" {
			return errors.New("player with empty player_id")
		}
		if seen[player.PlayerID] {
			return fmt.Errorf("duplicate player_id %q", player.PlayerID)
		}
		seen[player.PlayerID] = true
	}
	return nil
}

func (p OtherPlayerJoinedPayload) validate() error  { return requireID(p.PlayerID) }
func (p OtherPlayerReadyPayload) validate() error   { return requireID(p.PlayerID) }
func (p OtherPlayerGuessedPayload) validate() error { return requireID(p.PlayerID) }
func (p OtherPlayerLeftPayload) validate() error    { return requireID(p.PlayerID) }

func (p NextRoundPayload) validate() error {
	if p.RoundIndex < 0 {
		return fmt.Errorf("negative round_index %d", p.RoundIndex)
	}
	return nil
}

func requireID(id string) error {
	if id == "" {
		return errors.New("empty player_id")
	}
	return nil
}
