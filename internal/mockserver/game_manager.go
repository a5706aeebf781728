package mockserver

import (
	"errors"
	"math"
	"sort"
	"time"

	"guessr-client/internal/game"
	"guessr-client/internal/protocol"
)

var (
	ErrGameNotFound    = errors.New("GAME_NOT_FOUND: Game not found")
	ErrGameStarted     = errors.New("GAME_ALREADY_STARTED: Cannot join game in progress")
	ErrNotInGame       = errors.New("NOT_IN_GAME: No active game session")
	ErrAlreadyInGame   = errors.New("ALREADY_IN_GAME: Player is already in a game")
	ErrNoPanoramas     = errors.New("NO_PANORAMAS: At least one panorama is required")
	ErrWrongPhase      = errors.New("WRONG_PHASE: Action not allowed right now")
	ErrAlreadyGuessed  = errors.New("ALREADY_GUESSED: Guess already submitted")
	ErrBadVisibility   = errors.New("BAD_VISIBILITY: Visibility must be public or private")
	ErrRoundIndexRange = errors.New("ROUND_INDEX: Round index out of range")
)

const maxScore = 5000

type GameStatus string

const (
	StatusLobby        GameStatus = "lobby"
	StatusPlaying      GameStatus = "playing"
	StatusIntermission GameStatus = "intermission"
	StatusFinished     GameStatus = "finished"
)

// ActiveGame is the authoritative state of one game.
type ActiveGame struct {
	GameID     string
	Visibility protocol.Visibility
	Panoramas  []game.Location
	Status     GameStatus
	Order      []string
	Players    map[string]*PlayerSlot
	RoundIndex int
	RoundStart time.Time
	CreatedAt  time.Time
}

type PlayerSlot struct {
	Ready   bool
	Guessed bool
	Rounds  []game.Round
}

func (g *ActiveGame) lobbyPlayers() []protocol.PlayerLobbyData {
	players := make([]protocol.PlayerLobbyData, 0, len(g.Order))
	for _, id := range g.Order {
		players = append(players, protocol.PlayerLobbyData{PlayerID: id, Ready: g.Players[id].Ready})
	}
	return players
}

func (g *ActiveGame) panorama(index int) game.Location {
	return g.Panoramas[index%len(g.Panoramas)]
}

func (g *ActiveGame) all(pred func(*PlayerSlot) bool) bool {
	if len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		if !pred(p) {
			return false
		}
	}
	return true
}

// GameManager holds every game. Callers serialize access.
type GameManager struct {
	matchSize int
	games     map[string]*ActiveGame
	byPlayer  map[string]string // player id → game id
	usedCodes map[string]bool
	now       func() time.Time
}

// NewGameManager creates a new game manager
func NewGameManager(matchSize int) *GameManager {
	return &GameManager{
		matchSize: matchSize,
		games:     make(map[string]*ActiveGame),
		byPlayer:  make(map[string]string),
		usedCodes: make(map[string]bool),
		now:       time.Now,
	}
}

// CreateGame opens a lobby owned by playerID.
func (gm *GameManager) CreateGame(playerID string, req protocol.CreateGamePayload) (*ActiveGame, error) {
	if _, busy := gm.byPlayer[playerID]; busy {
		return nil, ErrAlreadyInGame
	}
	if len(req.Panoramas) == 0 {
		return nil, ErrNoPanoramas
	}
	if !req.Visibility.Valid() {
		return nil, ErrBadVisibility
	}

	gameID := GenerateGameID(gm.usedCodes)
	gm.usedCodes[gameID] = true

	g := &ActiveGame{
		GameID:     gameID,
		Visibility: req.Visibility,
		Panoramas:  append([]game.Location(nil), req.Panoramas...),
		Status:     StatusLobby,
		Players:    make(map[string]*PlayerSlot),
		CreatedAt:  gm.now(),
	}
	gm.games[gameID] = g
	gm.addPlayer(g, playerID)
	return g, nil
}

// JoinGame adds playerID to a game that is still in the lobby.
func (gm *GameManager) JoinGame(playerID, gameID string) (*ActiveGame, error) {
	gameID = NormalizeGameID(gameID)
	if err := ValidateGameID(gameID); err != nil {
		return nil, err
	}
	if _, busy := gm.byPlayer[playerID]; busy {
		return nil, ErrAlreadyInGame
	}

	g, ok := gm.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.Status != StatusLobby {
		return nil, ErrGameStarted
	}

	gm.addPlayer(g, playerID)
	return g, nil
}

func (gm *GameManager) addPlayer(g *ActiveGame, playerID string) {
	g.Players[playerID] = &PlayerSlot{Rounds: game.EmptyRounds(gm.matchSize)}
	g.Order = append(g.Order, playerID)
	gm.byPlayer[playerID] = g.GameID
}

// GameOf returns the game playerID is in.
func (gm *GameManager) GameOf(playerID string) (*ActiveGame, error) {
	gameID, ok := gm.byPlayer[playerID]
	if !ok {
		return nil, ErrNotInGame
	}
	return gm.games[gameID], nil
}

// SetReady updates readiness and reports whether the game should start.
func (gm *GameManager) SetReady(playerID string, ready bool) (*ActiveGame, bool, error) {
	g, err := gm.GameOf(playerID)
	if err != nil {
		return nil, false, err
	}
	if g.Status != StatusLobby {
		return nil, false, ErrWrongPhase
	}
	g.Players[playerID].Ready = ready
	return g, g.all(func(p *PlayerSlot) bool { return p.Ready }), nil
}

// StartRound moves g into round index and stamps the panorama on every player.
func (gm *GameManager) StartRound(g *ActiveGame, index int) (protocol.NextRoundPayload, error) {
	if index < 0 || index >= gm.matchSize {
		return protocol.NextRoundPayload{}, ErrRoundIndexRange
	}
	pano := g.panorama(index)
	for _, p := range g.Players {
		p.Guessed = false
		p.Rounds[index].PanoramaID = pano.ID
		p.Rounds[index].Location = pano.Point()
	}
	g.RoundIndex = index
	g.RoundStart = gm.now()
	g.Status = StatusPlaying
	return protocol.NextRoundPayload{PanoramaID: pano.ID, RoundIndex: index}, nil
}

// Guess scores a guess and reports whether every player has guessed.
func (gm *GameManager) Guess(playerID string, at game.Point) (*ActiveGame, bool, error) {
	g, err := gm.GameOf(playerID)
	if err != nil {
		return nil, false, err
	}
	if g.Status != StatusPlaying {
		return nil, false, ErrWrongPhase
	}
	p := g.Players[playerID]
	if p.Guessed {
		return nil, false, ErrAlreadyGuessed
	}

	r := &p.Rounds[g.RoundIndex]
	r.GuessLocation = at
	r.Distance = math.Hypot(at.X-r.Location.X, at.Y-r.Location.Y)
	r.Score = math.Max(0, maxScore-r.Distance)
	r.Time = float64(gm.now().Sub(g.RoundStart).Milliseconds())
	r.Finished = true
	p.Guessed = true

	return g, g.all(func(p *PlayerSlot) bool { return p.Guessed }), nil
}

// EndRound closes the current round and returns every player's result.
func (gm *GameManager) EndRound(g *ActiveGame) protocol.RoundEndedPayload {
	rounds := make(map[string]game.Round, len(g.Players))
	for id, p := range g.Players {
		p.Rounds[g.RoundIndex].ReadyForNext = false
		rounds[id] = p.Rounds[g.RoundIndex]
	}
	g.Status = StatusIntermission
	return protocol.RoundEndedPayload{Rounds: rounds}
}

// ReadyForNext marks playerID and reports whether everyone wants to advance.
func (gm *GameManager) ReadyForNext(playerID string) (*ActiveGame, bool, error) {
	g, err := gm.GameOf(playerID)
	if err != nil {
		return nil, false, err
	}
	if g.Status != StatusIntermission {
		return nil, false, ErrWrongPhase
	}
	g.Players[playerID].Rounds[g.RoundIndex].ReadyForNext = true
	return g, g.all(func(p *PlayerSlot) bool { return p.Rounds[g.RoundIndex].ReadyForNext }), nil
}

// RoundSettled reports whether the remaining players of g have all done what
// the current phase waits for: guessed while playing, asked for the next
// round during intermission.
func (gm *GameManager) RoundSettled(g *ActiveGame) bool {
	switch g.Status {
	case StatusPlaying:
		return g.all(func(p *PlayerSlot) bool { return p.Guessed })
	case StatusIntermission:
		return g.all(func(p *PlayerSlot) bool { return p.Rounds[g.RoundIndex].ReadyForNext })
	}
	return false
}

// LastRound reports whether the current round is the final one.
func (gm *GameManager) LastRound(g *ActiveGame) bool {
	return g.RoundIndex >= gm.matchSize-1
}

// Finish marks g finished and returns every player's rounds.
func (gm *GameManager) Finish(g *ActiveGame) protocol.GameFinishedPayload {
	players := make(map[string][]game.Round, len(g.Players))
	for id, p := range g.Players {
		players[id] = append([]game.Round(nil), p.Rounds...)
	}
	g.Status = StatusFinished
	return protocol.GameFinishedPayload{Players: players}
}

// LeaveGame removes playerID. The game is dropped once empty.
func (gm *GameManager) LeaveGame(playerID string) (*ActiveGame, error) {
	g, err := gm.GameOf(playerID)
	if err != nil {
		return nil, err
	}
	delete(g.Players, playerID)
	delete(gm.byPlayer, playerID)
	for i, id := range g.Order {
		if id == playerID {
			g.Order = append(g.Order[:i], g.Order[i+1:]...)
			break
		}
	}
	if len(g.Players) == 0 {
		delete(gm.games, g.GameID)
	}
	return g, nil
}

// PublicLobbies lists public games still in the lobby, oldest first.
func (gm *GameManager) PublicLobbies() []protocol.Lobby {
	games := make([]*ActiveGame, 0, len(gm.games))
	for _, g := range gm.games {
		if g.Status == StatusLobby && g.Visibility == protocol.VisibilityPublic {
			games = append(games, g)
		}
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].GameID < games[j].GameID
		}
		return games[i].CreatedAt.Before(games[j].CreatedAt)
	})

	lobbies := make([]protocol.Lobby, 0, len(games))
	for _, g := range games {
		lobbies = append(lobbies, protocol.Lobby{GameID: g.GameID, Players: g.lobbyPlayers()})
	}
	return lobbies
}
