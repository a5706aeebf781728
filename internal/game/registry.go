package game

import (
	"errors"
	"fmt"
	"sort"
)

// ErrRoundIndexOutOfRange is returned for an index outside [0, MatchSize).
var ErrRoundIndexOutOfRange = errors.New("round index out of range")

// PlayerData is one player's round history and lobby readiness.
type PlayerData struct {
	Rounds     []Round `json:"rounds"`
	LobbyReady bool    `json:"lobby_ready"`
}

func (p *PlayerData) clone() *PlayerData {
	rounds := make([]Round, len(p.Rounds))
	copy(rounds, p.Rounds)
	return &PlayerData{Rounds: rounds, LobbyReady: p.LobbyReady}
}

// Registry maps player ids to their data. Every entry holds exactly
// MatchSize rounds.
type Registry struct {
	matchSize int
	players   map[string]*PlayerData
}

// NewRegistry creates an empty registry for matches of matchSize rounds.
func NewRegistry(matchSize int) *Registry {
	return &Registry{
		matchSize: matchSize,
		players:   make(map[string]*PlayerData),
	}
}

// MatchSize is the number of rounds each player holds.
func (r *Registry) MatchSize() int { return r.matchSize }

// Len returns the number of registered players.
func (r *Registry) Len() int { return len(r.players) }

// Add creates or replaces the entry for playerID with fresh empty rounds.
func (r *Registry) Add(playerID string, ready bool) {
	r.players[playerID] = &PlayerData{
		Rounds:     EmptyRounds(r.matchSize),
		LobbyReady: ready,
	}
}

// SetReady updates lobby readiness. Unknown players are ignored and false is
// returned.
func (r *Registry) SetReady(playerID string, ready bool) bool {
	p, ok := r.players[playerID]
	if !ok {
		return false
	}
	p.LobbyReady = ready
	return true
}

// Remove deletes playerID and reports whether it was present.
func (r *Registry) Remove(playerID string) bool {
	if _, ok := r.players[playerID]; !ok {
		return false
	}
	delete(r.players, playerID)
	return true
}

func (r *Registry) checkIndex(index int) error {
	if index < 0 || index >= r.matchSize {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrRoundIndexOutOfRange, index, r.matchSize)
	}
	return nil
}

// SetPanorama assigns panoramaID to round index for every player.
func (r *Registry) SetPanorama(index, panoramaID int) error {
	if err := r.checkIndex(index); err != nil {
		return err
	}
	for _, p := range r.players {
		p.Rounds[index].PanoramaID = panoramaID
	}
	return nil
}

// EndRound replaces round index for every registered player present in
// results. ReadyForNext is always reset. It returns the ids that were updated.
func (r *Registry) EndRound(index int, results map[string]Round) ([]string, error) {
	if err := r.checkIndex(index); err != nil {
		return nil, err
	}
	var updated []string
	for id, p := range r.players {
		round, ok := results[id]
		if !ok {
			continue
		}
		round.ReadyForNext = false
		p.Rounds[index] = round
		updated = append(updated, id)
	}
	sort.Strings(updated)
	return updated, nil
}

// Get returns a copy of the entry for playerID.
func (r *Registry) Get(playerID string) (PlayerData, bool) {
	p, ok := r.players[playerID]
	if !ok {
		return PlayerData{}, false
	}
	return *p.clone(), true
}

// IDs returns the registered player ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of every entry.
func (r *Registry) Snapshot() map[string]PlayerData {
	out := make(map[string]PlayerData, len(r.players))
	for id, p := range r.players {
		out[id] = *p.clone()
	}
	return out
}
