package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"guessr-client/internal/game"
	"guessr-client/internal/protocol"
)

// ErrGameIDAlreadySet is returned when a second JOINED_GAME names another game.
var ErrGameIDAlreadySet = errors.New("game id already set")

// Opened is the Event type published when the transport opens. It is not a
// wire value.
const Opened protocol.RequestType = -1

// Metadata identifies the local player on every outbound envelope.
type Metadata struct {
	PlayerID    string
	GameID      string
	AuthSession string
}

// Event is published to subscribers after an inbound message was applied.
type Event struct {
	Type       protocol.RequestType
	State      game.State
	PlayerID   string
	Reason     string
	Time       float64 // remaining milliseconds for timelimit events
	RoundIndex int
	PanoramaID int
}

// Snapshot is a deep copy of the session state, safe to hand to other
// goroutines.
type Snapshot struct {
	Metadata        Metadata
	State           game.State
	Reason          string
	RoundIndex      int
	CurrentPanorama int
	Players         map[string]game.PlayerData
	Final           map[string][]game.Round
}

// Session owns the state machine and registry of one connection. Mutations
// only come from the dispatcher; the lock exists for observers.
type Session struct {
	mu              sync.RWMutex
	meta            Metadata
	machine         *game.Machine
	registry        *game.Registry
	roundIndex      int
	currentPanorama int
	final           map[string][]game.Round

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	log *zap.Logger
}

// New creates a session in the establishing state.
func New(meta Metadata, matchSize int, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		meta:     meta,
		machine:  game.NewMachine(),
		registry: game.NewRegistry(matchSize),
		subs:     make(map[int]chan Event),
		log:      log,
	}
}

func (s *Session) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// State returns the current game state.
func (s *Session) State() game.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Current()
}

func (s *Session) MatchSize() int {
	return s.registry.MatchSize()
}

// Snapshot copies the full session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var final map[string][]game.Round
	if s.final != nil {
		final = make(map[string][]game.Round, len(s.final))
		for id, rounds := range s.final {
			final[id] = append([]game.Round(nil), rounds...)
		}
	}

	return Snapshot{
		Metadata:        s.meta,
		State:           s.machine.Current(),
		Reason:          s.machine.Reason(),
		RoundIndex:      s.roundIndex,
		CurrentPanorama: s.currentPanorama,
		Players:         s.registry.Snapshot(),
		Final:           final,
	}
}

// MarkOpen moves the session out of establishing once the transport is open.
func (s *Session) MarkOpen() {
	s.mu.Lock()
	err := s.machine.Transition(game.StateLobby)
	state := s.machine.Current()
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("session already open", zap.Error(err))
		return
	}
	s.publish(Event{Type: Opened, State: state})
}

// Subscribe registers an observer. Events are delivered without blocking the
// dispatcher; when the buffer is full the event is dropped. The returned func
// unsubscribes and closes the channel.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Warn("subscriber buffer full, dropping event",
				zap.Int("subscriber", id), zap.Stringer("type", ev.Type))
		}
	}
}

// setGameID stores the game id once per session.
func (s *Session) setGameID(id string) error {
	if s.meta.GameID != "" && s.meta.GameID != id {
		return ErrGameIDAlreadySet
	}
	s.meta.GameID = id
	return nil
}
