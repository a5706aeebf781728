package protocol

import "fmt"

// RequestType is the numeric discriminant carried by every envelope.
type RequestType int

const (
	CreateGame RequestType = iota
	JoinGame
	JoinedGame
	OtherPlayerJoined
	ChangeReadyStatus
	OtherPlayerReady
	NextRound
	GuessLocation
	OtherPlayerGuessed
	RoundEnded
	GotoNextRound
	GameFinished
	Aborted
	Error
	Ping
	RoundTimelimit
	GotoNextRoundTimelimit
	LeaveGame
	OtherPlayerLeft
)

var requestTypeNames = [...]string{
	CreateGame:             "CREATE_GAME",
	JoinGame:               "JOIN_GAME",
	JoinedGame:             "JOINED_GAME",
	OtherPlayerJoined:      "OTHER_PLAYER_JOINED",
	ChangeReadyStatus:      "CHANGE_READY_STATUS",
	OtherPlayerReady:       "OTHER_PLAYER_READY",
	NextRound:              "NEXT_ROUND",
	GuessLocation:          "GUESS_LOCATION",
	OtherPlayerGuessed:     "OTHER_PLAYER_GUESSED",
	RoundEnded:             "ROUND_ENDED",
	GotoNextRound:          "GOTO_NEXT_ROUND",
	GameFinished:           "GAME_FINISHED",
	Aborted:                "ABORTED",
	Error:                  "ERROR",
	Ping:                   "PING",
	RoundTimelimit:         "ROUND_TIMELIMIT",
	GotoNextRoundTimelimit: "GOTO_NEXT_ROUND_TIMELIMIT",
	LeaveGame:              "LEAVE_GAME",
	OtherPlayerLeft:        "OTHER_PLAYER_LEFT",
}

// RequestTypes lists every known request type in wire order.
func RequestTypes() []RequestType {
	types := make([]RequestType, len(requestTypeNames))
	for i := range requestTypeNames {
		types[i] = RequestType(i)
	}
	return types
}

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	return t >= 0 && int(t) < len(requestTypeNames)
}

func (t RequestType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
	return requestTypeNames[t]
}
