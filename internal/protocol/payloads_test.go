package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"guessr-client/internal/game"
	"guessr-client/internal/protocol"
)

func TestRequestTypes_WireValues(t *testing.T) {
	assert := assert.New(t)

	types := protocol.RequestTypes()
	assert.Len(types, 19)
	for i, rt := range types {
		assert.Equal(i, int(rt))
		assert.True(rt.Valid())
	}

	assert.Equal("CREATE_GAME", protocol.CreateGame.String())
	assert.Equal("OTHER_PLAYER_LEFT", protocol.OtherPlayerLeft.String())
	assert.Equal(18, int(protocol.OtherPlayerLeft))
	assert.False(protocol.RequestType(19).Valid())
	assert.False(protocol.RequestType(-1).Valid())
	assert.Equal("UNKNOWN(19)", protocol.RequestType(19).String())
}

// Every request type has a schema, and the decoded variant reports the same
// type it was decoded for.
func TestDecodePayload_EveryTypeHasSchema(t *testing.T) {
	samples := map[protocol.RequestType]string{
		protocol.CreateGame:             `{"panoramas":[{"id":1,"x":1,"y":2,"z":3}],"visibility":"public"}`,
		protocol.JoinGame:               `{"game_id":"ABCDEF"}`,
		protocol.JoinedGame:             `{"game_id":"ABCDEF","players":[{"player_id":"a","ready":false}]}`,
		protocol.OtherPlayerJoined:      `{"player_id":"b"}`,
		protocol.ChangeReadyStatus:      `{"ready":true}`,
		protocol.OtherPlayerReady:       `{"player_id":"b","ready":true}`,
		protocol.NextRound:              `{"panorama_id":4,"round_index":0}`,
		protocol.GuessLocation:          `{"location":{"x":1,"y":2}}`,
		protocol.OtherPlayerGuessed:     `{"player_id":"b"}`,
		protocol.RoundEnded:             `{"rounds":{}}`,
		protocol.GotoNextRound:          `{}`,
		protocol.GameFinished:           `{"players":{}}`,
		protocol.Aborted:                `{"reason":"bye"}`,
		protocol.Error:                  `{"reason":"bad"}`,
		protocol.Ping:                   `{}`,
		protocol.RoundTimelimit:         `{"time":60000}`,
		protocol.GotoNextRoundTimelimit: `{"time":15000}`,
		protocol.LeaveGame:              `{}`,
		protocol.OtherPlayerLeft:        `{"player_id":"b"}`,
	}

	for _, rt := range protocol.RequestTypes() {
		t.Run(rt.String(), func(t *testing.T) {
			raw, ok := samples[rt]
			if !assert.True(t, ok, "no sample for %s", rt) {
				return
			}
			p, err := protocol.DecodePayload(rt, json.RawMessage(raw))
			assert.NoError(t, err)
			assert.Equal(t, rt, p.RequestType())
		})
	}
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := protocol.DecodePayload(protocol.RequestType(99), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
}

func TestDecodePayload_MissingRequiredKeys(t *testing.T) {
	cases := []struct {
		name string
		rt   protocol.RequestType
		raw  string
	}{
		{"joined without players", protocol.JoinedGame, `{"game_id":"ABCDEF"}`},
		{"ready without ready", protocol.OtherPlayerReady, `{"player_id":"b"}`},
		{"next round without index", protocol.NextRound, `{"panorama_id":1}`},
		{"null required value", protocol.Aborted, `{"reason":null}`},
		{"null payload", protocol.RoundEnded, `null`},
		{"array payload", protocol.Error, `["x"]`},
		{"wrong value type", protocol.RoundTimelimit, `{"time":"soon"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.DecodePayload(tc.rt, json.RawMessage(tc.raw))
			assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
		})
	}
}

func TestDecodePayload_Validation(t *testing.T) {
	cases := []struct {
		name string
		rt   protocol.RequestType
		raw  string
	}{
		{"duplicate joined players", protocol.JoinedGame, `{"game_id":"G","players":[{"player_id":"a"},{"player_id":"a"}]}`},
		{"empty joined player id", protocol.JoinedGame, `{"game_id":"G","players":[{"player_id":""}]}`},
		{"empty game id", protocol.JoinedGame, `{"game_id":"","players":[]}`},
		{"negative round index", protocol.NextRound, `{"panorama_id":1,"round_index":-1}`},
		{"empty other player id", protocol.OtherPlayerLeft, `{"player_id":""}`},
		{"bad visibility", protocol.CreateGame, `{"panoramas":[],"visibility":"friends"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.DecodePayload(tc.rt, json.RawMessage(tc.raw))
			assert.ErrorIs(t, err, protocol.ErrInvalidPayload)
		})
	}
}

func TestDecodePayload_EmptyBodiedTypesAcceptNull(t *testing.T) {
	for _, rt := range []protocol.RequestType{protocol.Ping, protocol.GotoNextRound, protocol.LeaveGame} {
		p, err := protocol.DecodePayload(rt, json.RawMessage(`null`))
		assert.NoError(t, err, rt.String())
		assert.Equal(t, rt, p.RequestType())
	}
}

func TestDecodePayload_RoundEnded(t *testing.T) {
	assert := assert.New(t)

	raw := `{"rounds":{"a":{"location":{"x":1,"y":2},"guess_location":{"x":3,"y":4},"distance":2.8,"time":1500,"score":4997.2,"panorama_id":7,"finished":true,"ready_for_next":false}}}`
	p, err := protocol.DecodePayload(protocol.RoundEnded, json.RawMessage(raw))
	assert.NoError(err)

	ended := p.(protocol.RoundEndedPayload)
	assert.Equal(game.Round{
		Location:      game.Point{X: 1, Y: 2},
		GuessLocation: game.Point{X: 3, Y: 4},
		Distance:      2.8,
		Time:          1500,
		Score:         4997.2,
		PanoramaID:    7,
		Finished:      true,
	}, ended.Rounds["a"])
}

func TestVisibility(t *testing.T) {
	assert.True(t, protocol.VisibilityPublic.Valid())
	assert.True(t, protocol.VisibilityPrivate.Valid())
	assert.False(t, protocol.Visibility("").Valid())
}
