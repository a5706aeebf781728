package mockserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"

	"guessr-client/internal/game"
	"guessr-client/internal/lobby"
	"guessr-client/internal/protocol"
)

func setupTestServer(t *testing.T, matchSize int) (*Server, *httptest.Server, string) {
	t.Helper()
	s := New(matchSize, nil)
	srv, url := serve(t, s)
	return s, srv, url
}

func serve(t *testing.T, s *Server) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendRequest(t *testing.T, conn *websocket.Conn, playerID string, p protocol.Payload) {
	t.Helper()
	data, err := protocol.EncodeRequest(protocol.Request{Type: p.RequestType(), PlayerID: playerID, Payload: p})
	assert.NoError(t, err)
	assert.NoError(t, conn.Write(context.Background(), websocket.MessageText, data))
}

func readResponse(t *testing.T, conn *websocket.Conn) (protocol.RequestType, protocol.Payload) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := protocol.DecodeResponse(data)
	assert.NoError(t, err)
	p, err := protocol.DecodePayload(resp.Type, resp.Payload)
	assert.NoError(t, err)
	return resp.Type, p
}

// readUntil reads responses until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want protocol.RequestType) protocol.Payload {
	t.Helper()
	for {
		rt, p := readResponse(t, conn)
		if rt == want {
			return p
		}
	}
}

func createGame(visibility protocol.Visibility) protocol.CreateGamePayload {
	return protocol.CreateGamePayload{
		Panoramas:  []game.Location{{ID: 7, X: 10, Y: 64, Z: 20}},
		Visibility: visibility,
	}
}

// ============================================================================
// WEBSOCKET
// ============================================================================

func TestCreateGame_RepliesJoinedGame(t *testing.T) {
	assert := assert.New(t)
	_, _, url := setupTestServer(t, 1)
	conn := dialRaw(t, url)

	sendRequest(t, conn, "alice", createGame(protocol.VisibilityPrivate))

	rt, p := readResponse(t, conn)
	assert.Equal(protocol.JoinedGame, rt)
	joined := p.(protocol.JoinedGamePayload)
	assert.Len(joined.GameID, 6)
	assert.Equal([]protocol.PlayerLobbyData{{PlayerID: "alice"}}, joined.Players)
}

func TestJoinGame_NotifiesOthers(t *testing.T) {
	assert := assert.New(t)
	_, _, url := setupTestServer(t, 1)
	alice := dialRaw(t, url)
	bob := dialRaw(t, url)

	sendRequest(t, alice, "alice", createGame(protocol.VisibilityPrivate))
	_, p := readResponse(t, alice)
	gameID := p.(protocol.JoinedGamePayload).GameID

	sendRequest(t, bob, "bob", protocol.JoinGamePayload{GameID: gameID})

	rt, p := readResponse(t, bob)
	assert.Equal(protocol.JoinedGame, rt)
	assert.Len(p.(protocol.JoinedGamePayload).Players, 2)

	rt, p = readResponse(t, alice)
	assert.Equal(protocol.OtherPlayerJoined, rt)
	assert.Equal(protocol.OtherPlayerJoinedPayload{PlayerID: "bob"}, p)
}

func TestReadyStartsRound(t *testing.T) {
	assert := assert.New(t)
	_, _, url := setupTestServer(t, 1)
	conn := dialRaw(t, url)

	sendRequest(t, conn, "alice", createGame(protocol.VisibilityPrivate))
	readResponse(t, conn)

	sendRequest(t, conn, "alice", protocol.ChangeReadyStatusPayload{Ready: true})

	rt, p := readResponse(t, conn)
	assert.Equal(protocol.OtherPlayerReady, rt)
	assert.Equal(protocol.OtherPlayerReadyPayload{PlayerID: "alice", Ready: true}, p)

	rt, p = readResponse(t, conn)
	assert.Equal(protocol.NextRound, rt)
	assert.Equal(protocol.NextRoundPayload{PanoramaID: 7, RoundIndex: 0}, p)

	rt, p = readResponse(t, conn)
	assert.Equal(protocol.RoundTimelimit, rt)
	assert.Equal(protocol.RoundTimelimitPayload{Time: 60000}, p)

	sendRequest(t, conn, "alice", protocol.GuessLocationPayload{Location: game.Point{X: 10, Y: 20}})

	rt, p = readResponse(t, conn)
	assert.Equal(protocol.RoundEnded, rt)
	assert.Equal(5000.0, p.(protocol.RoundEndedPayload).Rounds["alice"].Score)

	rt, _ = readResponse(t, conn)
	assert.Equal(protocol.GotoNextRoundTimelimit, rt)

	sendRequest(t, conn, "alice", protocol.GotoNextRoundPayload{})

	rt, p = readResponse(t, conn)
	assert.Equal(protocol.GameFinished, rt)
	assert.Len(p.(protocol.GameFinishedPayload).Players["alice"], 1)
}

// Why: the round must not wait for a player who left before guessing
func TestLeaveMidRound_EndsRoundWhenOthersGuessed(t *testing.T) {
	assert := assert.New(t)
	_, _, url := setupTestServer(t, 2)
	alice := dialRaw(t, url)
	bob := dialRaw(t, url)
	carol := dialRaw(t, url)

	sendRequest(t, alice, "alice", createGame(protocol.VisibilityPrivate))
	gameID := readUntil(t, alice, protocol.JoinedGame).(protocol.JoinedGamePayload).GameID
	sendRequest(t, bob, "bob", protocol.JoinGamePayload{GameID: gameID})
	readUntil(t, bob, protocol.JoinedGame)
	sendRequest(t, carol, "carol", protocol.JoinGamePayload{GameID: gameID})
	readUntil(t, carol, protocol.JoinedGame)

	for id, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob, "carol": carol} {
		sendRequest(t, conn, id, protocol.ChangeReadyStatusPayload{Ready: true})
	}
	readUntil(t, alice, protocol.NextRound)
	readUntil(t, bob, protocol.NextRound)

	sendRequest(t, alice, "alice", protocol.GuessLocationPayload{Location: game.Point{X: 10, Y: 20}})
	sendRequest(t, bob, "bob", protocol.GuessLocationPayload{Location: game.Point{X: 10, Y: 20}})
	readUntil(t, alice, protocol.OtherPlayerGuessed)

	sendRequest(t, carol, "carol", protocol.LeaveGamePayload{})

	p := readUntil(t, alice, protocol.RoundEnded).(protocol.RoundEndedPayload)
	assert.Len(p.Rounds, 2)
	assert.Contains(p.Rounds, "alice")
	assert.Contains(p.Rounds, "bob")
	readUntil(t, bob, protocol.RoundEnded)
}

func TestInvalidMessagesReplyError(t *testing.T) {
	cases := map[string]string{
		"bad json":       `nope`,
		"missing type":   `{"player_id":"alice","_payload":{}}`,
		"missing player": `{"type":14,"_payload":{}}`,
		"bad payload":    `{"type":1,"player_id":"alice","_payload":{}}`,
		"server type":    `{"type":9,"player_id":"alice","_payload":{"rounds":{}}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, url := setupTestServer(t, 1)
			conn := dialRaw(t, url)

			assert.NoError(t, conn.Write(context.Background(), websocket.MessageText, []byte(raw)))

			rt, _ := readResponse(t, conn)
			assert.Equal(t, protocol.Error, rt)
		})
	}
}

func TestPingAll_CountsEchoes(t *testing.T) {
	s, _, url := setupTestServer(t, 1)
	conn := dialRaw(t, url)
	assert.Eventually(t, func() bool { return s.Connections() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.PingAll(context.Background())

	rt, _ := readResponse(t, conn)
	assert.Equal(t, protocol.Ping, rt)

	sendRequest(t, conn, "alice", protocol.PingPayload{})
	assert.Eventually(t, func() bool { return s.Pings() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestSend_UnknownPlayer(t *testing.T) {
	s, _, _ := setupTestServer(t, 1)

	err := s.Send(context.Background(), "ghost", protocol.Ping, protocol.PingPayload{})
	assert.ErrorIs(t, err, ErrNotInGame)
	assert.ErrorIs(t, s.SendRaw(context.Background(), "ghost", []byte(`{}`)), ErrNotInGame)
}

// ============================================================================
// HTTP
// ============================================================================

func TestLobbyEndpoint(t *testing.T) {
	assert := assert.New(t)
	_, srv, url := setupTestServer(t, 1)

	public := dialRaw(t, url)
	sendRequest(t, public, "alice", createGame(protocol.VisibilityPublic))
	_, p := readResponse(t, public)
	gameID := p.(protocol.JoinedGamePayload).GameID

	private := dialRaw(t, url)
	sendRequest(t, private, "bob", createGame(protocol.VisibilityPrivate))
	readResponse(t, private)

	lobbies, err := lobby.NewClient(srv.URL, srv.Client(), nil).Fetch(context.Background())
	assert.NoError(err)
	assert.Equal([]protocol.Lobby{{
		GameID:  gameID,
		Players: []protocol.PlayerLobbyData{{PlayerID: "alice"}},
	}}, lobbies)
}

func TestLobbyEndpoint_EmptyIsList(t *testing.T) {
	_, srv, _ := setupTestServer(t, 1)

	resp, err := http.Get(srv.URL + "/lobby")
	assert.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(body))
}

func TestHealthEndpoint(t *testing.T) {
	_, srv, _ := setupTestServer(t, 1)

	resp, err := http.Get(srv.URL + "/health")
	assert.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "up", body["status"])
}
