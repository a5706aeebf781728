package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidEnvelope wraps every envelope shape violation.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Request is the client → server envelope. GameID is omitted until the
// session has joined a game.
type Request struct {
	Type        RequestType `json:"type"`
	PlayerID    string      `json:"player_id"`
	Payload     Payload     `json:"_payload"`
	GameID      string      `json:"game_id,omitempty"`
	AuthSession string      `json:"auth_session"`
}

// Response is the server → client envelope. Payload is kept raw; matching it
// against Type is the dispatcher's job.
type Response struct {
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeRequest serializes an outbound envelope. A nil payload is sent as {}.
func EncodeRequest(req Request) ([]byte, error) {
	if req.Payload == nil {
		req.Payload = Empty{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", req.Type, err)
	}
	return data, nil
}

// EncodeResponse serializes a server → client envelope.
func EncodeResponse(t RequestType, payload Payload) ([]byte, error) {
	if payload == nil {
		payload = Empty{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Response{Type: t, Payload: raw})
}

// DecodeResponse parses inbound text and checks the envelope shape: an
// integer "type" and a "payload" of any shape. Every failure wraps
// ErrInvalidEnvelope.
func DecodeResponse(data []byte) (Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if fields == nil {
		return Response{}, fmt.Errorf("%w: not an object", ErrInvalidEnvelope)
	}

	rawType, ok := fields["type"]
	if !ok || isNull(rawType) {
		return Response{}, fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	var t int
	if err := json.Unmarshal(rawType, &t); err != nil {
		return Response{}, fmt.Errorf("%w: type must be an integer: %v", ErrInvalidEnvelope, err)
	}

	payload, ok := fields["payload"]
	if !ok {
		return Response{}, fmt.Errorf("%w: missing payload", ErrInvalidEnvelope)
	}

	return Response{Type: RequestType(t), Payload: payload}, nil
}

// DecodeRequest parses a client envelope. It is used by the mock server.
func DecodeRequest(data []byte) (RequestType, RawRequest, error) {
	var req RawRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return 0, RawRequest{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if req.Type == nil {
		return 0, RawRequest{}, fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	return *req.Type, req, nil
}

// RawRequest is a client envelope with its payload left undecoded.
type RawRequest struct {
	Type        *RequestType    `json:"type"`
	PlayerID    string          `json:"player_id"`
	Payload     json.RawMessage `json:"_payload"`
	GameID      string          `json:"game_id,omitempty"`
	AuthSession string          `json:"auth_session"`
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
