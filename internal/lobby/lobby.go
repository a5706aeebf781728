package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"guessr-client/internal/protocol"
)

// Client lists public games through the server's REST endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient creates a lobby client for baseURL. A nil hc gets a 10s timeout
// client and a nil log discards output.
func NewClient(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{baseURL: baseURL, http: hc, log: log}
}

// Fetch returns the open public lobbies.
func (c *Client) Fetch(ctx context.Context) ([]protocol.Lobby, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/lobby", nil)
	if err != nil {
		return nil, fmt.Errorf("build lobby request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get lobbies: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get lobbies: unexpected status %s", resp.Status)
	}

	var lobbies []protocol.Lobby
	if err := json.NewDecoder(resp.Body).Decode(&lobbies); err != nil {
		return nil, fmt.Errorf("decode lobbies: %w", err)
	}
	return lobbies, nil
}

// List is Fetch for display code: any failure is logged and yields an empty
// list.
func (c *Client) List(ctx context.Context) []protocol.Lobby {
	lobbies, err := c.Fetch(ctx)
	if err != nil {
		c.log.Error("Failed to get lobbies", zap.Error(err))
		return []protocol.Lobby{}
	}
	if lobbies == nil {
		return []protocol.Lobby{}
	}
	return lobbies
}
