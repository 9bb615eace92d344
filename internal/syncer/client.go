package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bullseye-tracker/internal/bullseye"
	"bullseye-tracker/internal/config"

	"github.com/charmbracelet/log"
)

// Client posts finalized matches to the configured sync endpoint.
type Client struct {
	httpClient *http.Client
	URL        string
	Token      string
}

// NewClient creates a sync client from configuration. An empty URL yields a
// disabled client.
func NewClient(cfg config.SyncConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		URL:        cfg.URL,
		Token:      cfg.Token,
	}
}

// Ensure Client implements the SyncClient interface.
var _ SyncClient = (*Client)(nil)

func (c *Client) Enabled() bool {
	return c.URL != ""
}

// payload is the wire shape the backend ingests: the match id and duration
// at the top level, the full record nested under bullseye.state.
type payload struct {
	GameID        string `json:"gameId"`
	TotalDuration int    `json:"totalDuration"`
	Bullseye      struct {
		State bullseye.MatchRecord `json:"state"`
	} `json:"bullseye"`
}

// SyncMatch transmits one finalized record. Any non-2xx response or network
// error is returned for logging; callers never roll back the local save.
func (c *Client) SyncMatch(ctx context.Context, record bullseye.MatchRecord) error {
	if !c.Enabled() {
		return nil
	}

	p := payload{
		GameID:        record.ID,
		TotalDuration: record.TotalDuration,
	}
	p.Bullseye.State = record

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal sync payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	log.Debug("Syncing match to remote backend", "url", c.URL, "gameID", record.ID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-2xx HTTP status: %d", resp.StatusCode)
	}
	return nil
}
