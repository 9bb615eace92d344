package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// APIClient looks up player profiles against the public profile endpoint.
type APIClient struct {
	httpClient *http.Client
	BaseURL    string
}

// NewClient creates a new profile client.
func NewClient(baseURL string) ProfileClient {
	return &APIClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    baseURL,
	}
}

// Ensure APIClient implements the ProfileClient interface.
var _ ProfileClient = (*APIClient)(nil)

// GetNick fetches the nickname for a player. A failed lookup leaves the
// player unresolved; callers treat the error as best-effort.
func (c *APIClient) GetNick(ctx context.Context, playerID string) (string, error) {
	url := fmt.Sprintf("%s/%s", c.BaseURL, playerID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.Debug("Requesting player profile", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-OK HTTP status: %d", resp.StatusCode)
	}

	var profile struct {
		Nick string `json:"nick"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if profile.Nick == "" {
		return "", fmt.Errorf("profile for %s has no nick", playerID)
	}
	return profile.Nick, nil
}
