package sweep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/shark-market/internal/api"
	"github.com/talgya/shark-market/internal/persistence"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name      string `json:"name"`
	Uptime    string `json:"uptime"`
	Active    int    `json:"active"`
	AdminAuth bool   `json:"admin_auth"`
	Runs      int    `json:"runs"`
	LastRun   string `json:"last_run"`
}

// Client talks to a remote shark-market API. Reads are public; Simulate
// needs the admin key.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewClient creates a Client targeting the given API base URL.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

// Status fetches the server status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.fetchJSON(ctx, "/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Runs lists the most recent stored runs.
func (c *Client) Runs(ctx context.Context, limit int) ([]persistence.Run, error) {
	var runs []persistence.Run
	if err := c.fetchJSON(ctx, fmt.Sprintf("/api/v1/runs?limit=%d", limit), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Stats fetches the stored summary statistics of one run.
func (c *Client) Stats(ctx context.Context, id string) (map[string]float64, error) {
	stats := map[string]float64{}
	if err := c.fetchJSON(ctx, "/api/v1/runs/"+id+"/stats", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Simulate sends a run request to POST /api/v1/simulate and waits for the
// finished run.
func (c *Client) Simulate(ctx context.Context, req api.SimulateRequest) (*api.SimulateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/simulate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AdminKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST simulate: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("simulate failed (%d): %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result api.SimulateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(timeout)

	for {
		_, err := c.Status(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API not ready after %s: %w", timeout, err)
		}
		slog.Info("API not ready, retrying", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (c *Client) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
