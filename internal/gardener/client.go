package gardener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InterventionResult is the response from POST /api/v1/intervention.
type InterventionResult struct {
	Success bool   `json:"success"`
	Cells   int    `json:"cells,omitempty"`
	Details string `json:"details,omitempty"`
}

// Client talks to a running planetsim. Reads are public; Act needs AdminKey.
type Client struct {
	BaseURL  string
	AdminKey string
	HTTP     *http.Client
}

// NewClient returns a Client for the API rooted at baseURL.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		AdminKey: adminKey,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Ready reports whether the status endpoint answers 200.
func (c *Client) Ready(ctx context.Context) bool {
	var status PlanetStatus
	return c.get(ctx, "/api/v1/status", &status) == nil
}

// Act posts one intervention with the admin bearer token.
func (c *Client) Act(ctx context.Context, iv *Intervention) (*InterventionResult, error) {
	body, err := json.Marshal(iv)
	if err != nil {
		return nil, fmt.Errorf("encode intervention: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/intervention", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AdminKey)

	var result InterventionResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("%s at (%d,%d): %w", iv.Type, iv.X, iv.Y, err)
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, target); err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return nil
}

// do sends req and decodes a 200 body into target. Other statuses become
// errors carrying the server's message.
func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
