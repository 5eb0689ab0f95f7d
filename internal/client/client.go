// Package client talks to the agent-run backend's read API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runwatch/runwatch/internal/models"
	"github.com/runwatch/runwatch/internal/poller"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GetRun fetches a single run snapshot. Implements poller.Fetcher. A 404
// wraps poller.ErrNotFound.
func (c *Client) GetRun(ctx context.Context, id string) (*models.AgentRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}

	var run models.AgentRun
	if err := c.get(ctx, "/api/agents/"+id, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns fetches run summaries for a repository, newest first.
func (c *Client) ListRuns(ctx context.Context, repository string) ([]*models.AgentRun, error) {
	q := url.Values{"repository": {repository}}
	var runs []*models.AgentRun
	if err := c.get(ctx, "/api/agents", q, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, poller.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
