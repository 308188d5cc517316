// Package mytradelog provides a Go SDK for the mytradelog-server API.
package mytradelog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a mytradelog-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Snapshot mirrors the server's composed view state payload.
type Snapshot struct {
	Ready           bool   `json:"ready"`
	IsSwitching     bool   `json:"is_switching"`
	IsHydrating     bool   `json:"is_hydrating"`
	ActiveAccountID string `json:"active_account_id,omitempty"`
	Route           string `json:"route"`
	HeightLockMS    int64  `json:"height_lock_ms"`
}

// Account mirrors the server's account payload.
type Account struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Status          string  `json:"status"`
	Currency        string  `json:"currency"`
	StartingBalance float64 `json:"starting_balance"`
}

// AccountsResponse lists accounts and the active selection.
type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
	ActiveID string    `json:"active_id,omitempty"`
}

// Trade mirrors the server's trade payload.
type Trade struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Qty        float64   `json:"qty"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	ExecutedAt time.Time `json:"executed_at"`
	Notes      string    `json:"notes,omitempty"`
}

// Render is the data set to draw for one account.
type Render struct {
	AccountID       string  `json:"account_id"`
	FromPrevious    bool    `json:"from_previous"`
	Trades          []Trade `json:"trades"`
	StartingBalance float64 `json:"starting_balance"`
	TotalPnL        float64 `json:"total_pnl"`
}

// State retrieves the composed view state.
func (c *Client) State(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/api/state", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Accounts retrieves the account directory.
func (c *Client) Accounts(ctx context.Context) (*AccountsResponse, error) {
	var resp AccountsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/accounts", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Activate switches the active account and returns the resulting state.
func (c *Client) Activate(ctx context.Context, accountID string) (*Snapshot, error) {
	var snap Snapshot
	path := "/api/accounts/" + accountID + "/activate"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Render retrieves the render data set for an account.
func (c *Client) Render(ctx context.Context, accountID string) (*Render, error) {
	var render Render
	if err := c.doJSON(ctx, http.MethodGet, "/api/render/"+accountID, nil, &render); err != nil {
		return nil, err
	}
	return &render, nil
}

// CreateTrade journals a trade on an account.
func (c *Client) CreateTrade(ctx context.Context, accountID string, trade Trade) (*Trade, error) {
	var created Trade
	path := "/api/accounts/" + accountID + "/trades"
	if err := c.doJSON(ctx, http.MethodPost, path, trade, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
