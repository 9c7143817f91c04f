// Package gateway is a minimal REST client for the on-site device
// gateway that relays firmware updates to kitchen equipment.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to one gateway deployment.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient constructs a gateway client.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("gateway: empty base url")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// UpdateResult is the gateway's synchronous answer to a dispatched
// firmware update.
type UpdateResult struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SendFirmwareUpdate pushes one update command to a device.
func (c *Client) SendFirmwareUpdate(ctx context.Context, equipmentID, version string, payload json.RawMessage) (UpdateResult, error) {
	if equipmentID == "" || version == "" {
		return UpdateResult{}, errors.New("gateway: invalid update args")
	}
	body := map[string]any{
		"version": version,
		"params":  json.RawMessage(payload),
	}
	var resp UpdateResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/devices/"+equipmentID+"/firmware", body, &resp); err != nil {
		return UpdateResult{}, err
	}
	return resp, nil
}

// Ping checks gateway reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
