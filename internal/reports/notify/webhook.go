// Package notify announces completed reports to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CompletionMessage describes one finished report.
type CompletionMessage struct {
	TenantID     string `json:"tenant_id"`
	RestaurantID string `json:"restaurant_id"`
	ReportID     string `json:"report_id"`
	ReportDate   string `json:"report_date"`
	ReportURL    string `json:"report_url"`
}

// Notifier delivers one completion message.
type Notifier interface {
	Notify(ctx context.Context, msg CompletionMessage) error
}

// WebhookNotifier posts completion messages as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("reports notify: empty webhook url")
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// Notify posts the message.
func (n *WebhookNotifier) Notify(ctx context.Context, msg CompletionMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reports notify: webhook status %d", resp.StatusCode)
	}
	return nil
}
