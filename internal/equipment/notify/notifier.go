// Package notify delivers critical equipment alerts to external
// channels. Delivery is best-effort; a failed channel never blocks
// telemetry ingest.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
)

// Notifier delivers one alert.
type Notifier interface {
	Notify(ctx context.Context, alert equipment.Alert) error
}

// WebhookNotifier posts alerts as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, logger *log.Logger) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("notify: empty webhook url")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}, nil
}

// Notify posts the alert.
func (n *WebhookNotifier) Notify(ctx context.Context, alert equipment.Alert) error {
	body, err := json.Marshal(alert)
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
		return fmt.Errorf("notify: webhook status %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans one alert out to several channels. Errors are
// logged per channel and the first is returned.
type MultiNotifier struct {
	channels []Notifier
	logger   *log.Logger
}

// NewMultiNotifier constructs a fan-out notifier.
func NewMultiNotifier(logger *log.Logger, channels ...Notifier) *MultiNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &MultiNotifier{channels: channels, logger: logger}
}

// Notify delivers to every channel.
func (n *MultiNotifier) Notify(ctx context.Context, alert equipment.Alert) error {
	var first error
	for _, channel := range n.channels {
		if channel == nil {
			continue
		}
		if err := channel.Notify(ctx, alert); err != nil {
			n.logger.Printf("alert notify failed: equipment=%s kind=%s err=%v", alert.EquipmentID, alert.Kind, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
