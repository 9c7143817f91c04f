package firmware

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Update statuses.
const (
	StatusCreated = "created"
	StatusSent    = "sent"
	StatusAcked   = "acked"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
)

// Update is one firmware update command for one device.
type Update struct {
	UpdateID       string          `json:"update_id"`
	TenantID       string          `json:"tenant_id"`
	RestaurantID   string          `json:"restaurant_id"`
	EquipmentID    string          `json:"equipment_id"`
	Version        string          `json:"version"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         string          `json:"status"`
	Detail         string          `json:"detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Validate checks update invariants.
func (u Update) Validate() error {
	if u.UpdateID == "" {
		return errors.New("firmware: empty update id")
	}
	if u.EquipmentID == "" {
		return errors.New("firmware: empty equipment id")
	}
	if u.Version == "" {
		return errors.New("firmware: empty version")
	}
	if len(u.Payload) > 0 && !json.Valid(u.Payload) {
		return errors.New("firmware: invalid payload")
	}
	return nil
}

// UpdateRepository manages update persistence.
type UpdateRepository interface {
	Create(ctx context.Context, update *Update) error
	// FindByIdempotencyKey returns the matching update created at or
	// after the cutoff, nil when none exists.
	FindByIdempotencyKey(ctx context.Context, tenantID, key string, notBefore time.Time) (*Update, error)
	UpdateStatus(ctx context.Context, updateID, status, detail string, at time.Time) error
	ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]Update, error)
	ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]Update, error)
	// MarkTimeoutBefore flips sent updates older than the cutoff to
	// timeout. Returns rows changed.
	MarkTimeoutBefore(ctx context.Context, before time.Time) (int, error)
}
