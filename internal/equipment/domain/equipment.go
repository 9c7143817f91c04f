package equipment

import (
	"context"
	"errors"
	"time"
)

// Equipment is a monitored kitchen device registered to a restaurant.
type Equipment struct {
	ID           string
	TenantID     string
	RestaurantID string
	Name         string
	Type         string
	SerialNumber string
	GatewayID    string
	Active       bool
	InstalledAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks equipment invariants.
func (e Equipment) Validate() error {
	if e.ID == "" {
		return errors.New("equipment: empty id")
	}
	if e.TenantID == "" {
		return errors.New("equipment: empty tenant id")
	}
	if e.RestaurantID == "" {
		return errors.New("equipment: empty restaurant id")
	}
	if e.Name == "" {
		return errors.New("equipment: empty name")
	}
	return nil
}

// EquipmentRepository manages the device registry.
type EquipmentRepository interface {
	Get(ctx context.Context, id string) (*Equipment, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Equipment, error)
	Save(ctx context.Context, equipment *Equipment) error
	// ListWithRecentTelemetry returns ids of devices that reported at or
	// after the cutoff. The background sweep re-predicts only these.
	ListWithRecentTelemetry(ctx context.Context, since time.Time) ([]string, error)
}
