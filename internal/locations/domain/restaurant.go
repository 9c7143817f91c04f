package locations

import (
	"context"
	"errors"
	"time"
)

// Restaurant represents one physical restaurant location.
type Restaurant struct {
	ID          string
	TenantID    string
	FranchiseID string
	Name        string
	Timezone    string
	Address     string
	Region      string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks restaurant invariants.
func (r Restaurant) Validate() error {
	if r.ID == "" {
		return errors.New("restaurant: empty id")
	}
	if r.TenantID == "" {
		return errors.New("restaurant: empty tenant id")
	}
	if r.Name == "" {
		return errors.New("restaurant: empty name")
	}
	if r.Timezone == "" {
		return errors.New("restaurant: empty timezone")
	}
	return nil
}

// RestaurantRepository manages restaurant persistence.
type RestaurantRepository interface {
	Get(ctx context.Context, id string) (*Restaurant, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Restaurant, error)
	Save(ctx context.Context, restaurant *Restaurant) error
}
