package auth

import (
	"context"
	"database/sql"

	locationsrepo "restaurant-ops/internal/locations/infrastructure/postgres"
)

// RestaurantTenantChecker validates restaurant tenant ownership.
type RestaurantTenantChecker interface {
	EnsureRestaurantTenant(ctx context.Context, tenantID, restaurantID string) error
}

// RestaurantChecker checks restaurant ownership using the registry.
type RestaurantChecker struct {
	repo *locationsrepo.RestaurantRepository
}

// NewRestaurantChecker constructs a RestaurantChecker.
func NewRestaurantChecker(db *sql.DB) *RestaurantChecker {
	if db == nil {
		return nil
	}
	return &RestaurantChecker{repo: locationsrepo.NewRestaurantRepository(db)}
}

// EnsureRestaurantTenant verifies the restaurant belongs to the tenant.
func (c *RestaurantChecker) EnsureRestaurantTenant(ctx context.Context, tenantID, restaurantID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || restaurantID == "" {
		return nil
	}
	restaurant, err := c.repo.Get(ctx, restaurantID)
	if err != nil {
		return err
	}
	if restaurant == nil {
		return ErrNotFound
	}
	if restaurant.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
