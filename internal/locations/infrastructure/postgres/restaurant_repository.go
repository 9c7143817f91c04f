package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	locations "restaurant-ops/internal/locations/domain"
)

const defaultRestaurantsTable = "restaurants"

// RestaurantRepository is a Postgres implementation for restaurants.
type RestaurantRepository struct {
	db    DBTX
	table string
}

// NewRestaurantRepository constructs a repository.
func NewRestaurantRepository(db DBTX, opts ...RestaurantOption) *RestaurantRepository {
	repo := &RestaurantRepository{db: db, table: defaultRestaurantsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RestaurantOption configures the repository.
type RestaurantOption func(*RestaurantRepository)

// WithRestaurantTable overrides the default table name.
func WithRestaurantTable(table string) RestaurantOption {
	return func(repo *RestaurantRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a restaurant by id.
func (r *RestaurantRepository) Get(ctx context.Context, id string) (*locations.Restaurant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("restaurant repo: nil db")
	}
	if id == "" {
		return nil, errors.New("restaurant repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, franchise_id, name, timezone, address, region, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var restaurant locations.Restaurant
	var franchiseID sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&restaurant.ID,
		&restaurant.TenantID,
		&franchiseID,
		&restaurant.Name,
		&restaurant.Timezone,
		&restaurant.Address,
		&restaurant.Region,
		&restaurant.Active,
		&restaurant.CreatedAt,
		&restaurant.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	restaurant.FranchiseID = franchiseID.String
	restaurant.CreatedAt = restaurant.CreatedAt.UTC()
	restaurant.UpdatedAt = restaurant.UpdatedAt.UTC()
	return &restaurant, nil
}

// ListByTenant loads restaurants for a tenant.
func (r *RestaurantRepository) ListByTenant(ctx context.Context, tenantID string) ([]locations.Restaurant, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("restaurant repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("restaurant repo: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, franchise_id, name, timezone, address, region, active, created_at, updated_at
FROM %s
WHERE tenant_id = $1
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []locations.Restaurant
	for rows.Next() {
		var restaurant locations.Restaurant
		var franchiseID sql.NullString
		if err := rows.Scan(
			&restaurant.ID,
			&restaurant.TenantID,
			&franchiseID,
			&restaurant.Name,
			&restaurant.Timezone,
			&restaurant.Address,
			&restaurant.Region,
			&restaurant.Active,
			&restaurant.CreatedAt,
			&restaurant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		restaurant.FranchiseID = franchiseID.String
		restaurant.CreatedAt = restaurant.CreatedAt.UTC()
		restaurant.UpdatedAt = restaurant.UpdatedAt.UTC()
		result = append(result, restaurant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a restaurant.
func (r *RestaurantRepository) Save(ctx context.Context, restaurant *locations.Restaurant) error {
	if r == nil || r.db == nil {
		return errors.New("restaurant repo: nil db")
	}
	if restaurant == nil {
		return errors.New("restaurant repo: nil restaurant")
	}
	if err := restaurant.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if restaurant.CreatedAt.IsZero() {
		restaurant.CreatedAt = now
	}
	restaurant.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, franchise_id, name, timezone, address, region, active, created_at, updated_at)
VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
	franchise_id = EXCLUDED.franchise_id,
	name = EXCLUDED.name,
	timezone = EXCLUDED.timezone,
	address = EXCLUDED.address,
	region = EXCLUDED.region,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		restaurant.ID,
		restaurant.TenantID,
		restaurant.FranchiseID,
		restaurant.Name,
		restaurant.Timezone,
		restaurant.Address,
		restaurant.Region,
		restaurant.Active,
		restaurant.CreatedAt,
		restaurant.UpdatedAt,
	)
	return err
}
