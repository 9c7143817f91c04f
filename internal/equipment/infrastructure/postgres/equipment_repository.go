package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
)

const (
	defaultEquipmentTable = "equipment"
)

// EquipmentRepository is a Postgres device registry.
type EquipmentRepository struct {
	db             DBTX
	table          string
	telemetryTable string
}

// NewEquipmentRepository constructs a repository.
func NewEquipmentRepository(db DBTX, opts ...EquipmentOption) *EquipmentRepository {
	repo := &EquipmentRepository{
		db:             db,
		table:          defaultEquipmentTable,
		telemetryTable: defaultTelemetryTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// EquipmentOption configures the repository.
type EquipmentOption func(*EquipmentRepository)

// WithEquipmentTable overrides the default table name.
func WithEquipmentTable(table string) EquipmentOption {
	return func(repo *EquipmentRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const equipmentColumns = `id, tenant_id, restaurant_id, name, type,
	COALESCE(serial_number, ''), COALESCE(gateway_id, ''), active, installed_at, created_at, updated_at`

// Get loads one device.
func (r *EquipmentRepository) Get(ctx context.Context, id string) (*equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("equipment repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, equipmentColumns, r.table)

	var e equipment.Equipment
	if err := scanEquipment(r.db.QueryRowContext(ctx, query, id), &e); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListByRestaurant returns the registry for one restaurant.
func (r *EquipmentRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]equipment.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("equipment repo: empty restaurant id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE restaurant_id = $1
ORDER BY name ASC`, equipmentColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipment.Equipment
	for rows.Next() {
		var e equipment.Equipment
		if err := scanEquipment(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Save upserts a device row.
func (r *EquipmentRepository) Save(ctx context.Context, e *equipment.Equipment) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if e == nil {
		return errors.New("equipment repo: nil equipment")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, name, type, serial_number, gateway_id, active, installed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	type = EXCLUDED.type,
	serial_number = EXCLUDED.serial_number,
	gateway_id = EXCLUDED.gateway_id,
	active = EXCLUDED.active,
	installed_at = EXCLUDED.installed_at,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.TenantID,
		e.RestaurantID,
		e.Name,
		e.Type,
		e.SerialNumber,
		e.GatewayID,
		e.Active,
		e.InstalledAt.UTC(),
		e.CreatedAt,
		e.UpdatedAt,
	)
	return err
}

// ListWithRecentTelemetry returns device ids that reported at or after
// the cutoff.
func (r *EquipmentRepository) ListWithRecentTelemetry(ctx context.Context, since time.Time) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT DISTINCT equipment_id
FROM %s
WHERE ts >= $1`, r.telemetryTable)

	rows, err := r.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner, e *equipment.Equipment) error {
	var installedAt sql.NullTime
	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.RestaurantID,
		&e.Name,
		&e.Type,
		&e.SerialNumber,
		&e.GatewayID,
		&e.Active,
		&installedAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return err
	}
	if installedAt.Valid {
		e.InstalledAt = installedAt.Time.UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return nil
}
