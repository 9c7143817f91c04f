package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	firmware "restaurant-ops/internal/firmware/domain"
)

const defaultFirmwareTable = "firmware_updates"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpdateRepository is a Postgres implementation of firmware.UpdateRepository.
type UpdateRepository struct {
	db    DBTX
	table string
}

// NewUpdateRepository constructs a repository.
func NewUpdateRepository(db DBTX, opts ...Option) *UpdateRepository {
	repo := &UpdateRepository{db: db, table: defaultFirmwareTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*UpdateRepository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(repo *UpdateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const updateColumns = `update_id, tenant_id, restaurant_id, equipment_id, version, payload,
	idempotency_key, status, COALESCE(detail, ''), created_at, updated_at`

// Create persists a new update command.
func (r *UpdateRepository) Create(ctx context.Context, update *firmware.Update) error {
	if r == nil || r.db == nil {
		return errors.New("firmware repo: nil db")
	}
	if update == nil {
		return errors.New("firmware repo: nil update")
	}
	if err := update.Validate(); err != nil {
		return err
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = update.CreatedAt
	}
	payload := update.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (update_id, tenant_id, restaurant_id, equipment_id, version, payload,
	idempotency_key, status, detail, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		update.UpdateID,
		update.TenantID,
		update.RestaurantID,
		update.EquipmentID,
		update.Version,
		[]byte(payload),
		update.IdempotencyKey,
		update.Status,
		update.Detail,
		update.CreatedAt,
		update.UpdatedAt,
	)
	return err
}

// FindByIdempotencyKey returns a recent update matching the key.
func (r *UpdateRepository) FindByIdempotencyKey(ctx context.Context, tenantID, key string, notBefore time.Time) (*firmware.Update, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("firmware repo: nil db")
	}
	if key == "" {
		return nil, errors.New("firmware repo: empty idempotency key")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1 AND idempotency_key = $2 AND created_at >= $3
ORDER BY created_at DESC
LIMIT 1`, updateColumns, r.table)

	update, err := scanUpdate(r.db.QueryRowContext(ctx, query, tenantID, key, notBefore.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return update, nil
}

// UpdateStatus records a lifecycle transition.
func (r *UpdateRepository) UpdateStatus(ctx context.Context, updateID, status, detail string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("firmware repo: nil db")
	}
	if updateID == "" || status == "" {
		return errors.New("firmware repo: empty update id or status")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, detail = NULLIF($3,''), updated_at = $4
WHERE update_id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, updateID, status, detail, at.UTC())
	return err
}

// ListByEquipment returns updates for one device, newest first.
func (r *UpdateRepository) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]firmware.Update, error) {
	if equipmentID == "" {
		return nil, errors.New("firmware repo: empty equipment id")
	}
	return r.list(ctx, "equipment_id", equipmentID, limit)
}

// ListByRestaurant returns updates for one restaurant, newest first.
func (r *UpdateRepository) ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]firmware.Update, error) {
	if restaurantID == "" {
		return nil, errors.New("firmware repo: empty restaurant id")
	}
	return r.list(ctx, "restaurant_id", restaurantID, limit)
}

func (r *UpdateRepository) list(ctx context.Context, column, value string, limit int) ([]firmware.Update, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("firmware repo: nil db")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s = $1
ORDER BY created_at DESC
LIMIT $2`, updateColumns, r.table, column)

	rows, err := r.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []firmware.Update
	for rows.Next() {
		update, err := scanUpdate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *update)
	}
	return out, rows.Err()
}

// MarkTimeoutBefore flips stale sent updates to timeout.
func (r *UpdateRepository) MarkTimeoutBefore(ctx context.Context, before time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("firmware repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = 'timeout', updated_at = NOW()
WHERE status = 'sent' AND updated_at < $1`, r.table)

	res, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpdate(row rowScanner) (*firmware.Update, error) {
	var u firmware.Update
	var payload []byte
	if err := row.Scan(
		&u.UpdateID,
		&u.TenantID,
		&u.RestaurantID,
		&u.EquipmentID,
		&u.Version,
		&payload,
		&u.IdempotencyKey,
		&u.Status,
		&u.Detail,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Payload = payload
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
