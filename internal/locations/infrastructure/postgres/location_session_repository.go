package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	locations "restaurant-ops/internal/locations/domain"
)

const defaultLocationSessionsTable = "location_sessions"

// LocationSessionRepository is a Postgres implementation for device bindings.
type LocationSessionRepository struct {
	db    DBTX
	table string
}

// NewLocationSessionRepository constructs a repository.
func NewLocationSessionRepository(db DBTX, opts ...LocationSessionOption) *LocationSessionRepository {
	repo := &LocationSessionRepository{db: db, table: defaultLocationSessionsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LocationSessionOption configures the repository.
type LocationSessionOption func(*LocationSessionRepository)

// WithLocationSessionTable overrides the default table name.
func WithLocationSessionTable(table string) LocationSessionOption {
	return func(repo *LocationSessionRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a location session by id.
func (r *LocationSessionRepository) Get(ctx context.Context, id string) (*locations.LocationSession, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location session repo: nil db")
	}
	if id == "" {
		return nil, errors.New("location session repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, restaurant_id, device_fingerprint, bound_by, token, active,
	expires_at, last_staff_login_at, last_staff_login_by, created_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var session locations.LocationSession
	var lastLoginAt sql.NullTime
	var lastLoginBy sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.TenantID,
		&session.RestaurantID,
		&session.DeviceFingerprint,
		&session.BoundBy,
		&session.Token,
		&session.Active,
		&session.ExpiresAt,
		&lastLoginAt,
		&lastLoginBy,
		&session.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lastLoginAt.Valid {
		session.LastStaffLoginAt = lastLoginAt.Time.UTC()
	}
	session.LastStaffLoginBy = lastLoginBy.String
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	return &session, nil
}

// Insert persists a new location session.
func (r *LocationSessionRepository) Insert(ctx context.Context, session *locations.LocationSession) error {
	if r == nil || r.db == nil {
		return errors.New("location session repo: nil db")
	}
	if session == nil {
		return errors.New("location session repo: nil session")
	}
	if err := session.Validate(); err != nil {
		return err
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, device_fingerprint, bound_by, token, active, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.TenantID,
		session.RestaurantID,
		session.DeviceFingerprint,
		session.BoundBy,
		session.Token,
		session.Active,
		session.ExpiresAt.UTC(),
		session.CreatedAt,
	)
	return err
}

// DeactivateForDevice deactivates every active session bound to a device.
// New bindings call this first so at most one active session exists per
// device fingerprint.
func (r *LocationSessionRepository) DeactivateForDevice(ctx context.Context, deviceFingerprint string, now time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("location session repo: nil db")
	}
	if deviceFingerprint == "" {
		return errors.New("location session repo: empty device fingerprint")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET active = FALSE
WHERE device_fingerprint = $1 AND active = TRUE`, r.table)

	_, err := r.db.ExecContext(ctx, query, deviceFingerprint)
	return err
}

// TouchStaffLogin records the most recent staff login on the binding.
func (r *LocationSessionRepository) TouchStaffLogin(ctx context.Context, id, userID string, now time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("location session repo: nil db")
	}
	if id == "" {
		return errors.New("location session repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET last_staff_login_at = $2, last_staff_login_by = $3
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, now.UTC(), userID)
	return err
}

// CountActiveByTenant counts unexpired active bindings for a tenant.
func (r *LocationSessionRepository) CountActiveByTenant(ctx context.Context, tenantID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("location session repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE tenant_id = $1 AND active = TRUE AND expires_at > NOW()`, r.table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
