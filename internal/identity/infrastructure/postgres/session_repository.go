package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	identity "restaurant-ops/internal/identity/domain"
)

const defaultUserSessionsTable = "user_sessions"

// SessionRepository is a Postgres implementation of identity.SessionRepository.
type SessionRepository struct {
	db         DBTX
	table      string
	usersTable string
}

// NewSessionRepository constructs a repository.
func NewSessionRepository(db DBTX, opts ...SessionOption) *SessionRepository {
	repo := &SessionRepository{db: db, table: defaultUserSessionsTable, usersTable: defaultUsersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SessionOption configures the repository.
type SessionOption func(*SessionRepository)

// WithUserSessionsTable overrides the default sessions table name.
func WithUserSessionsTable(table string) SessionOption {
	return func(repo *SessionRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithSessionUsersTable overrides the users table joined by GetActive.
func WithSessionUsersTable(table string) SessionOption {
	return func(repo *SessionRepository) {
		if table != "" {
			repo.usersTable = table
		}
	}
}

// Insert persists a new session.
func (r *SessionRepository) Insert(ctx context.Context, session *identity.Session) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	if session == nil {
		return errors.New("session repo: nil session")
	}
	if err := session.Validate(); err != nil {
		return err
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
INSERT INTO %s (token, user_id, tenant_id, restaurant_id, device_fingerprint, location_session_id, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		session.TenantID,
		session.RestaurantID,
		session.DeviceFingerprint,
		session.LocationSessionID,
		session.ExpiresAt.UTC(),
		session.CreatedAt,
	)
	return err
}

// GetActive resolves an unexpired session together with its owning user.
func (r *SessionRepository) GetActive(ctx context.Context, token string) (*identity.Session, *identity.User, error) {
	if r == nil || r.db == nil {
		return nil, nil, errors.New("session repo: nil db")
	}
	if token == "" {
		return nil, nil, errors.New("session repo: empty token")
	}

	query := fmt.Sprintf(`
SELECT s.token, s.user_id, s.tenant_id, COALESCE(s.restaurant_id, ''), s.device_fingerprint,
	COALESCE(s.location_session_id, ''), s.expires_at, s.created_at,
	u.id, u.tenant_id, COALESCE(u.restaurant_id, ''), u.email, u.role,
	u.first_name, u.last_name, u.display_name, COALESCE(u.pin_hash, ''), COALESCE(u.password_hash, ''),
	u.active, u.last_login_at, u.created_at, u.updated_at
FROM %s s
JOIN %s u ON u.id = s.user_id
WHERE s.token = $1 AND s.expires_at > NOW()
LIMIT 1`, r.table, r.usersTable)

	var session identity.Session
	var user identity.User
	var lastLogin sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.TenantID,
		&session.RestaurantID,
		&session.DeviceFingerprint,
		&session.LocationSessionID,
		&session.ExpiresAt,
		&session.CreatedAt,
		&user.ID,
		&user.TenantID,
		&user.RestaurantID,
		&user.Email,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.DisplayName,
		&user.PINHash,
		&user.PasswordHash,
		&user.Active,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &session, &user, nil
}

// Delete removes a session token.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if r == nil || r.db == nil {
		return errors.New("session repo: nil db")
	}
	if token == "" {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE token = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}
