package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	identity "restaurant-ops/internal/identity/domain"
)

const defaultUsersTable = "users"

// UserRepository is a Postgres implementation of identity.UserRepository.
type UserRepository struct {
	db    DBTX
	table string
}

// NewUserRepository constructs a repository.
func NewUserRepository(db DBTX, opts ...UserOption) *UserRepository {
	repo := &UserRepository{db: db, table: defaultUsersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UserOption configures the repository.
type UserOption func(*UserRepository)

// WithUsersTable overrides the default table name.
func WithUsersTable(table string) UserOption {
	return func(repo *UserRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const userColumns = `id, tenant_id, COALESCE(restaurant_id, ''), email, role,
	first_name, last_name, display_name, COALESCE(pin_hash, ''), COALESCE(password_hash, ''),
	active, last_login_at, created_at, updated_at`

// GetByID loads a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if id == "" {
		return nil, errors.New("user repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, userColumns, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail loads a user by tenant and email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*identity.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if tenantID == "" || email == "" {
		return nil, errors.New("user repo: empty tenant or email")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE tenant_id = $1 AND LOWER(email) = LOWER($2)
LIMIT 1`, userColumns, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, tenantID, strings.TrimSpace(email)))
}

// ListActiveStaffByRestaurant returns active staff users in insertion
// order, which the PIN login flow depends on.
func (r *UserRepository) ListActiveStaffByRestaurant(ctx context.Context, restaurantID string) ([]identity.User, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("user repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("user repo: empty restaurant id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE restaurant_id = $1 AND role = 'staff' AND active = TRUE
ORDER BY created_at ASC, id ASC`, userColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []identity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

// UpdateLastLogin records a successful login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("user repo: nil db")
	}
	if id == "" {
		return errors.New("user repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET last_login_at = $2, updated_at = $2
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, at.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanOne(row *sql.Row) (*identity.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*identity.User, error) {
	var user identity.User
	var lastLogin sql.NullTime
	if err := row.Scan(
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
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLoginAt = lastLogin.Time.UTC()
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return &user, nil
}
