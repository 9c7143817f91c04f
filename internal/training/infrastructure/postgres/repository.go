package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	training "restaurant-ops/internal/training/domain"
)

const defaultProgressTable = "training_progress"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const progressColumns = "id, tenant_id, restaurant_id, user_id, document_id, status, score, completed_at, created_at, updated_at"

// ProgressRepository is a Postgres implementation of
// training.ProgressRepository.
type ProgressRepository struct {
	db    DBTX
	table string
}

// NewProgressRepository constructs a repository.
func NewProgressRepository(db DBTX) *ProgressRepository {
	return &ProgressRepository{db: db, table: defaultProgressTable}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(s rowScanner) (*training.Progress, error) {
	var p training.Progress
	var score sql.NullFloat64
	var completedAt sql.NullTime
	if err := s.Scan(
		&p.ID, &p.TenantID, &p.RestaurantID, &p.UserID, &p.DocumentID,
		&p.Status, &score, &completedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		p.Score = &v
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		p.CompletedAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Get loads one progress row.
func (r *ProgressRepository) Get(ctx context.Context, id string) (*training.Progress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("training repo: nil db")
	}
	if id == "" {
		return nil, errors.New("training repo: empty id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, progressColumns, r.table)
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// FindByUserDocument returns the row for one user on one document.
func (r *ProgressRepository) FindByUserDocument(ctx context.Context, userID, documentID string) (*training.Progress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("training repo: nil db")
	}
	if userID == "" || documentID == "" {
		return nil, errors.New("training repo: empty user or document id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND document_id = $2 LIMIT 1`, progressColumns, r.table)
	p, err := scanProgress(r.db.QueryRowContext(ctx, query, userID, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ProgressRepository) list(ctx context.Context, where, arg string) ([]training.Progress, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("training repo: nil db")
	}
	if arg == "" {
		return nil, errors.New("training repo: empty filter")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY updated_at DESC`, progressColumns, r.table, where)
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []training.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListByRestaurant returns every progress row for one restaurant.
func (r *ProgressRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]training.Progress, error) {
	return r.list(ctx, "restaurant_id", restaurantID)
}

// ListByUser returns every progress row for one user.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]training.Progress, error) {
	return r.list(ctx, "user_id", userID)
}

// Save upserts a progress row keyed by (user_id, document_id).
func (r *ProgressRepository) Save(ctx context.Context, p *training.Progress) error {
	if r == nil || r.db == nil {
		return errors.New("training repo: nil db")
	}
	if p == nil {
		return errors.New("training repo: nil progress")
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	var score sql.NullFloat64
	if p.Score != nil {
		score = sql.NullFloat64{Float64: *p.Score, Valid: true}
	}
	var completedAt sql.NullTime
	if p.CompletedAt != nil {
		completedAt = sql.NullTime{Time: p.CompletedAt.UTC(), Valid: true}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, user_id, document_id, status, score, completed_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (user_id, document_id) DO UPDATE SET
	status = EXCLUDED.status,
	score = EXCLUDED.score,
	completed_at = EXCLUDED.completed_at,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TenantID, p.RestaurantID, p.UserID, p.DocumentID,
		p.Status, score, completedAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}
