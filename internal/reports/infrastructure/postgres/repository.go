package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	reports "restaurant-ops/internal/reports/domain"
)

const defaultReportsTable = "daily_reports"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const reportColumns = "id, tenant_id, restaurant_id, report_date, status, location, COALESCE(summary, '{}'::jsonb), created_at"

// Repository is a Postgres implementation of reports.Repository.
type Repository struct {
	db    DBTX
	table string
}

// NewRepository constructs a repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db, table: defaultReportsTable}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(s rowScanner) (*reports.Report, error) {
	var r reports.Report
	var summary []byte
	if err := s.Scan(
		&r.ID, &r.TenantID, &r.RestaurantID, &r.ReportDate,
		&r.Status, &r.Location, &summary, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Summary = summary
	r.ReportDate = r.ReportDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// Get loads one report.
func (r *Repository) Get(ctx context.Context, id string) (*reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reports repo: nil db")
	}
	if id == "" {
		return nil, errors.New("reports repo: empty id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, reportColumns, r.table)
	rep, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

// FindByRestaurantDate returns the report for one restaurant day.
func (r *Repository) FindByRestaurantDate(ctx context.Context, restaurantID string, date time.Time) (*reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reports repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("reports repo: empty restaurant id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE restaurant_id = $1 AND report_date = $2 LIMIT 1`, reportColumns, r.table)
	rep, err := scanReport(r.db.QueryRowContext(ctx, query, restaurantID, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rep, err
}

// ListByRestaurant returns the newest reports first.
func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]reports.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reports repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("reports repo: empty restaurant id")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE restaurant_id = $1
ORDER BY report_date DESC
LIMIT $2`, reportColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, restaurantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

// Create inserts one report row.
func (r *Repository) Create(ctx context.Context, rep *reports.Report) error {
	if r == nil || r.db == nil {
		return errors.New("reports repo: nil db")
	}
	if rep == nil {
		return errors.New("reports repo: nil report")
	}
	if err := rep.Validate(); err != nil {
		return err
	}

	summary := rep.Summary
	if len(summary) == 0 {
		summary = []byte("{}")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, report_date, status, location, summary, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		rep.ID, rep.TenantID, rep.RestaurantID, rep.ReportDate,
		rep.Status, rep.Location, []byte(summary), rep.CreatedAt,
	)
	return err
}
