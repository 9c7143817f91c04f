package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sop "restaurant-ops/internal/sop/domain"
)

const (
	defaultCategoriesTable = "sop_categories"
	defaultDocumentsTable  = "sop_documents"
)

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CategoryRepository is a Postgres implementation of sop.CategoryRepository.
type CategoryRepository struct {
	db    DBTX
	table string
}

// NewCategoryRepository constructs a repository.
func NewCategoryRepository(db DBTX) *CategoryRepository {
	return &CategoryRepository{db: db, table: defaultCategoriesTable}
}

// Get loads one category.
func (r *CategoryRepository) Get(ctx context.Context, id string) (*sop.Category, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sop repo: nil db")
	}
	if id == "" {
		return nil, errors.New("sop repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, restaurant_id, name, COALESCE(description, ''), position, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var c sop.Category
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.TenantID, &c.RestaurantID, &c.Name, &c.Description,
		&c.Position, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// ListByRestaurant returns categories in display order.
func (r *CategoryRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]sop.Category, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sop repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("sop repo: empty restaurant id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, restaurant_id, name, COALESCE(description, ''), position, active, created_at, updated_at
FROM %s
WHERE restaurant_id = $1
ORDER BY position ASC, name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sop.Category
	for rows.Next() {
		var c sop.Category
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.RestaurantID, &c.Name, &c.Description,
			&c.Position, &c.Active, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Save upserts a category.
func (r *CategoryRepository) Save(ctx context.Context, c *sop.Category) error {
	if r == nil || r.db == nil {
		return errors.New("sop repo: nil db")
	}
	if c == nil {
		return errors.New("sop repo: nil category")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, name, description, position, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	position = EXCLUDED.position,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.TenantID, c.RestaurantID, c.Name, c.Description,
		c.Position, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// DocumentRepository is a Postgres implementation of sop.DocumentRepository.
type DocumentRepository struct {
	db    DBTX
	table string
}

// NewDocumentRepository constructs a repository.
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db, table: defaultDocumentsTable}
}

// Get loads one document.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*sop.Document, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sop repo: nil db")
	}
	if id == "" {
		return nil, errors.New("sop repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, restaurant_id, COALESCE(category_id, ''), title, content, position, version, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var d sop.Document
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.TenantID, &d.RestaurantID, &d.CategoryID, &d.Title, &d.Content,
		&d.Position, &d.Version, &d.Active, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

// ListByRestaurant returns documents in display order, optionally
// filtered by category.
func (r *DocumentRepository) ListByRestaurant(ctx context.Context, restaurantID, categoryID string) ([]sop.Document, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sop repo: nil db")
	}
	if restaurantID == "" {
		return nil, errors.New("sop repo: empty restaurant id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, restaurant_id, COALESCE(category_id, ''), title, content, position, version, active, created_at, updated_at
FROM %s
WHERE restaurant_id = $1 AND ($2 = '' OR category_id = $2)
ORDER BY position ASC, title ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, restaurantID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sop.Document
	for rows.Next() {
		var d sop.Document
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.RestaurantID, &d.CategoryID, &d.Title, &d.Content,
			&d.Position, &d.Version, &d.Active, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		d.UpdatedAt = d.UpdatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Save upserts a document, bumping its version on update.
func (r *DocumentRepository) Save(ctx context.Context, d *sop.Document) error {
	if r == nil || r.db == nil {
		return errors.New("sop repo: nil db")
	}
	if d == nil {
		return errors.New("sop repo: nil document")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.Version == 0 {
		d.Version = 1
	}
	d.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, category_id, title, content, position, version, active, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	category_id = EXCLUDED.category_id,
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	position = EXCLUDED.position,
	version = %s.version + 1,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table, r.table)

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.TenantID, d.RestaurantID, d.CategoryID, d.Title, d.Content,
		d.Position, d.Version, d.Active, d.CreatedAt, d.UpdatedAt,
	)
	return err
}
