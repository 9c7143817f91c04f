package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	franchise "restaurant-ops/internal/franchise/domain"
)

const (
	defaultFranchisesTable     = "franchises"
	defaultStatementsTable     = "royalty_statements"
	defaultStatementItemsTable = "royalty_statement_items"
)

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const franchiseColumns = "id, tenant_id, name, owner_name, COALESCE(owner_email, ''), royalty_rate, marketing_rate, currency, active, created_at, updated_at"

// FranchiseRepository is a Postgres implementation of
// franchise.Repository.
type FranchiseRepository struct {
	db    DBTX
	table string
}

// NewFranchiseRepository constructs a repository.
func NewFranchiseRepository(db DBTX) *FranchiseRepository {
	return &FranchiseRepository{db: db, table: defaultFranchisesTable}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFranchise(s rowScanner) (*franchise.Franchise, error) {
	var f franchise.Franchise
	if err := s.Scan(
		&f.ID, &f.TenantID, &f.Name, &f.OwnerName, &f.OwnerEmail,
		&f.RoyaltyRate, &f.MarketingRate, &f.Currency, &f.Active,
		&f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

// Get loads one franchise.
func (r *FranchiseRepository) Get(ctx context.Context, id string) (*franchise.Franchise, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("franchise repo: nil db")
	}
	if id == "" {
		return nil, errors.New("franchise repo: empty id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, franchiseColumns, r.table)
	f, err := scanFranchise(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// List returns a tenant's franchises.
func (r *FranchiseRepository) List(ctx context.Context, tenantID string) ([]franchise.Franchise, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("franchise repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("franchise repo: empty tenant id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 ORDER BY name ASC`, franchiseColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []franchise.Franchise
	for rows.Next() {
		f, err := scanFranchise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Save upserts a franchise.
func (r *FranchiseRepository) Save(ctx context.Context, f *franchise.Franchise) error {
	if r == nil || r.db == nil {
		return errors.New("franchise repo: nil db")
	}
	if f == nil {
		return errors.New("franchise repo: nil franchise")
	}
	if err := f.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, name, owner_name, owner_email, royalty_rate, marketing_rate, currency, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	owner_name = EXCLUDED.owner_name,
	owner_email = EXCLUDED.owner_email,
	royalty_rate = EXCLUDED.royalty_rate,
	marketing_rate = EXCLUDED.marketing_rate,
	currency = EXCLUDED.currency,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.TenantID, f.Name, f.OwnerName, f.OwnerEmail,
		f.RoyaltyRate, f.MarketingRate, f.Currency, f.Active,
		f.CreatedAt, f.UpdatedAt,
	)
	return err
}

const statementColumns = "id, tenant_id, franchise_id, statement_month, version, status, total_sales, royalty_amount, marketing_amount, total_due, currency, COALESCE(snapshot_hash, ''), COALESCE(frozen_at, 'epoch'::timestamptz), COALESCE(void_reason, ''), COALESCE(voided_at, 'epoch'::timestamptz), created_at, updated_at"

// StatementRepository is a Postgres implementation of
// franchise.StatementRepository.
type StatementRepository struct {
	db         DBTX
	table      string
	itemsTable string
}

// NewStatementRepository constructs a repository.
func NewStatementRepository(db DBTX) *StatementRepository {
	return &StatementRepository{db: db, table: defaultStatementsTable, itemsTable: defaultStatementItemsTable}
}

func scanStatement(s rowScanner) (*franchise.Statement, error) {
	var st franchise.Statement
	if err := s.Scan(
		&st.ID, &st.TenantID, &st.FranchiseID, &st.StatementMonth, &st.Version, &st.Status,
		&st.TotalSales, &st.RoyaltyAmount, &st.MarketingAmount, &st.TotalDue, &st.Currency,
		&st.SnapshotHash, &st.FrozenAt, &st.VoidReason, &st.VoidedAt,
		&st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.StatementMonth = st.StatementMonth.UTC()
	st.FrozenAt = st.FrozenAt.UTC()
	st.VoidedAt = st.VoidedAt.UTC()
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

// GetByID loads one statement.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*franchise.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	if id == "" {
		return nil, errors.New("statement repo: empty id")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, statementColumns, r.table)
	st, err := scanStatement(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

// FindLatestActive returns the newest non-voided statement for a
// franchise month.
func (r *StatementRepository) FindLatestActive(ctx context.Context, tenantID, franchiseID string, month time.Time) (*franchise.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE tenant_id = $1 AND franchise_id = $2 AND statement_month = $3 AND status <> 'voided'
ORDER BY version DESC
LIMIT 1`, statementColumns, r.table)

	st, err := scanStatement(r.db.QueryRowContext(ctx, query, tenantID, franchiseID, month))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

// NextVersion returns the next statement version for a franchise month.
func (r *StatementRepository) NextVersion(ctx context.Context, tenantID, franchiseID string, month time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT COALESCE(MAX(version), 0) + 1 FROM %s
WHERE tenant_id = $1 AND franchise_id = $2 AND statement_month = $3`, r.table)

	var version int
	if err := r.db.QueryRowContext(ctx, query, tenantID, franchiseID, month).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// CreateWithItems inserts a statement and its line items.
func (r *StatementRepository) CreateWithItems(ctx context.Context, st *franchise.Statement, items []franchise.StatementItem) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}
	if st == nil {
		return errors.New("statement repo: nil statement")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, franchise_id, statement_month, version, status, total_sales, royalty_amount, marketing_amount, total_due, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, r.table)

	if _, err := r.db.ExecContext(ctx, query,
		st.ID, st.TenantID, st.FranchiseID, st.StatementMonth, st.Version, st.Status,
		st.TotalSales, st.RoyaltyAmount, st.MarketingAmount, st.TotalDue, st.Currency,
		st.CreatedAt, st.UpdatedAt,
	); err != nil {
		return err
	}

	itemQuery := fmt.Sprintf(`
INSERT INTO %s (statement_id, restaurant_id, sales, royalty_amount, marketing_amount, total_due)
VALUES ($1,$2,$3,$4,$5,$6)`, r.itemsTable)

	for _, item := range items {
		if _, err := r.db.ExecContext(ctx, itemQuery,
			st.ID, item.RestaurantID, item.Sales, item.RoyaltyAmount, item.MarketingAmount, item.TotalDue,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListItems returns a statement's line items.
func (r *StatementRepository) ListItems(ctx context.Context, statementID string) ([]franchise.StatementItem, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT statement_id, restaurant_id, sales, royalty_amount, marketing_amount, total_due
FROM %s
WHERE statement_id = $1
ORDER BY restaurant_id ASC`, r.itemsTable)

	rows, err := r.db.QueryContext(ctx, query, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []franchise.StatementItem
	for rows.Next() {
		var item franchise.StatementItem
		if err := rows.Scan(
			&item.StatementID, &item.RestaurantID, &item.Sales,
			&item.RoyaltyAmount, &item.MarketingAmount, &item.TotalDue,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListByFranchiseMonth returns all statement versions for a month.
func (r *StatementRepository) ListByFranchiseMonth(ctx context.Context, tenantID, franchiseID string, month time.Time) ([]franchise.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE tenant_id = $1 AND franchise_id = $2 AND statement_month = $3
ORDER BY version DESC`, statementColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, franchiseID, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []franchise.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// MarkFrozen freezes a draft statement. Only drafts can be frozen.
func (r *StatementRepository) MarkFrozen(ctx context.Context, id, snapshotHash string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = 'frozen', snapshot_hash = $2, frozen_at = $3, updated_at = $3
WHERE id = $1 AND status = 'draft'`, r.table)

	res, err := r.db.ExecContext(ctx, query, id, snapshotHash, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("statement repo: statement not frozen")
	}
	return nil
}

// MarkVoided voids a statement.
func (r *StatementRepository) MarkVoided(ctx context.Context, id, reason string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = 'voided', void_reason = NULLIF($2, ''), voided_at = $3, updated_at = $3
WHERE id = $1 AND status <> 'voided'`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, reason, at)
	return err
}
