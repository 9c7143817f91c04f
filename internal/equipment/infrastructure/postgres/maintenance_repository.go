package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
)

const defaultMaintenanceTable = "maintenance_schedules"

// MaintenanceRepository stores maintenance schedules. Rows are never
// deleted, only status-transitioned.
type MaintenanceRepository struct {
	db    DBTX
	table string
}

// NewMaintenanceRepository constructs a repository.
func NewMaintenanceRepository(db DBTX, opts ...MaintenanceOption) *MaintenanceRepository {
	repo := &MaintenanceRepository{db: db, table: defaultMaintenanceTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// MaintenanceOption configures the repository.
type MaintenanceOption func(*MaintenanceRepository)

// WithMaintenanceTable overrides the default table name.
func WithMaintenanceTable(table string) MaintenanceOption {
	return func(repo *MaintenanceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

const maintenanceColumns = `id, tenant_id, restaurant_id, equipment_id, type, status, priority,
	origin, scheduled_for, risk_score, COALESCE(description, ''), completed_at, created_at, updated_at`

// Get loads one schedule.
func (r *MaintenanceRepository) Get(ctx context.Context, id string) (*equipment.MaintenanceSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if id == "" {
		return nil, errors.New("maintenance repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, maintenanceColumns, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// OpenForEquipment returns the open schedule claiming a device, nil when
// none exists. At most one open schedule exists per device.
func (r *MaintenanceRepository) OpenForEquipment(ctx context.Context, equipmentID string) (*equipment.MaintenanceSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("maintenance repo: empty equipment id")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE equipment_id = $1 AND status IN ('scheduled','due','overdue')
ORDER BY scheduled_for ASC
LIMIT 1`, maintenanceColumns, r.table)

	return r.scanOne(r.db.QueryRowContext(ctx, query, equipmentID))
}

// Insert persists a new schedule.
func (r *MaintenanceRepository) Insert(ctx context.Context, schedule *equipment.MaintenanceSchedule) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	if schedule == nil {
		return errors.New("maintenance repo: nil schedule")
	}
	if err := schedule.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = now
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, restaurant_id, equipment_id, type, status, priority, origin,
	scheduled_for, risk_score, description, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.TenantID,
		schedule.RestaurantID,
		schedule.EquipmentID,
		string(schedule.Type),
		string(schedule.Status),
		string(schedule.Priority),
		schedule.Origin,
		schedule.ScheduledFor.UTC(),
		schedule.RiskScore,
		schedule.Description,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	return err
}

// UpdateStatus persists a status transition.
func (r *MaintenanceRepository) UpdateStatus(ctx context.Context, schedule *equipment.MaintenanceSchedule) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	if schedule == nil || schedule.ID == "" {
		return errors.New("maintenance repo: nil schedule")
	}

	var completedAt sql.NullTime
	if !schedule.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: schedule.CompletedAt.UTC(), Valid: true}
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, completed_at = $3, updated_at = $4
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		string(schedule.Status),
		completedAt,
		schedule.UpdatedAt.UTC(),
	)
	return err
}

// ListByRestaurant returns schedules for one restaurant, soonest first.
func (r *MaintenanceRepository) ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]equipment.MaintenanceSchedule, error) {
	if restaurantID == "" {
		return nil, errors.New("maintenance repo: empty restaurant id")
	}
	return r.list(ctx, "restaurant_id", restaurantID, limit)
}

// ListByEquipment returns schedules for one device, soonest first.
func (r *MaintenanceRepository) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]equipment.MaintenanceSchedule, error) {
	if equipmentID == "" {
		return nil, errors.New("maintenance repo: empty equipment id")
	}
	return r.list(ctx, "equipment_id", equipmentID, limit)
}

func (r *MaintenanceRepository) list(ctx context.Context, column, value string, limit int) ([]equipment.MaintenanceSchedule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s = $1
ORDER BY scheduled_for ASC
LIMIT $2`, maintenanceColumns, r.table, column)

	rows, err := r.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipment.MaintenanceSchedule
	for rows.Next() {
		schedule, err := scanMaintenance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *schedule)
	}
	return out, rows.Err()
}

// LastCompleted returns when a device was last maintained.
func (r *MaintenanceRepository) LastCompleted(ctx context.Context, equipmentID string) (*time.Time, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("maintenance repo: empty equipment id")
	}

	query := fmt.Sprintf(`
SELECT completed_at
FROM %s
WHERE equipment_id = $1 AND status = 'completed' AND completed_at IS NOT NULL
ORDER BY completed_at DESC
LIMIT 1`, r.table)

	var completedAt time.Time
	if err := r.db.QueryRowContext(ctx, query, equipmentID).Scan(&completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	utc := completedAt.UTC()
	return &utc, nil
}

// MarkDue advances scheduled rows whose date has arrived to due, and due
// rows a day past their date to overdue.
func (r *MaintenanceRepository) MarkDue(ctx context.Context, now time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("maintenance repo: nil db")
	}

	dueQuery := fmt.Sprintf(`
UPDATE %s
SET status = 'due', updated_at = $1
WHERE status = 'scheduled' AND scheduled_for <= $1`, r.table)

	overdueQuery := fmt.Sprintf(`
UPDATE %s
SET status = 'overdue', updated_at = $1
WHERE status = 'due' AND scheduled_for <= $2`, r.table)

	var changed int64
	res, err := r.db.ExecContext(ctx, dueQuery, now.UTC())
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		changed += n
	}
	res, err = r.db.ExecContext(ctx, overdueQuery, now.UTC(), now.UTC().Add(-24*time.Hour))
	if err != nil {
		return changed, err
	}
	if n, err := res.RowsAffected(); err == nil {
		changed += n
	}
	return changed, nil
}

func (r *MaintenanceRepository) scanOne(row *sql.Row) (*equipment.MaintenanceSchedule, error) {
	schedule, err := scanMaintenance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return schedule, nil
}

func scanMaintenance(row rowScanner) (*equipment.MaintenanceSchedule, error) {
	var m equipment.MaintenanceSchedule
	var typ, status, priority string
	var completedAt sql.NullTime
	if err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.RestaurantID,
		&m.EquipmentID,
		&typ,
		&status,
		&priority,
		&m.Origin,
		&m.ScheduledFor,
		&m.RiskScore,
		&m.Description,
		&completedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Type = equipment.MaintenanceType(typ)
	m.Status = equipment.MaintenanceStatus(status)
	m.Priority = equipment.MaintenancePriority(priority)
	if completedAt.Valid {
		m.CompletedAt = completedAt.Time.UTC()
	}
	m.ScheduledFor = m.ScheduledFor.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
