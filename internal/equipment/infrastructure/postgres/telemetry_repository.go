package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	equipment "restaurant-ops/internal/equipment/domain"
)

const defaultTelemetryTable = "equipment_telemetry"

// TelemetryRepository stores append-only device readings.
type TelemetryRepository struct {
	db    DBTX
	table string
}

// NewTelemetryRepository constructs a repository.
func NewTelemetryRepository(db DBTX, opts ...TelemetryOption) *TelemetryRepository {
	repo := &TelemetryRepository{db: db, table: defaultTelemetryTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TelemetryOption configures the repository.
type TelemetryOption func(*TelemetryRepository)

// WithTelemetryTable overrides the default table name.
func WithTelemetryTable(table string) TelemetryOption {
	return func(repo *TelemetryRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends one sample. Samples are immutable once written.
func (r *TelemetryRepository) Insert(ctx context.Context, sample *equipment.TelemetrySample) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}
	if sample == nil {
		return errors.New("telemetry repo: nil sample")
	}
	if err := sample.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (id, equipment_id, ts, running, power_kw, cycle_count, runtime_hours,
	efficiency_pct, temperature_c, vibration, error_count, health_score, error_codes, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`, r.table)

	var efficiency sql.NullFloat64
	if sample.EfficiencyPct != nil {
		efficiency = sql.NullFloat64{Float64: *sample.EfficiencyPct, Valid: true}
	}
	status := sample.Status
	if len(status) == 0 {
		status = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx, query,
		sample.ID,
		sample.EquipmentID,
		sample.Timestamp.UTC(),
		sample.Running,
		sample.PowerKW,
		sample.CycleCount,
		sample.RuntimeHours,
		efficiency,
		sample.TemperatureC,
		sample.Vibration,
		sample.ErrorCount,
		sample.HealthScore,
		strings.Join(sample.ErrorCodes, ","),
		[]byte(status),
	)
	return err
}

// ListRecent returns up to limit samples for a device, newest first.
func (r *TelemetryRepository) ListRecent(ctx context.Context, equipmentID string, limit int) ([]equipment.TelemetrySample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("telemetry repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("telemetry repo: empty equipment id")
	}
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	query := fmt.Sprintf(`
SELECT id, equipment_id, ts, running, power_kw, cycle_count, runtime_hours,
	efficiency_pct, temperature_c, vibration, error_count, health_score,
	COALESCE(error_codes, ''), status
FROM %s
WHERE equipment_id = $1
ORDER BY ts DESC
LIMIT $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, equipmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipment.TelemetrySample
	for rows.Next() {
		var s equipment.TelemetrySample
		var efficiency sql.NullFloat64
		var errorCodes string
		var status []byte
		if err := rows.Scan(
			&s.ID,
			&s.EquipmentID,
			&s.Timestamp,
			&s.Running,
			&s.PowerKW,
			&s.CycleCount,
			&s.RuntimeHours,
			&efficiency,
			&s.TemperatureC,
			&s.Vibration,
			&s.ErrorCount,
			&s.HealthScore,
			&errorCodes,
			&status,
		); err != nil {
			return nil, err
		}
		if efficiency.Valid {
			v := efficiency.Float64
			s.EfficiencyPct = &v
		}
		if errorCodes != "" {
			s.ErrorCodes = strings.Split(errorCodes, ",")
		}
		s.Status = status
		s.Timestamp = s.Timestamp.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
