package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restaurant-ops/internal/auth"
)

const timeLayout = time.RFC3339

// DashboardHandler serves the per-restaurant operations dashboard
// aggregate.
type DashboardHandler struct {
	db      *sql.DB
	checker auth.RestaurantTenantChecker
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *sql.DB, checker auth.RestaurantTenantChecker) *DashboardHandler {
	return &DashboardHandler{db: db, checker: checker}
}

type dashboardRow struct {
	RestaurantID      string   `json:"restaurant_id"`
	EquipmentCount    int      `json:"equipment_count"`
	AverageHealth     *float64 `json:"average_health"`
	OpenMaintenance   int      `json:"open_maintenance"`
	OverdueCount      int      `json:"overdue_count"`
	ActiveStaff       int      `json:"active_staff"`
	TrainingTotal     int      `json:"training_total"`
	TrainingCompleted int      `json:"training_completed"`
}

// ServeHTTP handles GET /api/v1/dashboard.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	restaurantID := r.URL.Query().Get("restaurant_id")
	if restaurantID == "" {
		http.Error(w, "restaurant_id is required", http.StatusBadRequest)
		return
	}
	if h.checker != nil {
		tenantID := auth.TenantIDFromContext(r.Context())
		if err := h.checker.EnsureRestaurantTenant(r.Context(), tenantID, restaurantID); err != nil {
			if errors.Is(err, auth.ErrTenantMismatch) || errors.Is(err, auth.ErrNotFound) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			http.Error(w, "ownership check error", http.StatusInternalServerError)
			return
		}
	}

	row, err := queryDashboard(r.Context(), h.db, restaurantID)
	if err != nil {
		http.Error(w, "query dashboard error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(row)
}

func queryDashboard(ctx context.Context, db *sql.DB, restaurantID string) (*dashboardRow, error) {
	row := &dashboardRow{RestaurantID: restaurantID}
	var avgHealth sql.NullFloat64
	err := db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM equipment WHERE restaurant_id = $1 AND active = TRUE),
	(SELECT AVG(latest.health_score) FROM (
		SELECT DISTINCT ON (equipment_id) health_score
		FROM equipment_telemetry
		WHERE equipment_id IN (SELECT id FROM equipment WHERE restaurant_id = $1)
		ORDER BY equipment_id, ts DESC
	) latest),
	(SELECT COUNT(*) FROM maintenance_schedules WHERE restaurant_id = $1 AND status IN ('scheduled','due','overdue')),
	(SELECT COUNT(*) FROM maintenance_schedules WHERE restaurant_id = $1 AND status = 'overdue'),
	(SELECT COUNT(*) FROM users WHERE restaurant_id = $1 AND role = 'staff' AND active = TRUE),
	(SELECT COUNT(*) FROM training_progress WHERE restaurant_id = $1),
	(SELECT COUNT(*) FROM training_progress WHERE restaurant_id = $1 AND status = 'completed')`,
		restaurantID,
	).Scan(
		&row.EquipmentCount,
		&avgHealth,
		&row.OpenMaintenance,
		&row.OverdueCount,
		&row.ActiveStaff,
		&row.TrainingTotal,
		&row.TrainingCompleted,
	)
	if err != nil {
		return nil, err
	}
	if avgHealth.Valid {
		v := avgHealth.Float64
		row.AverageHealth = &v
	}
	return row, nil
}

// TelemetryStatsHandler serves telemetry history queries for charting.
type TelemetryStatsHandler struct {
	db *sql.DB
}

// NewTelemetryStatsHandler constructs a TelemetryStatsHandler.
func NewTelemetryStatsHandler(db *sql.DB) *TelemetryStatsHandler {
	return &TelemetryStatsHandler{db: db}
}

type telemetryRow struct {
	EquipmentID  string    `json:"equipment_id"`
	Timestamp    time.Time `json:"timestamp"`
	Running      bool      `json:"running"`
	PowerKW      float64   `json:"power_kw"`
	RuntimeHours float64   `json:"runtime_hours"`
	Efficiency   *float64  `json:"efficiency_pct"`
	TemperatureC float64   `json:"temperature_c"`
	Vibration    float64   `json:"vibration"`
	ErrorCount   int       `json:"error_count"`
	HealthScore  float64   `json:"health_score"`
}

// ServeHTTP handles GET /api/v1/stats/telemetry.
func (h *TelemetryStatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	equipmentID := r.URL.Query().Get("equipment_id")
	if equipmentID == "" {
		http.Error(w, "equipment_id is required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryTelemetry(r.Context(), h.db, equipmentID, from, to)
	if err != nil {
		http.Error(w, "query telemetry error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportTelemetryCSVHandler serves telemetry CSV exports.
type ExportTelemetryCSVHandler struct {
	db *sql.DB
}

// NewExportTelemetryCSVHandler constructs a ExportTelemetryCSVHandler.
func NewExportTelemetryCSVHandler(db *sql.DB) *ExportTelemetryCSVHandler {
	return &ExportTelemetryCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/telemetry.csv.
func (h *ExportTelemetryCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	equipmentID := r.URL.Query().Get("equipment_id")
	if equipmentID == "" {
		http.Error(w, "equipment_id is required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryTelemetry(r.Context(), h.db, equipmentID, from, to)
	if err != nil {
		http.Error(w, "query telemetry error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"equipment_id",
		"timestamp",
		"running",
		"power_kw",
		"runtime_hours",
		"efficiency_pct",
		"temperature_c",
		"vibration",
		"error_count",
		"health_score",
	})
	for _, row := range rows {
		efficiency := ""
		if row.Efficiency != nil {
			efficiency = formatFloat(*row.Efficiency)
		}
		_ = writer.Write([]string{
			row.EquipmentID,
			row.Timestamp.Format(timeLayout),
			strconv.FormatBool(row.Running),
			formatFloat(row.PowerKW),
			formatFloat(row.RuntimeHours),
			efficiency,
			formatFloat(row.TemperatureC),
			formatFloat(row.Vibration),
			strconv.Itoa(row.ErrorCount),
			formatFloat(row.HealthScore),
		})
	}
	writer.Flush()
}

func queryTelemetry(ctx context.Context, db *sql.DB, equipmentID string, from, to time.Time) ([]telemetryRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	equipment_id,
	ts,
	running,
	power_kw,
	runtime_hours,
	efficiency_pct,
	temperature_c,
	vibration,
	error_count,
	health_score
FROM equipment_telemetry
WHERE equipment_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC`, equipmentID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetryRow
	for rows.Next() {
		var row telemetryRow
		var efficiency sql.NullFloat64
		if err := rows.Scan(
			&row.EquipmentID,
			&row.Timestamp,
			&row.Running,
			&row.PowerKW,
			&row.RuntimeHours,
			&efficiency,
			&row.TemperatureC,
			&row.Vibration,
			&row.ErrorCount,
			&row.HealthScore,
		); err != nil {
			return nil, err
		}
		row.Timestamp = row.Timestamp.UTC()
		if efficiency.Valid {
			v := efficiency.Float64
			row.Efficiency = &v
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
