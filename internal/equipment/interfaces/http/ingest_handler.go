package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	equipmentapp "restaurant-ops/internal/equipment/application"
	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/observability/metrics"
)

// IngestHandler accepts signed telemetry reports from devices. HMAC
// verification happens in middleware before this handler runs.
type IngestHandler struct {
	monitor *equipmentapp.MonitorService
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(monitor *equipmentapp.MonitorService) (*IngestHandler, error) {
	if monitor == nil {
		return nil, errors.New("ingest handler: nil monitor service")
	}
	return &IngestHandler{monitor: monitor}, nil
}

type ingestRequest struct {
	DeviceID      string          `json:"device_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Running       bool            `json:"running"`
	PowerKW       float64         `json:"power_kw"`
	CycleCount    int             `json:"cycle_count"`
	RuntimeHours  float64         `json:"runtime_hours"`
	EfficiencyPct *float64        `json:"efficiency_pct"`
	TemperatureC  float64         `json:"temperature_c"`
	Vibration     float64         `json:"vibration"`
	ErrorCount    int             `json:"error_count"`
	ErrorCodes    []string        `json:"error_codes"`
	Status        json.RawMessage `json:"status"`
}

type ingestResponse struct {
	Success bool `json:"success"`
	Data    struct {
		EquipmentStatus       equipmentapp.Status            `json:"equipment_status"`
		MaintenancePrediction equipment.Prediction           `json:"maintenance_prediction"`
		ScheduledMaintenance  *equipment.MaintenanceSchedule `json:"scheduled_maintenance,omitempty"`
		CriticalAlerts        []equipment.Alert              `json:"critical_alerts"`
	} `json:"data"`
}

// ServeHTTP handles POST /ingest/equipment/telemetry.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.IncTelemetryError("bad_json")
		metrics.ObserveTelemetry(metrics.ResultError, time.Since(start))
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.DeviceID == "" {
		metrics.IncTelemetryError("missing_device_id")
		metrics.ObserveTelemetry(metrics.ResultError, time.Since(start))
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}

	result, err := h.monitor.Ingest(r.Context(), equipment.TelemetrySample{
		EquipmentID:   req.DeviceID,
		Timestamp:     req.Timestamp,
		Running:       req.Running,
		PowerKW:       req.PowerKW,
		CycleCount:    req.CycleCount,
		RuntimeHours:  req.RuntimeHours,
		EfficiencyPct: req.EfficiencyPct,
		TemperatureC:  req.TemperatureC,
		Vibration:     req.Vibration,
		ErrorCount:    req.ErrorCount,
		ErrorCodes:    req.ErrorCodes,
		Status:        req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, equipmentapp.ErrInvalidSample):
			metrics.IncTelemetryError("invalid_sample")
			metrics.ObserveTelemetry(metrics.ResultError, time.Since(start))
			writeError(w, http.StatusBadRequest, "invalid telemetry sample")
		case errors.Is(err, equipmentapp.ErrUnknownEquipment):
			metrics.IncTelemetryError("unknown_device")
			metrics.ObserveTelemetry(metrics.ResultError, time.Since(start))
			writeError(w, http.StatusNotFound, "unknown device")
		default:
			metrics.IncTelemetryError("store")
			metrics.ObserveTelemetry(metrics.ResultError, time.Since(start))
			writeError(w, http.StatusInternalServerError, "ingest error")
		}
		return
	}

	var resp ingestResponse
	resp.Success = true
	resp.Data.EquipmentStatus = result.Status
	resp.Data.MaintenancePrediction = result.Prediction
	resp.Data.ScheduledMaintenance = result.ScheduledMaintenance
	resp.Data.CriticalAlerts = result.CriticalAlerts
	if resp.Data.CriticalAlerts == nil {
		resp.Data.CriticalAlerts = []equipment.Alert{}
	}

	metrics.ObserveTelemetry(metrics.ResultSuccess, time.Since(start))
	writeJSON(w, http.StatusCreated, resp)
}
