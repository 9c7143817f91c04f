package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	equipmentapp "restaurant-ops/internal/equipment/application"
	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/statestore"
)

type stubRegistry struct {
	device *equipment.Equipment
}

func (s *stubRegistry) Get(_ context.Context, id string) (*equipment.Equipment, error) {
	if s.device != nil && s.device.ID == id {
		return s.device, nil
	}
	return nil, nil
}

func (s *stubRegistry) ListByRestaurant(_ context.Context, _ string) ([]equipment.Equipment, error) {
	return nil, nil
}

func (s *stubRegistry) Save(_ context.Context, d *equipment.Equipment) error {
	s.device = d
	return nil
}

func (s *stubRegistry) ListWithRecentTelemetry(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type stubTelemetry struct {
	samples []equipment.TelemetrySample
}

func (s *stubTelemetry) Insert(_ context.Context, sample *equipment.TelemetrySample) error {
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *stubTelemetry) ListRecent(_ context.Context, _ string, _ int) ([]equipment.TelemetrySample, error) {
	out := make([]equipment.TelemetrySample, 0, len(s.samples))
	for i := len(s.samples) - 1; i >= 0; i-- {
		out = append(out, s.samples[i])
	}
	return out, nil
}

type stubMaintenance struct{}

func (stubMaintenance) Get(_ context.Context, _ string) (*equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (stubMaintenance) OpenForEquipment(_ context.Context, _ string) (*equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (stubMaintenance) Insert(_ context.Context, _ *equipment.MaintenanceSchedule) error { return nil }

func (stubMaintenance) UpdateStatus(_ context.Context, _ *equipment.MaintenanceSchedule) error {
	return nil
}

func (stubMaintenance) ListByRestaurant(_ context.Context, _ string, _ int) ([]equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (stubMaintenance) ListByEquipment(_ context.Context, _ string, _ int) ([]equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (stubMaintenance) LastCompleted(_ context.Context, _ string) (*time.Time, error) {
	return nil, nil
}

func (stubMaintenance) MarkDue(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func newIngestHandler(t *testing.T) *IngestHandler {
	t.Helper()
	registry := &stubRegistry{device: &equipment.Equipment{
		ID: "eq-1", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Fryer", Active: true,
	}}
	monitor, err := equipmentapp.NewMonitorService(registry, &stubTelemetry{}, stubMaintenance{}, statestore.New(), nil)
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	handler, err := NewIngestHandler(monitor)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestIngestHandlerAcceptsSample(t *testing.T) {
	handler := newIngestHandler(t)

	body := `{"device_id":"eq-1","running":true,"efficiency_pct":95,"temperature_c":40,"runtime_hours":500}`
	req := httptest.NewRequest(http.MethodPost, "/ingest/equipment/telemetry", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			EquipmentStatus struct {
				HealthScore float64 `json:"health_score"`
			} `json:"equipment_status"`
			MaintenancePrediction struct {
				Confidence float64 `json:"confidence"`
			} `json:"maintenance_prediction"`
			CriticalAlerts []any `json:"critical_alerts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("response = %s", rec.Body.String())
	}
	if got := resp.Data.EquipmentStatus.HealthScore; got < 0.96 || got > 0.97 {
		t.Fatalf("health = %v, want 0.3 + 0.7*0.95", got)
	}
	if resp.Data.MaintenancePrediction.Confidence != 0.1 {
		t.Fatalf("confidence = %v, want the sparse-history floor", resp.Data.MaintenancePrediction.Confidence)
	}
	if resp.Data.CriticalAlerts == nil {
		t.Fatal("critical_alerts must serialize as an array")
	}
}

func TestIngestHandlerMissingDeviceID(t *testing.T) {
	handler := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/equipment/telemetry", strings.NewReader(`{"running":true}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestHandlerUnknownDevice(t *testing.T) {
	handler := newIngestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/ingest/equipment/telemetry", strings.NewReader(`{"device_id":"eq-missing"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
