package application

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/eventing"
	"restaurant-ops/internal/statestore"
)

type fakeRegistry struct {
	devices map[string]*equipment.Equipment
}

func (f *fakeRegistry) Get(_ context.Context, id string) (*equipment.Equipment, error) {
	return f.devices[id], nil
}

func (f *fakeRegistry) ListByRestaurant(_ context.Context, restaurantID string) ([]equipment.Equipment, error) {
	var out []equipment.Equipment
	for _, d := range f.devices {
		if d.RestaurantID == restaurantID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeRegistry) Save(_ context.Context, d *equipment.Equipment) error {
	f.devices[d.ID] = d
	return nil
}

func (f *fakeRegistry) ListWithRecentTelemetry(_ context.Context, _ time.Time) ([]string, error) {
	var ids []string
	for id := range f.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeTelemetry struct {
	samples []equipment.TelemetrySample
}

func (f *fakeTelemetry) Insert(_ context.Context, s *equipment.TelemetrySample) error {
	f.samples = append(f.samples, *s)
	return nil
}

func (f *fakeTelemetry) ListRecent(_ context.Context, equipmentID string, limit int) ([]equipment.TelemetrySample, error) {
	var out []equipment.TelemetrySample
	for i := len(f.samples) - 1; i >= 0 && len(out) < limit; i-- {
		if f.samples[i].EquipmentID == equipmentID {
			out = append(out, f.samples[i])
		}
	}
	return out, nil
}

type fakeMaintenance struct {
	schedules     []*equipment.MaintenanceSchedule
	lastCompleted map[string]time.Time
}

func (f *fakeMaintenance) Get(_ context.Context, id string) (*equipment.MaintenanceSchedule, error) {
	for _, m := range f.schedules {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMaintenance) OpenForEquipment(_ context.Context, equipmentID string) (*equipment.MaintenanceSchedule, error) {
	for _, m := range f.schedules {
		if m.EquipmentID == equipmentID && m.Open() {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMaintenance) Insert(_ context.Context, m *equipment.MaintenanceSchedule) error {
	f.schedules = append(f.schedules, m)
	return nil
}

func (f *fakeMaintenance) UpdateStatus(_ context.Context, _ *equipment.MaintenanceSchedule) error {
	return nil
}

func (f *fakeMaintenance) ListByRestaurant(_ context.Context, _ string, _ int) ([]equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (f *fakeMaintenance) ListByEquipment(_ context.Context, equipmentID string, _ int) ([]equipment.MaintenanceSchedule, error) {
	var out []equipment.MaintenanceSchedule
	for _, m := range f.schedules {
		if m.EquipmentID == equipmentID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMaintenance) LastCompleted(_ context.Context, equipmentID string) (*time.Time, error) {
	if at, ok := f.lastCompleted[equipmentID]; ok {
		return &at, nil
	}
	return nil, nil
}

func (f *fakeMaintenance) MarkDue(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type recordingNotifier struct {
	alerts []equipment.Alert
}

func (n *recordingNotifier) Notify(_ context.Context, alert equipment.Alert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func pct(v float64) *float64 { return &v }

func monitorFixture(t *testing.T, now time.Time) (*MonitorService, *fakeTelemetry, *fakeMaintenance, *statestore.Store, *recordingNotifier, *eventing.Bus) {
	t.Helper()
	registry := &fakeRegistry{devices: map[string]*equipment.Equipment{
		"eq-1": {ID: "eq-1", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Fryer 1", Type: "fryer", Active: true},
	}}
	telemetry := &fakeTelemetry{}
	maintenance := &fakeMaintenance{lastCompleted: map[string]time.Time{}}
	states := statestore.New()
	notifier := &recordingNotifier{}
	bus := eventing.NewBus()
	service, err := NewMonitorService(registry, telemetry, maintenance, states, nil,
		WithClock(fixedClock{at: now}), WithNotifier(notifier), WithBus(bus))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, telemetry, maintenance, states, notifier, bus
}

func TestIngestUnknownDevice(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service, _, _, _, _, _ := monitorFixture(t, now)

	_, err := service.Ingest(context.Background(), equipment.TelemetrySample{EquipmentID: "eq-missing"})
	if !errors.Is(err, ErrUnknownEquipment) {
		t.Fatalf("expected ErrUnknownEquipment, got %v", err)
	}
}

func TestIngestScoresAndTracksStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service, telemetry, _, states, _, _ := monitorFixture(t, now)

	result, err := service.Ingest(context.Background(), equipment.TelemetrySample{
		EquipmentID:   "eq-1",
		Running:       true,
		EfficiencyPct: pct(100),
		TemperatureC:  50,
		RuntimeHours:  1000,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if result.Status.HealthScore != 1.0 {
		t.Fatalf("health = %v, want 1.0", result.Status.HealthScore)
	}
	if len(telemetry.samples) != 1 || telemetry.samples[0].HealthScore != 1.0 {
		t.Fatalf("stored samples = %+v", telemetry.samples)
	}
	if len(result.CriticalAlerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", result.CriticalAlerts)
	}

	v, ok := states.Get(StatusKey("eq-1"))
	if !ok {
		t.Fatal("status not tracked in state store")
	}
	status, ok := v.(Status)
	if !ok || status.HealthScore != 1.0 || status.RestaurantID != "rest-1" {
		t.Fatalf("tracked status = %#v", v)
	}
}

func TestIngestEmitsCriticalAlerts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service, _, _, _, notifier, bus := monitorFixture(t, now)

	events, cancel := bus.Subscribe(eventing.TopicCriticalAlert, 4)
	defer cancel()

	// Efficiency 10 with 6 errors: 0.3+0.07-0.5 < 0.3 and errors > 5.
	result, err := service.Ingest(context.Background(), equipment.TelemetrySample{
		EquipmentID:   "eq-1",
		EfficiencyPct: pct(10),
		ErrorCount:    6,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(result.CriticalAlerts) != 2 {
		t.Fatalf("alerts = %+v", result.CriticalAlerts)
	}
	kinds := map[string]bool{}
	for _, a := range result.CriticalAlerts {
		kinds[a.Kind] = true
	}
	if !kinds[equipment.AlertHealthCritical] || !kinds[equipment.AlertHighErrorRate] {
		t.Fatalf("alert kinds = %v", kinds)
	}
	if len(notifier.alerts) != 2 {
		t.Fatalf("notifier received %d alerts", len(notifier.alerts))
	}
	if len(events) != 2 {
		t.Fatalf("bus received %d events", len(events))
	}
}

func ingestRiskySample(t *testing.T, service *MonitorService, i int) *IngestResult {
	t.Helper()
	result, err := service.Ingest(context.Background(), equipment.TelemetrySample{
		EquipmentID:   "eq-1",
		Timestamp:     time.Date(2026, 3, 10, 0, i, 0, 0, time.UTC),
		EfficiencyPct: pct(60),
		RuntimeHours:  9000,
		ErrorCount:    1,
	})
	if err != nil {
		t.Fatalf("ingest %d: %v", i, err)
	}
	return result
}

func TestIngestAutoSchedulesOnceForOpenSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service, _, maintenance, _, _, _ := monitorFixture(t, now)

	// Low efficiency (+0.15), high runtime (+0.2), no maintenance
	// history (+0.1): risk 0.45 once enough samples exist.
	var scheduled *equipment.MaintenanceSchedule
	for i := 0; i < 6; i++ {
		result := ingestRiskySample(t, service, i)
		if result.ScheduledMaintenance != nil {
			scheduled = result.ScheduledMaintenance
		}
	}
	if scheduled == nil {
		t.Fatal("expected an auto-scheduled maintenance")
	}
	if scheduled.Origin != equipment.OriginAuto || scheduled.Type != equipment.TypePredictive {
		t.Fatalf("schedule = %+v", scheduled)
	}
	if scheduled.Priority != equipment.PriorityMedium {
		t.Fatalf("priority = %s, want medium at risk %.2f", scheduled.Priority, scheduled.RiskScore)
	}

	// Re-running the same flow with an open schedule never duplicates it.
	before := len(maintenance.schedules)
	ingestRiskySample(t, service, 7)
	ingestRiskySample(t, service, 8)
	if len(maintenance.schedules) != before {
		t.Fatalf("duplicate schedules created: %d -> %d", before, len(maintenance.schedules))
	}

	// Completing the open schedule clears the way for a new one, and the
	// fresh completion removes the overdue factor.
	maintenance.schedules[0].Status = equipment.StatusCompleted
	maintenance.lastCompleted["eq-1"] = now
	result := ingestRiskySample(t, service, 9)
	if result.Prediction.ShouldSchedule {
		t.Fatalf("risk %.2f should drop below threshold after maintenance", result.Prediction.RiskScore)
	}
}

func TestManualScheduleAndTransition(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	registry := &fakeRegistry{devices: map[string]*equipment.Equipment{
		"eq-1": {ID: "eq-1", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Oven", Active: true},
	}}
	maintenance := &fakeMaintenance{lastCompleted: map[string]time.Time{}}
	service, err := NewMaintenanceService(registry, maintenance, nil, WithMaintenanceClock(fixedClock{at: now}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	schedule, err := service.Create(context.Background(), CreateRequest{
		EquipmentID:  "eq-1",
		ScheduledFor: now.AddDate(0, 0, 7),
		Description:  "quarterly cleaning",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if schedule.Origin != equipment.OriginManual || schedule.Type != equipment.TypeRoutine {
		t.Fatalf("schedule = %+v", schedule)
	}

	updated, err := service.Transition(context.Background(), schedule.ID, equipment.StatusCompleted)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != equipment.StatusCompleted || updated.CompletedAt.IsZero() {
		t.Fatalf("updated = %+v", updated)
	}

	if _, err := service.Transition(context.Background(), schedule.ID, equipment.StatusDue); !errors.Is(err, equipment.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
