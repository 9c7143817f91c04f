package application

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"testing"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/eventing"
	reports "restaurant-ops/internal/reports/domain"
	reportsnotify "restaurant-ops/internal/reports/notify"
	training "restaurant-ops/internal/training/domain"
)

type fakeIndex struct {
	rows map[string]*reports.Report
}

func (f *fakeIndex) Get(_ context.Context, id string) (*reports.Report, error) {
	if r, ok := f.rows[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeIndex) FindByRestaurantDate(_ context.Context, restaurantID string, date time.Time) (*reports.Report, error) {
	for _, r := range f.rows {
		if r.RestaurantID == restaurantID && r.ReportDate.Equal(date) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeIndex) ListByRestaurant(_ context.Context, restaurantID string, _ int) ([]reports.Report, error) {
	var out []reports.Report
	for _, r := range f.rows {
		if r.RestaurantID == restaurantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeIndex) Create(_ context.Context, r *reports.Report) error {
	clone := *r
	f.rows[r.ID] = &clone
	return nil
}

type fakeRegistry struct {
	devices []equipment.Equipment
}

func (f *fakeRegistry) Get(_ context.Context, id string) (*equipment.Equipment, error) {
	for _, d := range f.devices {
		if d.ID == id {
			clone := d
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistry) ListByRestaurant(_ context.Context, restaurantID string) ([]equipment.Equipment, error) {
	var out []equipment.Equipment
	for _, d := range f.devices {
		if d.RestaurantID == restaurantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRegistry) Save(_ context.Context, _ *equipment.Equipment) error { return nil }

func (f *fakeRegistry) ListWithRecentTelemetry(_ context.Context, _ time.Time) ([]string, error) {
	return nil, nil
}

type fakeTelemetry struct {
	latest map[string]equipment.TelemetrySample
}

func (f *fakeTelemetry) Insert(_ context.Context, _ *equipment.TelemetrySample) error { return nil }

func (f *fakeTelemetry) ListRecent(_ context.Context, equipmentID string, _ int) ([]equipment.TelemetrySample, error) {
	if s, ok := f.latest[equipmentID]; ok {
		return []equipment.TelemetrySample{s}, nil
	}
	return nil, nil
}

type fakeMaintenance struct {
	rows []equipment.MaintenanceSchedule
}

func (f *fakeMaintenance) Get(_ context.Context, _ string) (*equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (f *fakeMaintenance) OpenForEquipment(_ context.Context, _ string) (*equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (f *fakeMaintenance) Insert(_ context.Context, _ *equipment.MaintenanceSchedule) error {
	return nil
}

func (f *fakeMaintenance) UpdateStatus(_ context.Context, _ *equipment.MaintenanceSchedule) error {
	return nil
}

func (f *fakeMaintenance) ListByRestaurant(_ context.Context, restaurantID string, _ int) ([]equipment.MaintenanceSchedule, error) {
	var out []equipment.MaintenanceSchedule
	for _, s := range f.rows {
		if s.RestaurantID == restaurantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeMaintenance) ListByEquipment(_ context.Context, _ string, _ int) ([]equipment.MaintenanceSchedule, error) {
	return nil, nil
}

func (f *fakeMaintenance) LastCompleted(_ context.Context, _ string) (*time.Time, error) {
	return nil, nil
}

func (f *fakeMaintenance) MarkDue(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeProgress struct {
	rows []training.Progress
}

func (f *fakeProgress) Get(_ context.Context, _ string) (*training.Progress, error) {
	return nil, nil
}

func (f *fakeProgress) FindByUserDocument(_ context.Context, _, _ string) (*training.Progress, error) {
	return nil, nil
}

func (f *fakeProgress) ListByRestaurant(_ context.Context, restaurantID string) ([]training.Progress, error) {
	var out []training.Progress
	for _, p := range f.rows {
		if p.RestaurantID == restaurantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProgress) ListByUser(_ context.Context, _ string) ([]training.Progress, error) {
	return nil, nil
}

func (f *fakeProgress) Save(_ context.Context, _ *training.Progress) error { return nil }

type recordingNotifier struct {
	messages []reportsnotify.CompletionMessage
}

func (n *recordingNotifier) Notify(_ context.Context, msg reportsnotify.CompletionMessage) error {
	n.messages = append(n.messages, msg)
	return nil
}

func pct(v float64) *float64 { return &v }

func runnerFixture(t *testing.T) (*Runner, *fakeIndex, *recordingNotifier, *eventing.Bus) {
	t.Helper()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	index := &fakeIndex{rows: map[string]*reports.Report{}}
	registry := &fakeRegistry{devices: []equipment.Equipment{
		{ID: "eq-1", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Fryer", Active: true},
		{ID: "eq-2", TenantID: "tenant-a", RestaurantID: "rest-1", Name: "Oven", Active: true},
	}}
	telemetry := &fakeTelemetry{latest: map[string]equipment.TelemetrySample{
		"eq-1": {ID: "s-1", EquipmentID: "eq-1", Timestamp: now, EfficiencyPct: pct(95), HealthScore: 0.96},
		"eq-2": {ID: "s-2", EquipmentID: "eq-2", Timestamp: now, EfficiencyPct: pct(20), HealthScore: 0.2},
	}}
	maintenance := &fakeMaintenance{rows: []equipment.MaintenanceSchedule{
		{ID: "m-1", TenantID: "tenant-a", RestaurantID: "rest-1", EquipmentID: "eq-2", Status: equipment.StatusScheduled, ScheduledFor: now},
		{ID: "m-2", TenantID: "tenant-a", RestaurantID: "rest-1", EquipmentID: "eq-1", Status: equipment.StatusCompleted, ScheduledFor: now},
	}}
	completed := now.Add(-time.Hour)
	progress := &fakeProgress{rows: []training.Progress{
		{ID: "p-1", TenantID: "tenant-a", RestaurantID: "rest-1", UserID: "u1", DocumentID: "d1", Status: training.StatusCompleted, CompletedAt: &completed},
		{ID: "p-2", TenantID: "tenant-a", RestaurantID: "rest-1", UserID: "u2", DocumentID: "d1", Status: training.StatusInProgress},
	}}

	notifier := &recordingNotifier{}
	bus := eventing.NewBus()
	cfg := Config{StorageRoot: t.TempDir(), PublicBaseURL: "http://localhost:8080"}
	runner, err := NewRunner(index, registry, telemetry, maintenance, progress, cfg, notifier, bus, log.New(bytes.NewBuffer(nil), "", 0))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner, index, notifier, bus
}

func TestRunGeneratesReport(t *testing.T) {
	runner, index, notifier, bus := runnerFixture(t)
	events, cancel := bus.Subscribe(eventing.TopicReportCompleted, 4)
	defer cancel()

	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	report, err := runner.Run(context.Background(), "tenant-a", "rest-1", date)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != reports.StatusGenerated {
		t.Fatalf("status = %s", report.Status)
	}

	data, err := os.ReadFile(report.Location)
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("report file is not an xlsx archive")
	}

	var summary Summary
	if err := json.Unmarshal(report.Summary, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.EquipmentCount != 2 || summary.CriticalEquipment != 1 || summary.OpenMaintenance != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.TrainingTotal != 2 || summary.TrainingCompleted != 1 || summary.CompletionRate != 0.5 {
		t.Fatalf("unexpected training numbers: %+v", summary)
	}

	if len(index.rows) != 1 {
		t.Fatalf("indexed rows = %d", len(index.rows))
	}
	if len(notifier.messages) != 1 || notifier.messages[0].ReportID != report.ID {
		t.Fatalf("webhook messages = %+v", notifier.messages)
	}
	select {
	case event := <-events:
		if event.Topic != eventing.TopicReportCompleted {
			t.Fatalf("topic = %s", event.Topic)
		}
	default:
		t.Fatalf("no completion event published")
	}
}

func TestRunIsIdempotentPerDay(t *testing.T) {
	runner, index, _, _ := runnerFixture(t)
	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	first, err := runner.Run(context.Background(), "tenant-a", "rest-1", date)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runner.Run(context.Background(), "tenant-a", "rest-1", date.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same day must return the existing report")
	}
	if len(index.rows) != 1 {
		t.Fatalf("rows = %d", len(index.rows))
	}
}

func TestRunRequiresIdentifiers(t *testing.T) {
	runner, _, _, _ := runnerFixture(t)
	if _, err := runner.Run(context.Background(), "", "rest-1", time.Now()); err == nil {
		t.Fatalf("expected error without tenant id")
	}
	if _, err := runner.Run(context.Background(), "tenant-a", "", time.Now()); err == nil {
		t.Fatalf("expected error without restaurant id")
	}
}
