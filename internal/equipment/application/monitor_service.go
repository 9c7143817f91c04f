package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/equipment/notify"
	"restaurant-ops/internal/eventing"
	"restaurant-ops/internal/observability/metrics"
	"restaurant-ops/internal/statestore"
)

var (
	// ErrUnknownEquipment is returned for telemetry from an unregistered
	// device.
	ErrUnknownEquipment = errors.New("equipment: unknown device")
	// ErrInvalidSample is returned for malformed telemetry.
	ErrInvalidSample = errors.New("equipment: invalid sample")
)

const predictionWindow = 30

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Status is the last-known condition of one device, kept in the state
// store and served by the status endpoint.
type Status struct {
	EquipmentID   string    `json:"equipment_id"`
	RestaurantID  string    `json:"restaurant_id"`
	Running       bool      `json:"running"`
	HealthScore   float64   `json:"health_score"`
	RiskScore     float64   `json:"risk_score"`
	TemperatureC  float64   `json:"temperature_c"`
	Vibration     float64   `json:"vibration"`
	ErrorCount    int       `json:"error_count"`
	RuntimeHours  float64   `json:"runtime_hours"`
	LastReportAt  time.Time `json:"last_report_at"`
	EfficiencyPct *float64  `json:"efficiency_pct,omitempty"`
}

// StatusKey names the statestore entry for one device.
func StatusKey(equipmentID string) string {
	return "equipment:" + equipmentID
}

// IngestResult is the outcome of processing one sample.
type IngestResult struct {
	Status               Status
	Prediction           equipment.Prediction
	ScheduledMaintenance *equipment.MaintenanceSchedule
	CriticalAlerts       []equipment.Alert
}

// MonitorService processes telemetry into health scores, predictions,
// auto-scheduled maintenance and critical alerts.
type MonitorService struct {
	registry    equipment.EquipmentRepository
	telemetry   equipment.TelemetryRepository
	maintenance equipment.MaintenanceRepository
	states      *statestore.Store
	bus         *eventing.Bus
	notifier    notify.Notifier
	logger      *log.Logger
	clock       Clock
}

// MonitorOption customizes the monitor service.
type MonitorOption func(*MonitorService)

// WithClock assigns a clock.
func WithClock(clock Clock) MonitorOption {
	return func(s *MonitorService) {
		s.clock = clock
	}
}

// WithNotifier assigns an alert notifier.
func WithNotifier(notifier notify.Notifier) MonitorOption {
	return func(s *MonitorService) {
		s.notifier = notifier
	}
}

// WithBus assigns an event bus.
func WithBus(bus *eventing.Bus) MonitorOption {
	return func(s *MonitorService) {
		s.bus = bus
	}
}

// NewMonitorService constructs a monitor service.
func NewMonitorService(registry equipment.EquipmentRepository, telemetry equipment.TelemetryRepository, maintenance equipment.MaintenanceRepository, states *statestore.Store, logger *log.Logger, opts ...MonitorOption) (*MonitorService, error) {
	if registry == nil {
		return nil, errors.New("monitor: nil equipment repo")
	}
	if telemetry == nil {
		return nil, errors.New("monitor: nil telemetry repo")
	}
	if maintenance == nil {
		return nil, errors.New("monitor: nil maintenance repo")
	}
	if states == nil {
		states = statestore.New()
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &MonitorService{
		registry:    registry,
		telemetry:   telemetry,
		maintenance: maintenance,
		states:      states,
		logger:      logger,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Ingest scores and persists one sample, re-runs the maintenance
// prediction and emits critical alerts.
func (s *MonitorService) Ingest(ctx context.Context, sample equipment.TelemetrySample) (*IngestResult, error) {
	now := s.clock.Now().UTC()
	if sample.EquipmentID == "" {
		return nil, ErrInvalidSample
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	if err := sample.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}

	device, err := s.registry.Get(ctx, sample.EquipmentID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrUnknownEquipment
	}

	if sample.ID == "" {
		sample.ID = uuid.NewString()
	}
	sample.HealthScore = equipment.HealthScore(sample)
	if err := s.telemetry.Insert(ctx, &sample); err != nil {
		return nil, err
	}
	metrics.ObserveHealthScore(sample.HealthScore)

	prediction, scheduled, err := s.predict(ctx, device, now)
	if err != nil {
		return nil, err
	}

	alerts := equipment.CriticalAlerts(sample, now)
	for _, alert := range alerts {
		metrics.IncCriticalAlert(alert.Kind)
		if s.bus != nil {
			s.bus.Publish(eventing.TopicCriticalAlert, alert)
		}
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, alert); err != nil {
				s.logger.Printf("ingest: alert delivery failed: equipment=%s err=%v", alert.EquipmentID, err)
			}
		}
	}

	status := Status{
		EquipmentID:   device.ID,
		RestaurantID:  device.RestaurantID,
		Running:       sample.Running,
		HealthScore:   sample.HealthScore,
		RiskScore:     prediction.RiskScore,
		TemperatureC:  sample.TemperatureC,
		Vibration:     sample.Vibration,
		ErrorCount:    sample.ErrorCount,
		RuntimeHours:  sample.RuntimeHours,
		LastReportAt:  sample.Timestamp,
		EfficiencyPct: sample.EfficiencyPct,
	}
	s.states.SetPersistent(StatusKey(device.ID), status)

	return &IngestResult{
		Status:               status,
		Prediction:           prediction,
		ScheduledMaintenance: scheduled,
		CriticalAlerts:       alerts,
	}, nil
}

// PredictAndSchedule re-runs the prediction for one device outside the
// ingest path. The background sweep uses this.
func (s *MonitorService) PredictAndSchedule(ctx context.Context, equipmentID string) (*equipment.Prediction, error) {
	device, err := s.registry.Get(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrUnknownEquipment
	}
	prediction, _, err := s.predict(ctx, device, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &prediction, nil
}

// predict runs the heuristic over recent history and auto-schedules
// maintenance when warranted, never duplicating an open schedule.
func (s *MonitorService) predict(ctx context.Context, device *equipment.Equipment, now time.Time) (equipment.Prediction, *equipment.MaintenanceSchedule, error) {
	history, err := s.telemetry.ListRecent(ctx, device.ID, predictionWindow)
	if err != nil {
		return equipment.Prediction{}, nil, err
	}
	lastCompleted, err := s.maintenance.LastCompleted(ctx, device.ID)
	if err != nil {
		return equipment.Prediction{}, nil, err
	}

	prediction := equipment.PredictMaintenance(history, lastCompleted, now)
	if !prediction.ShouldSchedule {
		return prediction, nil, nil
	}

	open, err := s.maintenance.OpenForEquipment(ctx, device.ID)
	if err != nil {
		return prediction, nil, err
	}
	if open != nil {
		return prediction, nil, nil
	}

	schedule := &equipment.MaintenanceSchedule{
		ID:           uuid.NewString(),
		TenantID:     device.TenantID,
		RestaurantID: device.RestaurantID,
		EquipmentID:  device.ID,
		Type:         equipment.TypePredictive,
		Status:       equipment.StatusScheduled,
		Priority:     equipment.MaintenancePriority(prediction.Priority),
		Origin:       equipment.OriginAuto,
		ScheduledFor: now.AddDate(0, 0, prediction.DaysUntil),
		RiskScore:    prediction.RiskScore,
		Description:  "predicted: " + strings.Join(prediction.Flags, ", "),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.maintenance.Insert(ctx, schedule); err != nil {
		return prediction, nil, err
	}
	metrics.IncMaintenanceScheduled(equipment.OriginAuto)
	if s.bus != nil {
		s.bus.Publish(eventing.TopicMaintenanceScheduled, *schedule)
	}
	s.logger.Printf("maintenance auto-scheduled: equipment=%s risk=%.2f days=%d priority=%s",
		device.ID, prediction.RiskScore, prediction.DaysUntil, prediction.Priority)
	return prediction, schedule, nil
}
