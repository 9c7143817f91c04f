package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-ops/internal/auth"
	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/observability/metrics"
)

// ErrScheduleNotFound is returned for an unknown schedule id.
var ErrScheduleNotFound = errors.New("equipment: maintenance schedule not found")

// ErrInvalidSchedule is returned for malformed manual schedule input.
var ErrInvalidSchedule = errors.New("equipment: invalid schedule request")

// MaintenanceService manages manual schedules and status transitions.
type MaintenanceService struct {
	registry    equipment.EquipmentRepository
	maintenance equipment.MaintenanceRepository
	logger      *log.Logger
	clock       Clock
}

// NewMaintenanceService constructs a maintenance service.
func NewMaintenanceService(registry equipment.EquipmentRepository, maintenance equipment.MaintenanceRepository, logger *log.Logger, opts ...MaintenanceServiceOption) (*MaintenanceService, error) {
	if registry == nil {
		return nil, errors.New("maintenance service: nil equipment repo")
	}
	if maintenance == nil {
		return nil, errors.New("maintenance service: nil maintenance repo")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &MaintenanceService{
		registry:    registry,
		maintenance: maintenance,
		logger:      logger,
		clock:       systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// MaintenanceServiceOption customizes the service.
type MaintenanceServiceOption func(*MaintenanceService)

// WithMaintenanceClock assigns a clock.
func WithMaintenanceClock(clock Clock) MaintenanceServiceOption {
	return func(s *MaintenanceService) {
		s.clock = clock
	}
}

// CreateRequest is manual schedule input.
type CreateRequest struct {
	EquipmentID  string
	Type         string
	Priority     string
	ScheduledFor time.Time
	Description  string
}

// Create records a manual maintenance schedule.
func (s *MaintenanceService) Create(ctx context.Context, req CreateRequest) (*equipment.MaintenanceSchedule, error) {
	req.EquipmentID = strings.TrimSpace(req.EquipmentID)
	if req.EquipmentID == "" || req.ScheduledFor.IsZero() {
		return nil, ErrInvalidSchedule
	}

	device, err := s.registry.Get(ctx, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrUnknownEquipment
	}
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" && device.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}

	typ := equipment.MaintenanceType(req.Type)
	switch typ {
	case equipment.TypeReactive, equipment.TypePredictive, equipment.TypeRoutine:
	case "":
		typ = equipment.TypeRoutine
	default:
		return nil, ErrInvalidSchedule
	}
	priority := equipment.MaintenancePriority(req.Priority)
	switch priority {
	case equipment.PriorityMedium, equipment.PriorityHigh:
	case "":
		priority = equipment.PriorityMedium
	default:
		return nil, ErrInvalidSchedule
	}

	now := s.clock.Now().UTC()
	schedule := &equipment.MaintenanceSchedule{
		ID:           uuid.NewString(),
		TenantID:     device.TenantID,
		RestaurantID: device.RestaurantID,
		EquipmentID:  device.ID,
		Type:         typ,
		Status:       equipment.StatusScheduled,
		Priority:     priority,
		Origin:       equipment.OriginManual,
		ScheduledFor: req.ScheduledFor.UTC(),
		Description:  strings.TrimSpace(req.Description),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.maintenance.Insert(ctx, schedule); err != nil {
		return nil, err
	}
	metrics.IncMaintenanceScheduled(equipment.OriginManual)
	return schedule, nil
}

// Transition moves a schedule to a new status.
func (s *MaintenanceService) Transition(ctx context.Context, id string, to equipment.MaintenanceStatus) (*equipment.MaintenanceSchedule, error) {
	schedule, err := s.maintenance.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrScheduleNotFound
	}
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" && schedule.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}
	if err := schedule.Transition(to, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.maintenance.UpdateStatus(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}
