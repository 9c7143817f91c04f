package equipment

import (
	"context"
	"errors"
	"time"
)

// MaintenanceStatus is the lifecycle state of a schedule row. Rows are
// never deleted, only transitioned.
type MaintenanceStatus string

const (
	StatusScheduled MaintenanceStatus = "scheduled"
	StatusDue       MaintenanceStatus = "due"
	StatusOverdue   MaintenanceStatus = "overdue"
	StatusCompleted MaintenanceStatus = "completed"
)

// MaintenanceType classifies why a schedule exists.
type MaintenanceType string

const (
	TypeReactive   MaintenanceType = "reactive"
	TypePredictive MaintenanceType = "predictive"
	TypeRoutine    MaintenanceType = "routine"
)

// MaintenancePriority orders scheduled work.
type MaintenancePriority string

const (
	PriorityMedium MaintenancePriority = "medium"
	PriorityHigh   MaintenancePriority = "high"
)

// Schedule origins.
const (
	OriginAuto   = "auto"
	OriginManual = "manual"
)

// MaintenanceSchedule is one maintenance event for one device.
type MaintenanceSchedule struct {
	ID           string
	TenantID     string
	RestaurantID string
	EquipmentID  string
	Type         MaintenanceType
	Status       MaintenanceStatus
	Priority     MaintenancePriority
	Origin       string
	ScheduledFor time.Time
	RiskScore    float64
	Description  string
	CompletedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Open reports whether the schedule still claims the device. An open
// schedule suppresses automatic creation of another one.
func (m MaintenanceSchedule) Open() bool {
	return m.Status == StatusScheduled || m.Status == StatusDue || m.Status == StatusOverdue
}

var statusTransitions = map[MaintenanceStatus][]MaintenanceStatus{
	StatusScheduled: {StatusDue, StatusOverdue, StatusCompleted},
	StatusDue:       {StatusOverdue, StatusCompleted},
	StatusOverdue:   {StatusCompleted},
	StatusCompleted: {},
}

// ErrInvalidTransition is returned for an illegal status change.
var ErrInvalidTransition = errors.New("maintenance: invalid status transition")

// Transition moves the schedule to a new status.
func (m *MaintenanceSchedule) Transition(to MaintenanceStatus, now time.Time) error {
	for _, allowed := range statusTransitions[m.Status] {
		if allowed == to {
			m.Status = to
			m.UpdatedAt = now.UTC()
			if to == StatusCompleted {
				m.CompletedAt = now.UTC()
			}
			return nil
		}
	}
	return ErrInvalidTransition
}

// Validate checks schedule invariants.
func (m MaintenanceSchedule) Validate() error {
	if m.ID == "" {
		return errors.New("maintenance: empty id")
	}
	if m.EquipmentID == "" {
		return errors.New("maintenance: empty equipment id")
	}
	if m.ScheduledFor.IsZero() {
		return errors.New("maintenance: zero scheduled date")
	}
	switch m.Status {
	case StatusScheduled, StatusDue, StatusOverdue, StatusCompleted:
	default:
		return errors.New("maintenance: invalid status")
	}
	return nil
}

// MaintenanceRepository manages schedule persistence.
type MaintenanceRepository interface {
	Get(ctx context.Context, id string) (*MaintenanceSchedule, error)
	// OpenForEquipment returns the open (scheduled, due or overdue)
	// schedule for a device, nil when none exists.
	OpenForEquipment(ctx context.Context, equipmentID string) (*MaintenanceSchedule, error)
	Insert(ctx context.Context, schedule *MaintenanceSchedule) error
	UpdateStatus(ctx context.Context, schedule *MaintenanceSchedule) error
	ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]MaintenanceSchedule, error)
	ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]MaintenanceSchedule, error)
	// LastCompleted returns the completion time of the device's most
	// recent completed maintenance, nil when it has never been maintained.
	LastCompleted(ctx context.Context, equipmentID string) (*time.Time, error)
	// MarkDue flips scheduled rows whose date has arrived to due, and due
	// rows a day past their date to overdue. Returns rows changed.
	MarkDue(ctx context.Context, now time.Time) (int64, error)
}
