package reports

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Report statuses.
const (
	StatusGenerated = "generated"
	StatusFailed    = "failed"
)

// Report indexes one generated daily operations report file.
type Report struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	RestaurantID string          `json:"restaurant_id"`
	ReportDate   time.Time       `json:"report_date"`
	Status       string          `json:"status"`
	Location     string          `json:"location"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks report invariants.
func (r Report) Validate() error {
	if r.ID == "" {
		return errors.New("reports: empty id")
	}
	if r.TenantID == "" {
		return errors.New("reports: empty tenant id")
	}
	if r.RestaurantID == "" {
		return errors.New("reports: empty restaurant id")
	}
	if r.ReportDate.IsZero() {
		return errors.New("reports: empty report date")
	}
	return nil
}

// Repository indexes report files in the database.
type Repository interface {
	Get(ctx context.Context, id string) (*Report, error)
	// FindByRestaurantDate returns the report for one restaurant day,
	// or nil. One report per restaurant per day.
	FindByRestaurantDate(ctx context.Context, restaurantID string, date time.Time) (*Report, error)
	ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]Report, error)
	Create(ctx context.Context, report *Report) error
}
