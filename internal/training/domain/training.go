package training

import (
	"context"
	"errors"
	"time"
)

// Progress statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Progress tracks one user working through one procedure document.
type Progress struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	RestaurantID string     `json:"restaurant_id"`
	UserID       string     `json:"user_id"`
	DocumentID   string     `json:"document_id"`
	Status       string     `json:"status"`
	Score        *float64   `json:"score,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate checks progress invariants.
func (p Progress) Validate() error {
	if p.ID == "" {
		return errors.New("training: empty progress id")
	}
	if p.TenantID == "" {
		return errors.New("training: empty tenant id")
	}
	if p.RestaurantID == "" {
		return errors.New("training: empty restaurant id")
	}
	if p.UserID == "" {
		return errors.New("training: empty user id")
	}
	if p.DocumentID == "" {
		return errors.New("training: empty document id")
	}
	switch p.Status {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
	default:
		return errors.New("training: unknown status " + p.Status)
	}
	if p.Status == StatusCompleted && p.CompletedAt == nil {
		return errors.New("training: completed progress needs a completion time")
	}
	if p.Score != nil && (*p.Score < 0 || *p.Score > 100) {
		return errors.New("training: score out of range")
	}
	return nil
}

// Summary aggregates a restaurant's training state.
type Summary struct {
	RestaurantID   string   `json:"restaurant_id"`
	TotalRecords   int      `json:"total_records"`
	Completed      int      `json:"completed"`
	InProgress     int      `json:"in_progress"`
	NotStarted     int      `json:"not_started"`
	CompletionRate float64  `json:"completion_rate"`
	AverageScore   *float64 `json:"average_score,omitempty"`
}

// Summarize derives a Summary from progress rows.
func Summarize(restaurantID string, rows []Progress) Summary {
	s := Summary{RestaurantID: restaurantID, TotalRecords: len(rows)}
	var scoreSum float64
	var scored int
	for _, p := range rows {
		switch p.Status {
		case StatusCompleted:
			s.Completed++
		case StatusInProgress:
			s.InProgress++
		default:
			s.NotStarted++
		}
		if p.Score != nil {
			scoreSum += *p.Score
			scored++
		}
	}
	if s.TotalRecords > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.TotalRecords)
	}
	if scored > 0 {
		avg := scoreSum / float64(scored)
		s.AverageScore = &avg
	}
	return s
}

// ProgressRepository manages progress persistence.
type ProgressRepository interface {
	Get(ctx context.Context, id string) (*Progress, error)
	// FindByUserDocument returns the single row for one user on one
	// document, or nil.
	FindByUserDocument(ctx context.Context, userID, documentID string) (*Progress, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Progress, error)
	ListByUser(ctx context.Context, userID string) ([]Progress, error)
	Save(ctx context.Context, progress *Progress) error
}
