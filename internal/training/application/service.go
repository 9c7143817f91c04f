package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-ops/internal/auth"
	training "restaurant-ops/internal/training/domain"
)

// ErrInvalidRequest marks rejected input.
var ErrInvalidRequest = errors.New("training: invalid request")

// ErrNotFound marks a missing progress row.
var ErrNotFound = errors.New("training: progress not found")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service manages training progress records.
type Service struct {
	progress training.ProgressRepository
	logger   *log.Logger
	clock    Clock
}

// Option customizes the service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewService constructs a Service.
func NewService(progress training.ProgressRepository, logger *log.Logger, opts ...Option) (*Service, error) {
	if progress == nil {
		return nil, errors.New("training service: nil progress repo")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{progress: progress, logger: logger, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordRequest carries one progress update.
type RecordRequest struct {
	RestaurantID string   `json:"restaurant_id"`
	UserID       string   `json:"user_id"`
	DocumentID   string   `json:"document_id"`
	Status       string   `json:"status"`
	Score        *float64 `json:"score,omitempty"`
}

// Record upserts the progress row for one user on one document. A
// transition into completed stamps completed_at; any other status
// clears it.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*training.Progress, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, auth.ErrUnauthorized
	}

	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.Status == "" {
		req.Status = training.StatusInProgress
	}

	existing, err := s.progress.FindByUserDocument(ctx, req.UserID, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("find progress: %w", err)
	}

	now := s.clock.Now().UTC()
	p := &training.Progress{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		RestaurantID: req.RestaurantID,
		UserID:       req.UserID,
		DocumentID:   req.DocumentID,
		Status:       req.Status,
		Score:        req.Score,
		CreatedAt:    now,
	}
	if existing != nil {
		if existing.TenantID != tenantID {
			return nil, auth.ErrTenantMismatch
		}
		p.ID = existing.ID
		p.RestaurantID = existing.RestaurantID
		p.CreatedAt = existing.CreatedAt
		if p.Score == nil {
			p.Score = existing.Score
		}
	}
	if p.Status == training.StatusCompleted {
		completed := now
		if existing != nil && existing.Status == training.StatusCompleted && existing.CompletedAt != nil {
			completed = *existing.CompletedAt
		}
		p.CompletedAt = &completed
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if err := s.progress.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	s.logger.Printf("training progress recorded user=%s document=%s status=%s", p.UserID, p.DocumentID, p.Status)
	return p, nil
}

// ListByRestaurant returns a restaurant's progress rows.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID string) ([]training.Progress, error) {
	return s.progress.ListByRestaurant(ctx, restaurantID)
}

// ListByUser returns one user's progress rows.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]training.Progress, error) {
	return s.progress.ListByUser(ctx, userID)
}

// Summary aggregates a restaurant's training state.
func (s *Service) Summary(ctx context.Context, restaurantID string) (training.Summary, error) {
	rows, err := s.progress.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return training.Summary{}, fmt.Errorf("list progress: %w", err)
	}
	return training.Summarize(restaurantID, rows), nil
}
