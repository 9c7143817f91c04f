package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers daily report runs at a fixed "HH:MM" UTC time.
type Scheduler struct {
	runner      *Runner
	tenantID    string
	restaurants []string
	dailyAt     string
	logger      *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner *Runner, tenantID string, restaurants []string, dailyAt string, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		runner:      runner,
		tenantID:    tenantID,
		restaurants: restaurants,
		dailyAt:     dailyAt,
		logger:      logger,
	}
}

// Start begins the scheduler loop. It ticks every minute and fires when
// the clock matches the configured time.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	for _, restaurantID := range s.restaurants {
		if restaurantID == "" {
			continue
		}
		if _, err := s.runner.Run(ctx, s.tenantID, restaurantID, now); err != nil {
			s.logger.Printf("report schedule error: restaurant=%s err=%v", restaurantID, err)
		}
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
