package application

import (
	"context"
	"log"
	"time"

	equipment "restaurant-ops/internal/equipment/domain"
)

// Sweeper periodically advances schedule statuses and re-runs the
// maintenance prediction for recently active devices.
type Sweeper struct {
	monitor     *MonitorService
	maintenance equipment.MaintenanceRepository
	registry    equipment.EquipmentRepository
	logger      *log.Logger
	interval    time.Duration
	lookback    time.Duration
}

// NewSweeper constructs a sweeper.
func NewSweeper(monitor *MonitorService, maintenance equipment.MaintenanceRepository, registry equipment.EquipmentRepository, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		monitor:     monitor,
		maintenance: maintenance,
		registry:    registry,
		logger:      logger,
		interval:    time.Minute,
		lookback:    time.Hour,
	}
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()
	if changed, err := s.maintenance.MarkDue(ctx, now); err != nil {
		s.logger.Printf("sweep: mark due failed: %v", err)
	} else if changed > 0 {
		s.logger.Printf("sweep: %d schedules advanced", changed)
	}

	ids, err := s.registry.ListWithRecentTelemetry(ctx, now.Add(-s.lookback))
	if err != nil {
		s.logger.Printf("sweep: list active devices failed: %v", err)
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.monitor.PredictAndSchedule(ctx, id); err != nil {
			s.logger.Printf("sweep: predict failed: equipment=%s err=%v", id, err)
		}
	}
}
