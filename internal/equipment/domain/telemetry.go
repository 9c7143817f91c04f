package equipment

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// TelemetrySample is one device reading. Rows are append only.
type TelemetrySample struct {
	ID            string
	EquipmentID   string
	Timestamp     time.Time
	Running       bool
	PowerKW       float64
	CycleCount    int
	RuntimeHours  float64
	EfficiencyPct *float64
	TemperatureC  float64
	Vibration     float64
	ErrorCount    int
	HealthScore   float64
	ErrorCodes    []string
	Status        json.RawMessage
}

// Validate checks sample invariants.
func (s TelemetrySample) Validate() error {
	if s.EquipmentID == "" {
		return errors.New("telemetry: empty equipment id")
	}
	if s.Timestamp.IsZero() {
		return errors.New("telemetry: zero timestamp")
	}
	if s.EfficiencyPct != nil && (*s.EfficiencyPct < 0 || *s.EfficiencyPct > 100) {
		return errors.New("telemetry: efficiency out of range")
	}
	if s.ErrorCount < 0 {
		return errors.New("telemetry: negative error count")
	}
	if s.RuntimeHours < 0 {
		return errors.New("telemetry: negative runtime hours")
	}
	return nil
}

// TelemetryRepository manages sample persistence.
type TelemetryRepository interface {
	Insert(ctx context.Context, sample *TelemetrySample) error
	// ListRecent returns up to limit samples for a device, newest first.
	ListRecent(ctx context.Context, equipmentID string, limit int) ([]TelemetrySample, error)
}
