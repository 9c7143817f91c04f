package equipment

import (
	"fmt"
	"time"
)

// Alert kinds emitted during ingest. Informational only, nothing blocks
// on them.
const (
	AlertHealthCritical = "health_critical"
	AlertHighErrorRate  = "high_error_rate"
)

const (
	criticalHealthThreshold = 0.3
	criticalErrorThreshold  = 5
)

// Alert is a critical-condition notification for one device.
type Alert struct {
	EquipmentID string    `json:"equipment_id"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// CriticalAlerts evaluates one scored sample against the critical
// thresholds.
func CriticalAlerts(sample TelemetrySample, now time.Time) []Alert {
	var alerts []Alert
	if sample.HealthScore < criticalHealthThreshold {
		alerts = append(alerts, Alert{
			EquipmentID: sample.EquipmentID,
			Kind:        AlertHealthCritical,
			Message:     fmt.Sprintf("health score %.2f is critically low", sample.HealthScore),
			CreatedAt:   now.UTC(),
		})
	}
	if sample.ErrorCount > criticalErrorThreshold {
		alerts = append(alerts, Alert{
			EquipmentID: sample.EquipmentID,
			Kind:        AlertHighErrorRate,
			Message:     fmt.Sprintf("error count %d indicates a high error rate", sample.ErrorCount),
			CreatedAt:   now.UTC(),
		})
	}
	return alerts
}
