package equipment

import (
	"math"
	"time"
)

// Risk flags accumulated by PredictMaintenance.
const (
	FlagInsufficientData = "insufficient data"
	FlagDecliningHealth  = "declining health"
	FlagIncreasingErrors = "increasing errors"
	FlagHighRuntime      = "high runtime"
	FlagLowEfficiency    = "low efficiency"
	FlagOverdue          = "overdue maintenance"
)

const (
	minPredictionSamples = 5
	trendWindow          = 10

	healthSlopeThreshold = -0.02
	errorSlopeThreshold  = 0.1

	highRuntimeHours       = 8000.0
	lowEfficiencyThreshold = 70.0

	overdueDays = 90
	// Days-since-maintenance default when a device has no completed
	// maintenance on record. Always exceeds the 90-day threshold, so a
	// never-maintained device carries the overdue flag in every
	// prediction until its first completed maintenance.
	noHistoryDefaultDays = 365

	scheduleRiskThreshold = 0.4
	highPriorityThreshold = 0.7
)

// Prediction is a maintenance recommendation for one device.
type Prediction struct {
	RiskScore      float64  `json:"risk_score"`
	Confidence     float64  `json:"confidence"`
	ShouldSchedule bool     `json:"should_schedule"`
	DaysUntil      int      `json:"days_until,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Flags          []string `json:"flags"`
	Actions        []string `json:"recommended_actions"`
}

var flagActions = map[string][]string{
	FlagDecliningHealth:  {"comprehensive inspection"},
	FlagIncreasingErrors: {"diagnose fault patterns"},
	FlagHighRuntime:      {"component replacement window"},
	FlagLowEfficiency:    {"clean and calibrate"},
	FlagOverdue:          {"schedule immediate preventive maintenance"},
}

// PredictMaintenance accumulates additive risk over a device's recent
// telemetry. samples must be ordered newest first with at most 30 rows;
// lastCompleted is the device's most recent completed maintenance, nil
// when it has never been maintained.
func PredictMaintenance(samples []TelemetrySample, lastCompleted *time.Time, now time.Time) Prediction {
	if len(samples) < minPredictionSamples {
		return Prediction{
			Confidence: 0.1,
			Flags:      []string{FlagInsufficientData},
			Actions:    []string{"collect more telemetry"},
		}
	}

	var risk float64
	var flags []string

	healthTrend := trendValues(samples, func(s TelemetrySample) float64 { return s.HealthScore })
	if olsSlope(healthTrend) < healthSlopeThreshold {
		risk += 0.3
		flags = append(flags, FlagDecliningHealth)
	}

	errorTrend := trendValues(samples, func(s TelemetrySample) float64 { return float64(s.ErrorCount) })
	if olsSlope(errorTrend) > errorSlopeThreshold {
		risk += 0.2
		flags = append(flags, FlagIncreasingErrors)
	}

	latest := samples[0]
	if latest.RuntimeHours > highRuntimeHours {
		risk += 0.2
		flags = append(flags, FlagHighRuntime)
	}
	if latest.EfficiencyPct != nil && *latest.EfficiencyPct < lowEfficiencyThreshold {
		risk += 0.15
		flags = append(flags, FlagLowEfficiency)
	}

	daysSince := float64(noHistoryDefaultDays)
	if lastCompleted != nil {
		daysSince = now.Sub(*lastCompleted).Hours() / 24
	}
	if daysSince > overdueDays {
		risk += 0.1
		flags = append(flags, FlagOverdue)
	}

	prediction := Prediction{
		RiskScore:      risk,
		Confidence:     math.Min(float64(len(samples))/30, 1),
		ShouldSchedule: risk > scheduleRiskThreshold,
		Flags:          flags,
		Actions:        recommendedActions(flags, latest),
	}
	if prediction.ShouldSchedule {
		prediction.DaysUntil = daysUntilMaintenance(risk)
		prediction.Priority = string(PriorityMedium)
		if risk > highPriorityThreshold {
			prediction.Priority = string(PriorityHigh)
		}
	}
	return prediction
}

func daysUntilMaintenance(risk float64) int {
	days := int(math.Round(30 * (1 - risk)))
	if days < 1 {
		return 1
	}
	return days
}

// trendValues extracts up to trendWindow values in chronological order
// from a newest-first sample list.
func trendValues(samples []TelemetrySample, pick func(TelemetrySample) float64) []float64 {
	n := len(samples)
	if n > trendWindow {
		n = trendWindow
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = pick(samples[n-1-i])
	}
	return out
}

// olsSlope fits y = a + b*x over x = 0..n-1 and returns b.
func olsSlope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func recommendedActions(flags []string, latest TelemetrySample) []string {
	var actions []string
	for _, flag := range flags {
		actions = append(actions, flagActions[flag]...)
	}
	// Condition checks from the latest sample apply regardless of which
	// risk flags fired.
	if latest.TemperatureC > tempHighThreshold {
		actions = append(actions, "check cooling system")
	}
	if latest.Vibration > vibrationThreshold {
		actions = append(actions, "inspect mounting and moving parts")
	}
	if len(actions) == 0 {
		actions = []string{"continue routine monitoring"}
	}
	return actions
}
