package equipment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSamples builds n samples in newest-first order; health and errors
// are supplied per chronological index 0..n-1.
func makeSamples(n int, health func(i int) float64, errorCount func(i int) int, latest TelemetrySample) []TelemetrySample {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]TelemetrySample, n)
	for chrono := 0; chrono < n; chrono++ {
		s := latest
		s.EquipmentID = "eq-1"
		s.Timestamp = base.Add(time.Duration(chrono) * time.Hour)
		s.HealthScore = health(chrono)
		s.ErrorCount = errorCount(chrono)
		out[n-1-chrono] = s
	}
	return out
}

func flat(v float64) func(int) float64 { return func(int) float64 { return v } }

func noErrors(int) int { return 0 }

func recentMaintenance(now time.Time) *time.Time {
	at := now.AddDate(0, 0, -30)
	return &at
}

func TestPredictInsufficientData(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	samples := makeSamples(4, flat(0.1), func(int) int { return 9 }, TelemetrySample{RuntimeHours: 9000})

	p := PredictMaintenance(samples, nil, now)

	assert.False(t, p.ShouldSchedule)
	assert.Equal(t, 0.1, p.Confidence)
	assert.Equal(t, []string{FlagInsufficientData}, p.Flags)
	assert.Zero(t, p.RiskScore)
}

func TestPredictDeclineAloneDoesNotSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	declining := func(i int) float64 { return 0.95 - 0.05*float64(i) }
	samples := makeSamples(10, declining, noErrors,
		TelemetrySample{EfficiencyPct: pct(90), RuntimeHours: 2000})

	p := PredictMaintenance(samples, recentMaintenance(now), now)

	require.Contains(t, p.Flags, FlagDecliningHealth)
	assert.InDelta(t, 0.3, p.RiskScore, 1e-9)
	assert.False(t, p.ShouldSchedule, "0.3 risk must stay under the 0.4 threshold")
	assert.Contains(t, p.Actions, "comprehensive inspection")
}

func TestPredictDeclinePlusLowEfficiencySchedules(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	declining := func(i int) float64 { return 0.95 - 0.05*float64(i) }
	samples := makeSamples(10, declining, noErrors,
		TelemetrySample{EfficiencyPct: pct(60), RuntimeHours: 2000})

	p := PredictMaintenance(samples, recentMaintenance(now), now)

	require.Contains(t, p.Flags, FlagDecliningHealth)
	require.Contains(t, p.Flags, FlagLowEfficiency)
	assert.InDelta(t, 0.45, p.RiskScore, 1e-9)
	assert.True(t, p.ShouldSchedule)
	assert.Equal(t, string(PriorityMedium), p.Priority)
	assert.Equal(t, 17, p.DaysUntil) // round(30 * 0.55)
}

func TestPredictNoHistoryAlwaysFlagsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	samples := makeSamples(10, flat(0.9), noErrors,
		TelemetrySample{EfficiencyPct: pct(95), RuntimeHours: 2000})

	never := PredictMaintenance(samples, nil, now)
	recently := PredictMaintenance(samples, recentMaintenance(now), now)

	assert.Contains(t, never.Flags, FlagOverdue)
	assert.InDelta(t, 0.1, never.RiskScore, 1e-9)
	assert.False(t, never.ShouldSchedule)
	assert.Contains(t, never.Actions, "schedule immediate preventive maintenance")

	assert.NotContains(t, recently.Flags, FlagOverdue)
	assert.Zero(t, recently.RiskScore)
}

func TestPredictHighRiskIsHighPrioritySoon(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	declining := func(i int) float64 { return 0.95 - 0.05*float64(i) }
	rising := func(i int) int { return i }
	samples := makeSamples(10, declining, rising,
		TelemetrySample{EfficiencyPct: pct(60), RuntimeHours: 9000, TemperatureC: 85, Vibration: 12})

	p := PredictMaintenance(samples, nil, now)

	// 0.3 + 0.2 + 0.2 + 0.15 + 0.1
	assert.InDelta(t, 0.95, p.RiskScore, 1e-9)
	assert.True(t, p.ShouldSchedule)
	assert.Equal(t, string(PriorityHigh), p.Priority)
	assert.Equal(t, 2, p.DaysUntil) // round(30 * 0.05), floored at 1
	assert.Contains(t, p.Actions, "check cooling system")
	assert.Contains(t, p.Actions, "inspect mounting and moving parts")
}

func TestPredictConfidenceScalesWithHistory(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	latest := TelemetrySample{EfficiencyPct: pct(95), RuntimeHours: 100}

	six := PredictMaintenance(makeSamples(6, flat(0.9), noErrors, latest), recentMaintenance(now), now)
	thirty := PredictMaintenance(makeSamples(30, flat(0.9), noErrors, latest), recentMaintenance(now), now)

	assert.InDelta(t, 0.2, six.Confidence, 1e-9)
	assert.Equal(t, 1.0, thirty.Confidence)
}

func TestOLSSlope(t *testing.T) {
	assert.InDelta(t, 2.0, olsSlope([]float64{1, 3, 5, 7}), 1e-9)
	assert.InDelta(t, -0.05, olsSlope([]float64{1, 0.95, 0.9, 0.85}), 1e-9)
	assert.Zero(t, olsSlope([]float64{4}))
}

func TestMaintenanceTransitions(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	schedule := MaintenanceSchedule{
		ID:           "ms-1",
		EquipmentID:  "eq-1",
		Status:       StatusScheduled,
		ScheduledFor: now,
	}

	require.NoError(t, schedule.Transition(StatusDue, now))
	require.NoError(t, schedule.Transition(StatusOverdue, now))
	require.NoError(t, schedule.Transition(StatusCompleted, now))
	assert.Equal(t, now, schedule.CompletedAt)
	assert.False(t, schedule.Open())

	err := schedule.Transition(StatusScheduled, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
