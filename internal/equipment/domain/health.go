package equipment

// Health score weights and thresholds. Changing any of these changes
// scheduling behavior downstream; they are tuned as a set.
const (
	healthErrorPenalty    = 0.1
	healthErrorPenaltyCap = 0.5

	vibrationThreshold = 10.0
	vibrationPenalty   = 0.2

	tempHighThreshold = 80.0
	tempHighPenalty   = 0.3
	tempWarnThreshold = 60.0
	tempWarnPenalty   = 0.1

	runtimeYearHours  = 8760.0
	runtimePenaltyCap = 0.3
)

// HealthScore reduces one telemetry sample to a bounded [0,1] condition
// indicator. Efficiency rescales the base so that efficiency alone never
// drops the score below 0.3; every other factor is a subtractive penalty.
func HealthScore(s TelemetrySample) float64 {
	score := 1.0
	if s.EfficiencyPct != nil {
		score = 0.3 + 0.7*(*s.EfficiencyPct/100)
	}

	errorPenalty := float64(s.ErrorCount) * healthErrorPenalty
	if errorPenalty > healthErrorPenaltyCap {
		errorPenalty = healthErrorPenaltyCap
	}
	score -= errorPenalty

	if s.Vibration > vibrationThreshold {
		score -= vibrationPenalty
	}

	switch {
	case s.TemperatureC > tempHighThreshold:
		score -= tempHighPenalty
	case s.TemperatureC > tempWarnThreshold:
		score -= tempWarnPenalty
	}

	if s.RuntimeHours > runtimeYearHours {
		runtimePenalty := (s.RuntimeHours - runtimeYearHours) / runtimeYearHours * 0.2
		if runtimePenalty > runtimePenaltyCap {
			runtimePenalty = runtimePenaltyCap
		}
		score -= runtimePenalty
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
