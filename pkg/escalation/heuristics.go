package escalation

// EscalationConfig holds the tunable thresholds EscalationEngine.Decide
// reads. Either supplied directly (e.g. from pkg/config) or derived via
// TelemetryHeuristics.FromSessions.
type EscalationConfig struct {
	RepeatThreshold     int
	FailureThreshold    int
	NoChangeThreshold   int
	MultiFileThreshold  int
}

// DefaultEscalationConfig returns the thresholds FromSessions falls
// back to when no telemetry band applies.
func DefaultEscalationConfig() EscalationConfig {
	return EscalationConfig{
		RepeatThreshold:    3,
		FailureThreshold:   4,
		NoChangeThreshold:  4,
		MultiFileThreshold: 3,
	}
}

// SessionObservation is one historical session's telemetry, the input
// TelemetryHeuristics.FromSessions reduces over.
type SessionObservation struct {
	NoChangeRate        float64 // fraction of iterations with no file change
	AvgIterations       float64
	AvgConsecutiveNoChange float64
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FromSessions derives EscalationConfig thresholds from historical
// session telemetry: the more a fleet's past sessions stalled, the
// tighter the thresholds it returns. An empty history returns
// DefaultEscalationConfig().
func FromSessions(history []SessionObservation) EscalationConfig {
	if len(history) == 0 {
		return DefaultEscalationConfig()
	}

	var sumNoChangeRate, sumIterations, sumConsecutive float64
	for _, h := range history {
		sumNoChangeRate += h.NoChangeRate
		sumIterations += h.AvgIterations
		sumConsecutive += h.AvgConsecutiveNoChange
	}
	n := float64(len(history))
	avgNoChangeRate := sumNoChangeRate / n
	avgIterations := sumIterations / n
	avgConsecutive := sumConsecutive / n

	var repeatThreshold int
	switch {
	case avgNoChangeRate > 0.40:
		repeatThreshold = 1
	case avgNoChangeRate > 0.25:
		repeatThreshold = 2
	default:
		repeatThreshold = 3
	}

	var failureThreshold int
	switch {
	case avgIterations > 5.0:
		failureThreshold = 2
	case avgIterations > 3.5:
		failureThreshold = 3
	default:
		failureThreshold = 4
	}

	var noChangeThreshold int
	switch {
	case avgConsecutive > 3.0:
		noChangeThreshold = 2
	case avgConsecutive > 1.5:
		noChangeThreshold = 3
	default:
		noChangeThreshold = 4
	}

	cfg := DefaultEscalationConfig()
	cfg.RepeatThreshold = clamp(repeatThreshold, 1, 4)
	cfg.FailureThreshold = clamp(failureThreshold, 2, 6)
	cfg.NoChangeThreshold = clamp(noChangeThreshold, 2, 5)
	return cfg
}
