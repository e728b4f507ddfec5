package config

// DefaultConfig returns the built-in baseline every loaded config is
// merged on top of.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:   20,
		MinObjectiveLen: 10,
		Debate: DebateConfig{
			TimeoutMS:        0,
			MaxRounds:        5,
			MinConfidence:    0.70,
			MaxStalledRounds: 2,
		},
		Escalation: EscalationConfig{
			RepeatThreshold:    3,
			FailureThreshold:   3,
			NoChangeThreshold:  2,
			MultiFileThreshold: 5,
		},
		Circuit: CircuitConfig{
			FailureThreshold: 3,
			CooldownSecs:     60,
		},
		EventBus: EventBusConfig{
			ChannelCapacity: 256,
		},
		Verifier: VerifierConfig{
			CheckFmt:      true,
			CheckLint:     true,
			CheckCompile:  true,
			CheckTest:     true,
			Comprehensive: false,
		},
		AgentTurns: AgentTurnsConfig{
			WorkerMaxTurns:    10,
			ManagerMaxTurns:   5,
			PlannerMaxTurns:   5,
			FixerMaxTurns:     10,
			ReasoningMaxTurns: 5,
		},
		TokenBudget: TokenBudgetConfig{
			SoftLimit: 6000,
			HardLimit: 8000,
		},
		RequireAdversaryReview: false,
	}
}
