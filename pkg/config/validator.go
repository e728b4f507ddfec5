package config

import "fmt"

// Validate checks the resolved Config for internally-inconsistent or
// out-of-range values that would otherwise surface confusingly deep
// inside the orchestrator loop.
func Validate(cfg *Config) error {
	if cfg.MaxIterations <= 0 {
		return &ValidationError{Field: "max_iterations", Err: fmt.Errorf("must be positive, got %d", cfg.MaxIterations)}
	}
	if cfg.MinObjectiveLen < 0 {
		return &ValidationError{Field: "min_objective_len", Err: fmt.Errorf("must be non-negative, got %d", cfg.MinObjectiveLen)}
	}
	if cfg.Debate.MinConfidence < 0 || cfg.Debate.MinConfidence > 1 {
		return &ValidationError{Field: "debate.min_confidence", Err: fmt.Errorf("must be in [0,1], got %f", cfg.Debate.MinConfidence)}
	}
	if cfg.Debate.MaxRounds <= 0 {
		return &ValidationError{Field: "debate.max_rounds", Err: fmt.Errorf("must be positive, got %d", cfg.Debate.MaxRounds)}
	}
	if cfg.Debate.MaxStalledRounds <= 0 {
		return &ValidationError{Field: "debate.max_stalled_rounds", Err: fmt.Errorf("must be positive, got %d", cfg.Debate.MaxStalledRounds)}
	}
	if cfg.Circuit.FailureThreshold <= 0 {
		return &ValidationError{Field: "circuit.failure_threshold", Err: fmt.Errorf("must be positive, got %d", cfg.Circuit.FailureThreshold)}
	}
	if cfg.Circuit.CooldownSecs < 0 {
		return &ValidationError{Field: "circuit.cooldown_secs", Err: fmt.Errorf("must be non-negative, got %d", cfg.Circuit.CooldownSecs)}
	}
	if cfg.EventBus.ChannelCapacity <= 0 {
		return &ValidationError{Field: "event_bus.channel_capacity", Err: fmt.Errorf("must be positive, got %d", cfg.EventBus.ChannelCapacity)}
	}
	if cfg.TokenBudget.SoftLimit <= 0 {
		return &ValidationError{Field: "token_budget.soft_limit", Err: fmt.Errorf("must be positive, got %d", cfg.TokenBudget.SoftLimit)}
	}
	if cfg.TokenBudget.HardLimit > 0 && cfg.TokenBudget.HardLimit < cfg.TokenBudget.SoftLimit {
		return &ValidationError{Field: "token_budget.hard_limit", Err: fmt.Errorf("must be >= soft_limit (%d), got %d", cfg.TokenBudget.SoftLimit, cfg.TokenBudget.HardLimit)}
	}
	return nil
}
