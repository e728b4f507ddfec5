package config

import (
	"log/slog"
	"os"
	"strconv"
)

// applyEnvOverrides gives the process environment the final word over
// whatever the config file or built-in defaults set, per the
// env > file > defaults precedence.
func applyEnvOverrides(cfg *Config) {
	envInt("COORDINATOR_MAX_ITERATIONS", &cfg.MaxIterations)
	envInt("COORDINATOR_MIN_OBJECTIVE_LEN", &cfg.MinObjectiveLen)

	envInt("COORDINATOR_DEBATE_TIMEOUT_MS", &cfg.Debate.TimeoutMS)
	envInt("COORDINATOR_DEBATE_MAX_ROUNDS", &cfg.Debate.MaxRounds)
	envFloat("COORDINATOR_DEBATE_MIN_CONFIDENCE", &cfg.Debate.MinConfidence)
	envInt("COORDINATOR_DEBATE_MAX_STALLED_ROUNDS", &cfg.Debate.MaxStalledRounds)

	envInt("COORDINATOR_ESCALATION_REPEAT_THRESHOLD", &cfg.Escalation.RepeatThreshold)
	envInt("COORDINATOR_ESCALATION_FAILURE_THRESHOLD", &cfg.Escalation.FailureThreshold)
	envInt("COORDINATOR_ESCALATION_NO_CHANGE_THRESHOLD", &cfg.Escalation.NoChangeThreshold)
	envInt("COORDINATOR_ESCALATION_MULTI_FILE_THRESHOLD", &cfg.Escalation.MultiFileThreshold)

	envInt("COORDINATOR_CIRCUIT_FAILURE_THRESHOLD", &cfg.Circuit.FailureThreshold)
	envInt("COORDINATOR_CIRCUIT_COOLDOWN_SECS", &cfg.Circuit.CooldownSecs)

	envInt("COORDINATOR_EVENT_CHANNEL_CAPACITY", &cfg.EventBus.ChannelCapacity)

	envBool("COORDINATOR_VERIFIER_CHECK_FMT", &cfg.Verifier.CheckFmt)
	envBool("COORDINATOR_VERIFIER_CHECK_CLIPPY", &cfg.Verifier.CheckLint)
	envBool("COORDINATOR_VERIFIER_CHECK_COMPILE", &cfg.Verifier.CheckCompile)
	envBool("COORDINATOR_VERIFIER_CHECK_TEST", &cfg.Verifier.CheckTest)
	envBool("COORDINATOR_VERIFIER_COMPREHENSIVE", &cfg.Verifier.Comprehensive)

	envInt("COORDINATOR_WORKER_MAX_TURNS", &cfg.AgentTurns.WorkerMaxTurns)
	envInt("COORDINATOR_MANAGER_MAX_TURNS", &cfg.AgentTurns.ManagerMaxTurns)
	envInt("COORDINATOR_PLANNER_MAX_TURNS", &cfg.AgentTurns.PlannerMaxTurns)
	envInt("COORDINATOR_FIXER_MAX_TURNS", &cfg.AgentTurns.FixerMaxTurns)
	envInt("COORDINATOR_REASONING_MAX_TURNS", &cfg.AgentTurns.ReasoningMaxTurns)

	envInt("COORDINATOR_TOKEN_BUDGET_SOFT_LIMIT", &cfg.TokenBudget.SoftLimit)
	envInt("COORDINATOR_TOKEN_BUDGET_HARD_LIMIT", &cfg.TokenBudget.HardLimit)

	envBool("COORDINATOR_REQUIRE_ADVERSARY_REVIEW", &cfg.RequireAdversaryReview)
}

func envInt(key string, dst *int) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("config: ignoring invalid int env override", "key", key, "value", raw, "error", err)
		return
	}
	*dst = v
}

func envFloat(key string, dst *float64) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("config: ignoring invalid float env override", "key", key, "value", raw, "error", err)
		return
	}
	*dst = v
}

func envBool(key string, dst *bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("config: ignoring invalid bool env override", "key", key, "value", raw, "error", err)
		return
	}
	*dst = v
}
