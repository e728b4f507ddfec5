package config

import "time"

// Config is the fully resolved configuration surface for one
// orchestrator run: process environment overrides config file values,
// which override built-in defaults.
type Config struct {
	MaxIterations   int `yaml:"max_iterations"`
	MinObjectiveLen int `yaml:"min_objective_len"`

	Debate      DebateConfig      `yaml:"debate"`
	Escalation  EscalationConfig  `yaml:"escalation"`
	Circuit     CircuitConfig     `yaml:"circuit"`
	EventBus    EventBusConfig    `yaml:"event_bus"`
	Verifier    VerifierConfig    `yaml:"verifier"`
	AgentTurns  AgentTurnsConfig  `yaml:"agent_turns"`
	TokenBudget TokenBudgetConfig `yaml:"token_budget"`

	RequireAdversaryReview bool `yaml:"require_adversary_review"`
}

// DebateConfig governs the coder/reviewer debate protocol.
type DebateConfig struct {
	TimeoutMS        int     `yaml:"timeout_ms"`
	MaxRounds        int     `yaml:"max_rounds"`
	MinConfidence    float64 `yaml:"min_confidence"`
	MaxStalledRounds int     `yaml:"max_stalled_rounds"`
}

// EscalationConfig governs the friction/delight-driven tier ladder.
type EscalationConfig struct {
	RepeatThreshold    int `yaml:"repeat_threshold"`
	FailureThreshold   int `yaml:"failure_threshold"`
	NoChangeThreshold  int `yaml:"no_change_threshold"`
	MultiFileThreshold int `yaml:"multi_file_threshold"`
}

// CircuitConfig governs the per-model circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs"`
}

// CooldownDuration converts CooldownSecs to a time.Duration.
func (c CircuitConfig) CooldownDuration() time.Duration {
	return time.Duration(c.CooldownSecs) * time.Second
}

// EventBusConfig governs the broadcast event bus.
type EventBusConfig struct {
	ChannelCapacity int `yaml:"channel_capacity"`
}

// VerifierConfig selects which quality gates run and in what mode.
type VerifierConfig struct {
	CheckFmt      bool `yaml:"check_fmt"`
	CheckLint     bool `yaml:"check_clippy"`
	CheckCompile  bool `yaml:"check_compile"`
	CheckTest     bool `yaml:"check_test"`
	Comprehensive bool `yaml:"comprehensive"`
}

// AgentTurnsConfig bounds how many steps each role may take per task.
type AgentTurnsConfig struct {
	WorkerMaxTurns    int `yaml:"worker_max_turns"`
	ManagerMaxTurns   int `yaml:"manager_max_turns"`
	PlannerMaxTurns   int `yaml:"planner_max_turns"`
	FixerMaxTurns     int `yaml:"fixer_max_turns"`
	ReasoningMaxTurns int `yaml:"reasoning_max_turns"`
}

// TokenBudgetConfig governs SwarmMemory compaction triggers.
type TokenBudgetConfig struct {
	SoftLimit int `yaml:"soft_limit"`
	HardLimit int `yaml:"hard_limit"`
}
