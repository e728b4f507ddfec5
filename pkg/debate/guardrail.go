package debate

import "time"

// DeadlockOutcome is GuardrailEngine.Evaluate's instruction to the
// orchestrator about what to do with a debate session right now.
type DeadlockOutcome struct {
	Kind          DeadlockKind
	Rounds        int
	StalledRounds int
	Reason        string
	Elapsed       time.Duration
	Budget        time.Duration
}

// DeadlockKind tags which guardrail, if any, fired.
type DeadlockKind int

const (
	DeadlockContinue DeadlockKind = iota
	DeadlockMaxRoundsExceeded
	DeadlockStallDetected
	DeadlockEscalationRequired
	DeadlockTimeoutExceeded
)

// ShouldStop reports whether the debate must stop instead of
// proceeding to another round.
func (d DeadlockOutcome) ShouldStop() bool {
	return d.Kind != DeadlockContinue
}

func (d DeadlockOutcome) String() string {
	switch d.Kind {
	case DeadlockContinue:
		return "continue"
	case DeadlockMaxRoundsExceeded:
		return "max_rounds_exceeded"
	case DeadlockStallDetected:
		return "stall_detected"
	case DeadlockEscalationRequired:
		return "escalation_required: " + d.Reason
	case DeadlockTimeoutExceeded:
		return "timeout_exceeded"
	default:
		return "unknown"
	}
}

// GuardrailConfig bounds a debate so it can never deadlock the
// orchestration loop.
type GuardrailConfig struct {
	// Timeout is the maximum total debate wall-clock time; zero means
	// unlimited.
	Timeout   time.Duration
	MaxRounds int
	Consensus ConsensusProtocol
}

// DefaultGuardrailConfig is no timeout, five rounds, and the default
// consensus protocol.
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{Timeout: 0, MaxRounds: 5, Consensus: DefaultConsensusProtocol()}
}

// GuardrailEngine evaluates a debate Session against a GuardrailConfig
// before each new round.
type GuardrailEngine struct {
	cfg GuardrailConfig
}

// NewGuardrailEngine builds a GuardrailEngine from cfg.
func NewGuardrailEngine(cfg GuardrailConfig) *GuardrailEngine {
	return &GuardrailEngine{cfg: cfg}
}

// Evaluate applies the precedence order — timeout > max-rounds >
// stall/escalation > continue — over session, the accumulated
// ConsensusChecks, and elapsed wall-clock time, returning the single
// highest-priority DeadlockOutcome that applies.
func (g *GuardrailEngine) Evaluate(session *Session, checks []ConsensusCheck, elapsed time.Duration) DeadlockOutcome {
	if g.cfg.Timeout > 0 && elapsed >= g.cfg.Timeout {
		return DeadlockOutcome{Kind: DeadlockTimeoutExceeded, Elapsed: elapsed, Budget: g.cfg.Timeout}
	}
	if session.CurrentRound >= g.cfg.MaxRounds {
		return DeadlockOutcome{Kind: DeadlockMaxRoundsExceeded, Rounds: session.CurrentRound}
	}

	switch g.cfg.Consensus.Evaluate(checks) {
	case OutcomeStalled:
		return DeadlockOutcome{Kind: DeadlockStallDetected, StalledRounds: g.cfg.Consensus.MaxStalledRounds}
	case OutcomeNeedsEscalation:
		return DeadlockOutcome{Kind: DeadlockEscalationRequired, Reason: "reviewer abstained"}
	default:
		return DeadlockOutcome{Kind: DeadlockContinue}
	}
}
