// Package orchestrator wires every other package in this module into
// AgentOrchestrator.ProcessIssue, the end-to-end "claim -> loop ->
// finish" entry point: claim an issue, drive a worker agent through
// the work-packet/verify/escalate loop inside a tool sandbox, hand a
// resolved diff to a coder<->reviewer debate, and close the issue or
// flag it for a human.
package orchestrator

import (
	"time"

	"github.com/forgeswarm/coordinator/pkg/circuitbreaker"
	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/config"
	"github.com/forgeswarm/coordinator/pkg/debate"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/eventbus"
	"github.com/forgeswarm/coordinator/pkg/memory"
	"github.com/forgeswarm/coordinator/pkg/verifier"
)

// Deps bundles the external collaborators one AgentOrchestrator needs:
// the issue tracker and knowledge base it degrades gracefully against,
// the worktree adapter, and the two LLM endpoints it calls opaquely
// (Coder drives the edit loop, Reviewer drives the debate's review
// turn — callers may point both at the same endpoint).
type Deps struct {
	Tracker  collab.IssueTracker
	KB       collab.KnowledgeBase
	Worktree collab.WorktreeAdapter
	Coder    collab.LLMEndpoint
	Reviewer collab.LLMEndpoint
	Bus      *eventbus.Bus

	// Summarizer condenses SwarmMemory once a run's per-issue transcript
	// crosses the configured token budget. A nil Summarizer falls back
	// to memory.MockSummarizer, the deterministic concatenation used
	// when no LLM-backed summarizer is configured.
	Summarizer memory.Summarizer
}

// AgentOrchestrator composes the verifier pipeline, escalation engine,
// circuit breaker, debate protocol, and work-packet generator into one
// "process one issue" operation. It holds no per-issue state itself —
// every ProcessIssue call builds its own issueRun — so one
// AgentOrchestrator value is safe to reuse concurrently across issues:
// tasks are isolated by distinct task ids and distinct worktrees.
type AgentOrchestrator struct {
	Deps

	Verifier  *verifier.Verifier
	Engine    *escalation.Engine
	Breaker   *circuitbreaker.Breaker
	Guardrail *debate.GuardrailEngine
	Consensus debate.ConsensusProtocol
	Compactor *memory.MemoryCompactor
	MemBudget memory.TokenBudget

	MinObjectiveLen        int
	MaxIterations          int
	DebateMaxRounds        int
	AgentTurns             config.AgentTurnsConfig
	RequireAdversaryReview bool

	now func() time.Time
}

// New builds an AgentOrchestrator from a resolved Config and its
// external collaborators.
func New(cfg *config.Config, deps Deps) *AgentOrchestrator {
	verifierCfg := verifier.DefaultConfig()
	verifierCfg.CheckFmt = cfg.Verifier.CheckFmt
	verifierCfg.CheckLint = cfg.Verifier.CheckLint
	verifierCfg.CheckCompile = cfg.Verifier.CheckCompile
	verifierCfg.CheckTest = cfg.Verifier.CheckTest
	if cfg.Verifier.Comprehensive {
		verifierCfg.FailPolicy = verifier.Comprehensive
	}

	escCfg := escalation.EscalationConfig{
		RepeatThreshold:    cfg.Escalation.RepeatThreshold,
		FailureThreshold:   cfg.Escalation.FailureThreshold,
		NoChangeThreshold:  cfg.Escalation.NoChangeThreshold,
		MultiFileThreshold: cfg.Escalation.MultiFileThreshold,
	}

	guardCfg := debate.GuardrailConfig{
		Timeout:   time.Duration(cfg.Debate.TimeoutMS) * time.Millisecond,
		MaxRounds: cfg.Debate.MaxRounds,
		Consensus: debate.ConsensusProtocol{
			MinConfidence:    cfg.Debate.MinConfidence,
			MaxStalledRounds: cfg.Debate.MaxStalledRounds,
		},
	}

	summarizer := deps.Summarizer
	if summarizer == nil {
		summarizer = memory.MockSummarizer{}
	}
	memBudget := memory.TokenBudget{SoftLimit: cfg.TokenBudget.SoftLimit, HardLimit: cfg.TokenBudget.HardLimit}

	return &AgentOrchestrator{
		Deps:                   deps,
		Verifier:               verifier.New(verifierCfg),
		Engine:                 escalation.NewEngine(escCfg),
		Breaker:                circuitbreaker.New(cfg.Circuit.FailureThreshold, cfg.Circuit.CooldownDuration()),
		Guardrail:              debate.NewGuardrailEngine(guardCfg),
		Consensus:              guardCfg.Consensus,
		Compactor:              memory.NewMemoryCompactor(memory.CompactionPolicy{Budget: memBudget}, summarizer),
		MemBudget:              memBudget,
		MinObjectiveLen:        cfg.MinObjectiveLen,
		MaxIterations:          cfg.MaxIterations,
		DebateMaxRounds:        cfg.Debate.MaxRounds,
		AgentTurns:             cfg.AgentTurns,
		RequireAdversaryReview: cfg.RequireAdversaryReview,
		now:                    time.Now,
	}
}

// turnsForTier picks the per-agent step ceiling for the tier driving
// the current iteration: Worker uses the cheap worker budget, Council
// the manager budget, and Cloud the deepest reasoning budget.
func turnsForTier(tier escalation.SwarmTier, cfg config.AgentTurnsConfig) int {
	switch tier {
	case escalation.TierWorker:
		return cfg.WorkerMaxTurns
	case escalation.TierCouncil:
		return cfg.ManagerMaxTurns
	case escalation.TierCloud:
		return cfg.ReasoningMaxTurns
	default:
		return 0
	}
}
