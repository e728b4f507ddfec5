package escalation

import (
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/verifier"
)

// Action is the orchestrator-facing instruction that accompanies a
// Decision.
type Action int

const (
	ActionContinue Action = iota
	ActionRepairPlan
	ActionFlagForHuman
	ActionCrossReview
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionRepairPlan:
		return "repair_plan"
	case ActionFlagForHuman:
		return "flag_for_human"
	case ActionCrossReview:
		return "cross_review"
	default:
		return "unknown"
	}
}

// Decision is the pure output of Engine.Decide.
type Decision struct {
	Resolved   bool
	Escalated  bool
	Stuck      bool
	TargetTier SwarmTier
	Action     Action
	Reason     *EscalationReason
}

// Engine is the stateless decision function over an EscalationState and
// a freshly produced VerifierReport. It never performs I/O; Now is
// injectable for deterministic tests.
type Engine struct {
	cfg EscalationConfig
	now func() time.Time
}

// NewEngine builds an Engine from the given thresholds.
func NewEngine(cfg EscalationConfig) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// Decide records the iteration and picks the next move: resolve on
// all-green, flag for a human on a no-change stall, escalate one tier
// on a repeated category, an exhausted budget, or multi-file
// complexity, and otherwise continue at the current tier.
// Decide both mutates state (appending the iteration and any
// resulting escalation) and returns the Decision for that call.
// changedFiles is supplied by the caller (the orchestrator knows,
// from the worktree diff, whether the agent's iteration touched any
// file) and drives the ConsecutiveNoChange counter.
func (e *Engine) Decide(state *State, report verifier.Report, changedFiles bool) Decision {
	cats := make([]errorparser.ErrorCategory, 0, len(report.FailureSignals))
	for _, fs := range report.FailureSignals {
		cats = append(cats, fs.Category)
	}

	state.AppendIteration(IterationRecord{
		ErrorCategories: cats,
		ErrorCount:      len(report.FailureSignals),
		AllGreen:        report.AllGreen,
		AtIteration:     state.TotalIterations + 1,
		ChangedFiles:    changedFiles,
	})

	// All-green resolves immediately.
	if report.AllGreen {
		state.Resolved = true
		return Decision{Resolved: true, TargetTier: state.CurrentTier, Action: ActionContinue}
	}

	// No-change-stuck escalates straight to Human regardless of the
	// current tier: more capable models don't help an agent that has
	// stopped touching files.
	if state.ConsecutiveNoChange >= e.cfg.NoChangeThreshold {
		state.Stuck = true
		reason := EscalationReason{Kind: ReasonNoChange, Count: state.ConsecutiveNoChange}
		if state.CurrentTier != TierHuman {
			state.RecordEscalation(TierHuman, reason, e.now())
		}
		return Decision{Escalated: true, Stuck: true, TargetTier: TierHuman, Action: ActionFlagForHuman, Reason: &reason}
	}

	// A dominant category repeated past threshold escalates one tier.
	if dominant, count, ok := dominantRepeated(state.RepeatedCategoryCount); ok && count >= uint32(e.cfg.RepeatThreshold) {
		reason := EscalationReason{Kind: ReasonRepeatedErrorCategory, Category: dominant, Count: int(count)}
		return e.escalateOneTier(state, reason)
	}

	// Tier iteration budget exhausted.
	budget := state.TierBudgets[state.CurrentTier]
	if budget.MaxIterations > 0 && iterationsAtCurrentTier(state) >= budget.MaxIterations {
		reason := EscalationReason{Kind: ReasonBudgetExhausted, Tier: state.CurrentTier}
		return e.escalateOneTier(state, reason)
	}

	// Multi-file / complexity-weighted error count threshold.
	if complexityWeightedCount(cats) >= e.multiFileThreshold() || len(distinctFiles(report)) >= e.multiFileThreshold() {
		reason := EscalationReason{Kind: ReasonMultiFileComplexity, Files: len(distinctFiles(report))}
		return e.escalateOneTier(state, reason)
	}

	// Otherwise continue at the current tier.
	return Decision{TargetTier: state.CurrentTier, Action: ActionContinue}
}

func (e *Engine) multiFileThreshold() int {
	if e.cfg.MultiFileThreshold > 0 {
		return e.cfg.MultiFileThreshold
	}
	return DefaultEscalationConfig().MultiFileThreshold
}

// escalateOneTier advances state.CurrentTier by one step and returns
// the corresponding Decision, selecting the action for the new tier
// (RepairPlan at Council, CrossReview at Cloud). Reaching Human marks
// Stuck.
func (e *Engine) escalateOneTier(state *State, reason EscalationReason) Decision {
	next := state.CurrentTier.Next()
	state.RecordEscalation(next, reason, e.now())

	var action Action
	switch next {
	case TierCouncil:
		action = ActionRepairPlan
	case TierCloud:
		action = ActionCrossReview
	case TierHuman:
		action = ActionFlagForHuman
		state.Stuck = true
	default:
		action = ActionContinue
	}

	return Decision{
		Escalated:  true,
		Stuck:      state.Stuck,
		TargetTier: next,
		Action:     action,
		Reason:     &reason,
	}
}

// iterationsAtCurrentTier counts how many iteration_history entries
// have occurred since the last escalation record (or since the start,
// if none).
func iterationsAtCurrentTier(state *State) int {
	last := 0
	for _, rec := range state.EscalationHistory {
		last = rec.AtIteration
	}
	return state.TotalIterations - last
}

func dominantRepeated(counts map[errorparser.ErrorCategory]uint32) (errorparser.ErrorCategory, uint32, bool) {
	var best errorparser.ErrorCategory
	var bestCount uint32
	found := false
	for cat, count := range counts {
		if !found || count > bestCount {
			best = cat
			bestCount = count
			found = true
		}
	}
	return best, bestCount, found
}

func complexityWeightedCount(cats []errorparser.ErrorCategory) int {
	total := 0
	for _, c := range cats {
		total += c.Complexity()
	}
	return total
}

func distinctFiles(report verifier.Report) []string {
	seen := make(map[string]bool)
	var files []string
	for _, fs := range report.FailureSignals {
		if fs.File == "" || seen[fs.File] {
			continue
		}
		seen[fs.File] = true
		files = append(files, fs.File)
	}
	return files
}
