package escalation

import (
	"testing"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingReport(cat errorparser.ErrorCategory) verifier.Report {
	r := verifier.Report{
		Gates: []verifier.GateResult{
			{
				GateName: "compile",
				Outcome:  verifier.Failed,
				Errors:   []errorparser.ParsedError{{Category: cat, Message: "boom", File: "src/lib.go"}},
			},
		},
		FailureSignals: []errorparser.FailureSignal{{Category: cat, Message: "boom", File: "src/lib.go"}},
	}
	return r
}

func greenReport() verifier.Report {
	return verifier.Report{
		Gates:    []verifier.GateResult{{GateName: "test", Outcome: verifier.Passed}},
		AllGreen: true,
	}
}

func TestDecide_EmptyHistoryContinuesAtWorker(t *testing.T) {
	e := NewEngine(DefaultEscalationConfig())
	s := NewState("task-1")

	d := e.Decide(s, failingReport(errorparser.CategoryOther), true)

	assert.False(t, d.Resolved)
	assert.Equal(t, TierWorker, d.TargetTier)
	assert.Equal(t, ActionContinue, d.Action)
}

func TestDecide_FirstPassSuccessResolves(t *testing.T) {
	e := NewEngine(DefaultEscalationConfig())
	s := NewState("task-1")

	d := e.Decide(s, greenReport(), true)

	assert.True(t, d.Resolved)
	assert.False(t, d.Escalated)
	assert.Equal(t, 1, s.TotalIterations)
	assert.Equal(t, ActionContinue, d.Action)
}

func TestDecide_BudgetExhaustionEscalates(t *testing.T) {
	cfg := DefaultEscalationConfig()
	cfg.RepeatThreshold = 99 // disable the repeat-category path for this test
	e := NewEngine(cfg)
	s := NewState("task-1")

	var last Decision
	for i := 0; i < s.TierBudgets[TierWorker].MaxIterations; i++ {
		last = e.Decide(s, failingReport(errorparser.CategoryOther), true)
	}

	require.True(t, last.Escalated)
	assert.Equal(t, TierCouncil, last.TargetTier)
	assert.Equal(t, ReasonBudgetExhausted, last.Reason.Kind)
}

func TestDecide_RepeatedCategoryEscalatesOneTier(t *testing.T) {
	cfg := DefaultEscalationConfig()
	cfg.RepeatThreshold = 2
	e := NewEngine(cfg)
	s := NewState("task-1")

	e.Decide(s, failingReport(errorparser.CategoryTraitBound), true)
	d := e.Decide(s, failingReport(errorparser.CategoryTraitBound), true)

	require.True(t, d.Escalated)
	assert.Equal(t, TierCouncil, d.TargetTier)
	assert.Equal(t, ReasonRepeatedErrorCategory, d.Reason.Kind)
}

func TestDecide_NoChangeStuckEscalatesDirectlyToHuman(t *testing.T) {
	cfg := DefaultEscalationConfig()
	cfg.NoChangeThreshold = 2
	cfg.RepeatThreshold = 99
	e := NewEngine(cfg)
	s := NewState("task-1")

	e.Decide(s, failingReport(errorparser.CategoryOther), false)
	d := e.Decide(s, failingReport(errorparser.CategoryOther), false)

	require.True(t, d.Stuck)
	assert.Equal(t, TierHuman, d.TargetTier)
	assert.Equal(t, ActionFlagForHuman, d.Action)
}

func TestDecide_FullEscalationLadder(t *testing.T) {
	// Worker -> Council -> Cloud -> Human, one escalation per repeat hit.
	cfg := EscalationConfig{RepeatThreshold: 2, FailureThreshold: 3, NoChangeThreshold: 99, MultiFileThreshold: 99}
	e := NewEngine(cfg)
	s := NewState("task-1")

	var last Decision
	for i := 0; i < 12 && !s.Stuck; i++ {
		last = e.Decide(s, failingReport(errorparser.CategoryTypeMismatch), true)
	}

	require.True(t, s.Stuck)
	assert.Equal(t, 3, len(s.EscalationHistory))
	assert.Equal(t, ActionFlagForHuman, last.Action)

	prev := TierWorker
	for _, rec := range s.EscalationHistory {
		assert.Greater(t, rec.ToTier, prev)
		prev = rec.ToTier
	}
}

func TestAppendIteration_ResetsConsecutiveNoChangeOnFileChange(t *testing.T) {
	s := NewState("task-1")
	s.AppendIteration(IterationRecord{AllGreen: false, ChangedFiles: false})
	s.AppendIteration(IterationRecord{AllGreen: false, ChangedFiles: false})
	require.Equal(t, 2, s.ConsecutiveNoChange)

	s.AppendIteration(IterationRecord{AllGreen: false, ChangedFiles: true})
	assert.Equal(t, 0, s.ConsecutiveNoChange)
}

func TestAppendIteration_HistoryLengthInvariant(t *testing.T) {
	s := NewState("task-1")
	for i := 0; i < 5; i++ {
		s.AppendIteration(IterationRecord{AllGreen: false, ChangedFiles: true})
	}
	assert.Equal(t, len(s.IterationHistory), s.TotalIterations)
}
