package workpacket

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/verifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	lines map[string]string
	fail  map[string]bool
}

func (f *fakeProvider) ReadLines(file string, start, end int) (string, error) {
	if f.fail[file] {
		return "", errors.New("not found")
	}
	if c, ok := f.lines[file]; ok {
		return c, nil
	}
	return "content", nil
}

func newState(t *testing.T) *escalation.State {
	t.Helper()
	return escalation.NewState("bead-1")
}

func TestGenerate_BasicFields(t *testing.T) {
	s := newState(t)
	s.AppendIteration(escalation.IterationRecord{
		ErrorCategories: []errorparser.ErrorCategory{errorparser.CategoryTypeMismatch},
		ErrorCount:      1,
		AtIteration:     1,
	})

	report := &verifier.Report{
		FailureSignals: []errorparser.FailureSignal{{Category: errorparser.CategoryTypeMismatch, File: "pkg/foo.go", Line: 10}},
	}

	g := NewGenerator(&fakeProvider{})
	p := g.Generate(Input{
		BeadID:     "bead-1",
		Branch:     "fix/foo",
		Checkpoint: "abc123",
		Objective:  "fix the type mismatch",
		Gates:      []string{"compile", "test"},
		State:      s,
		Report:     report,
	})

	assert.Equal(t, "bead-1", p.BeadID)
	assert.Equal(t, escalation.TierWorker, p.TargetTier)
	assert.Equal(t, 150, p.MaxPatchLOC)
	assert.Contains(t, p.FilesTouched, "pkg/foo.go")
	assert.Len(t, p.FileContexts, 1)
	assert.Contains(t, p.Summary(), "bead-1")
}

func TestGenerate_MaxPatchLOCByTier(t *testing.T) {
	s := newState(t)
	s.CurrentTier = escalation.TierCouncil
	g := NewGenerator(&fakeProvider{})
	p := g.Generate(Input{BeadID: "b", State: s})
	assert.Equal(t, 400, p.MaxPatchLOC)

	s2 := newState(t)
	s2.CurrentTier = escalation.TierCloud
	p2 := g.Generate(Input{BeadID: "b", State: s2})
	assert.Equal(t, 1000, p2.MaxPatchLOC)
}

func TestGenerate_SkipsUnreadableFiles(t *testing.T) {
	s := newState(t)
	report := &verifier.Report{
		FailureSignals: []errorparser.FailureSignal{
			{Category: errorparser.CategoryOther, File: "missing.go", Line: 1},
			{Category: errorparser.CategoryOther, File: "present.go", Line: 2},
		},
	}
	g := NewGenerator(&fakeProvider{fail: map[string]bool{"missing.go": true}})
	p := g.Generate(Input{BeadID: "b", State: s, Report: report})

	var files []string
	for _, fc := range p.FileContexts {
		files = append(files, fc.File)
	}
	assert.NotContains(t, files, "missing.go")
	assert.Contains(t, files, "present.go")
}

func TestGenerate_TrimsFileContextsToStayWithinBudget(t *testing.T) {
	s := newState(t)
	bigContent := strings.Repeat("x", 20000)
	files := map[string]string{}
	var signals []errorparser.FailureSignal
	for i := 0; i < 10; i++ {
		name := "file" + string(rune('a'+i)) + ".go"
		files[name] = bigContent
		signals = append(signals, errorparser.FailureSignal{Category: errorparser.CategoryOther, File: name, Line: 1})
	}
	report := &verifier.Report{FailureSignals: signals}

	g := NewGenerator(&fakeProvider{lines: files})
	g.TokenBudget = 500
	p := g.Generate(Input{BeadID: "b", State: s, Report: report})

	require.LessOrEqual(t, p.EstimatedTokens(), g.TokenBudget)
}

func TestGenerate_RecordsEscalationReason(t *testing.T) {
	s := newState(t)
	s.AppendIteration(escalation.IterationRecord{AtIteration: 1})
	s.RecordEscalation(escalation.TierCouncil, escalation.EscalationReason{Kind: escalation.ReasonBudgetExhausted}, time.Now())
	g := NewGenerator(&fakeProvider{})
	p := g.Generate(Input{BeadID: "b", State: s})
	assert.Equal(t, "budget_exhausted", p.EscalationReason)
}

func TestWorkPacket_UniqueErrorCategories(t *testing.T) {
	p := &WorkPacket{FailureSignals: []errorparser.FailureSignal{
		{Category: errorparser.CategoryAsync},
		{Category: errorparser.CategoryAsync},
		{Category: errorparser.CategoryMacro},
	}}
	cats := p.UniqueErrorCategories()
	assert.Equal(t, []errorparser.ErrorCategory{errorparser.CategoryAsync, errorparser.CategoryMacro}, cats)
}

func TestWorkPacket_HasFailures(t *testing.T) {
	p := &WorkPacket{}
	assert.False(t, p.HasFailures())
	p.FailureSignals = []errorparser.FailureSignal{{Category: errorparser.CategoryOther}}
	assert.True(t, p.HasFailures())
}
