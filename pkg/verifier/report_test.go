package verifier

import (
	"testing"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/stretchr/testify/assert"
)

func TestFinalize_AllGreenWhenNoErrors(t *testing.T) {
	r := Report{Gates: []GateResult{
		{GateName: "format", Outcome: Passed},
		{GateName: "lint", Outcome: Passed},
	}}
	finalize(&r)

	assert.True(t, r.AllGreen)
	assert.Empty(t, r.FailureSignals)
	assert.Equal(t, 2, r.GatesTotal)
	assert.Equal(t, 2, r.GatesPassed)
}

func TestFinalize_NotAllGreenOnFailure(t *testing.T) {
	r := Report{Gates: []GateResult{
		{GateName: "format", Outcome: Passed},
		{
			GateName: "compile",
			Outcome:  Failed,
			Errors: []errorparser.ParsedError{
				{Category: errorparser.CategoryTypeMismatch, Message: "mismatched types"},
			},
		},
		{GateName: "test", Outcome: Skipped},
	}}
	finalize(&r)

	assert.False(t, r.AllGreen)
	assert.Len(t, r.FailureSignals, 1)
	assert.Equal(t, 1, r.ErrorCategories[errorparser.CategoryTypeMismatch])
	// Skipped gates don't count toward GatesPassed but don't flip AllGreen by themselves.
	assert.Equal(t, 1, r.GatesPassed)
}

func TestFinalize_AllGreenInvariantHoldsWithOnlySkipped(t *testing.T) {
	r := Report{Gates: []GateResult{
		{GateName: "format", Outcome: Passed},
		{GateName: "dep_audit", Outcome: Skipped},
	}}
	finalize(&r)

	assert.True(t, r.AllGreen)
	assert.Empty(t, r.FailureSignals)
}

func TestSelectGates_QuickModeOmitsCompileAndTest(t *testing.T) {
	v := New(Config{Mode: ModeQuick, CheckFmt: true, CheckLint: true, CheckCompile: true, CheckTest: true})
	gates := v.selectGates(DiffRiskProfile{})

	names := make([]string, len(gates))
	for i, g := range gates {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"format", "lint"}, names)
}

func TestSelectGates_RiskAdaptiveAddsDepAudit(t *testing.T) {
	cfg := DefaultConfig()
	v := New(cfg)
	gates := v.selectGates(DiffRiskProfile{HasDependencyManifestChange: true})

	found := false
	for _, g := range gates {
		if g.Name == "dep_audit" {
			found = true
		}
	}
	assert.True(t, found)
}
