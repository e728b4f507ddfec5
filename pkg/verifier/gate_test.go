package verifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRun_NonzeroExitWithoutDiagnosticsCarriesFailureSignal(t *testing.T) {
	g := Gate{Name: "dep_audit", Command: "sh", Args: []string{"-c", "echo 'module lookup failed' >&2; exit 1"}}
	gr := g.run(context.Background(), t.TempDir(), 10*time.Second)

	require.Equal(t, Failed, gr.Outcome)
	require.Len(t, gr.Errors, 1)
	assert.Contains(t, gr.Errors[0].Message, "dep_audit gate failed (exit 1)")
	assert.Contains(t, gr.Errors[0].Message, "module lookup failed")

	// The report-level invariant follows: a failing gate always
	// contributes at least one failure signal.
	r := Report{Gates: []GateResult{gr}}
	finalize(&r)
	assert.False(t, r.AllGreen)
	assert.NotEmpty(t, r.FailureSignals)
}

func TestGateRun_SpawnFailureCarriesFailureSignal(t *testing.T) {
	g := Gate{Name: "lint", Command: "definitely-not-a-real-binary"}
	gr := g.run(context.Background(), t.TempDir(), 10*time.Second)

	require.Equal(t, Failed, gr.Outcome)
	require.Len(t, gr.Errors, 1)
	assert.Contains(t, gr.Errors[0].Message, "lint gate failed")
}

func TestGateRun_ZeroExitNoDiagnosticsPasses(t *testing.T) {
	g := Gate{Name: "format", Command: "true"}
	gr := g.run(context.Background(), t.TempDir(), 10*time.Second)

	require.Equal(t, Passed, gr.Outcome)
	assert.Empty(t, gr.Errors)
}
