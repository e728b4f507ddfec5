// Package verifier runs a fixed, deterministic sequence of quality
// gates (format, lint, compile, test, plus risk-adaptive gates) against
// a worktree and produces a Report, the sole source of truth
// for "done" in the orchestration loop.
package verifier

import (
	"github.com/forgeswarm/coordinator/pkg/errorparser"
)

// Outcome is a gate's terminal state.
type Outcome string

const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Skipped Outcome = "skipped"
)

// GateResult is the structured outcome of one gate invocation.
type GateResult struct {
	GateName      string                      `json:"gate_name"`
	Outcome       Outcome                     `json:"outcome"`
	DurationMs    int64                       `json:"duration_ms"`
	ExitCode      *int                        `json:"exit_code,omitempty"`
	ErrorCount    int                         `json:"error_count"`
	WarningCount  int                         `json:"warning_count"`
	Errors        []errorparser.ParsedError   `json:"errors,omitempty"`
	StderrExcerpt string                      `json:"stderr_excerpt,omitempty"`
}

// Report is the output contract of Verifier.RunPipeline. Invariant:
// AllGreen iff every non-skipped gate Passed iff FailureSignals is
// empty.
type Report struct {
	WorkingDir       string                                   `json:"working_dir"`
	Branch           string                                   `json:"branch,omitempty"`
	Commit           string                                   `json:"commit,omitempty"`
	Gates            []GateResult                             `json:"gates"`
	GatesTotal       int                                      `json:"gates_total"`
	GatesPassed      int                                      `json:"gates_passed"`
	AllGreen         bool                                     `json:"all_green"`
	FailureSignals   []errorparser.FailureSignal              `json:"failure_signals"`
	ErrorCategories  map[errorparser.ErrorCategory]int         `json:"error_categories"`
	TotalDurationMs  int64                                    `json:"total_duration_ms"`
}

// finalize derives the aggregate fields (AllGreen, GatesTotal,
// GatesPassed, FailureSignals, ErrorCategories, TotalDurationMs) from
// Gates. Called once after the pipeline finishes running gates.
func finalize(r *Report) {
	r.GatesTotal = len(r.Gates)
	r.GatesPassed = 0
	r.FailureSignals = nil
	r.ErrorCategories = make(map[errorparser.ErrorCategory]int)
	r.AllGreen = true
	var total int64

	for _, g := range r.Gates {
		total += g.DurationMs
		switch g.Outcome {
		case Passed:
			r.GatesPassed++
		case Skipped:
			// Skipped gates don't affect AllGreen.
		default:
			r.AllGreen = false
		}
		for _, e := range g.Errors {
			r.FailureSignals = append(r.FailureSignals, e.ToSignal())
			r.ErrorCategories[e.Category]++
		}
	}
	r.TotalDurationMs = total
}
