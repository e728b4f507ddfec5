package friction

import (
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/verifier"
)

// DelightSeverity grades how strongly a delight signal applies.
type DelightSeverity int

const (
	DelightMild DelightSeverity = iota
	DelightStrong
	DelightExceptional
)

func (s DelightSeverity) String() string {
	switch s {
	case DelightExceptional:
		return "exceptional"
	case DelightStrong:
		return "strong"
	default:
		return "mild"
	}
}

// DelightKind tags which delight pattern a DelightSignal reports.
type DelightKind int

const (
	DelightFirstPassSuccess DelightKind = iota
	DelightRapidConvergence
	DelightSteadyProgress
	DelightLowComplexityOnly
	DelightEfficientResolution
)

func (k DelightKind) String() string {
	switch k {
	case DelightFirstPassSuccess:
		return "first_pass_success"
	case DelightRapidConvergence:
		return "rapid_convergence"
	case DelightSteadyProgress:
		return "steady_progress"
	case DelightLowComplexityOnly:
		return "low_complexity_only"
	case DelightEfficientResolution:
		return "efficient_resolution"
	default:
		return "unknown"
	}
}

// DelightSignal is one detected positive pattern.
type DelightSignal struct {
	Kind     DelightKind
	Severity DelightSeverity
	Detail   string
}

// DetectDelight runs every delight check over state's iteration history
// plus report, and the tier budget (for EfficientResolution), returning
// every signal that fires.
func DetectDelight(state *escalation.State, report verifier.Report, budget escalation.TierBudget) []DelightSignal {
	var out []DelightSignal
	history := state.IterationHistory

	if s, ok := detectFirstPassSuccess(history); ok {
		out = append(out, s)
	}
	if s, ok := detectRapidConvergence(history); ok {
		out = append(out, s)
	}
	if s, ok := detectSteadyProgress(history); ok {
		out = append(out, s)
	}
	if s, ok := detectLowComplexityOnly(report); ok {
		out = append(out, s)
	}
	if s, ok := detectEfficientResolution(history, budget); ok {
		out = append(out, s)
	}
	return out
}

// detectFirstPassSuccess: iteration 1 is all-green.
func detectFirstPassSuccess(history []escalation.IterationRecord) (DelightSignal, bool) {
	if len(history) != 1 || !history[0].AllGreen {
		return DelightSignal{}, false
	}
	return DelightSignal{Kind: DelightFirstPassSuccess, Severity: DelightExceptional, Detail: "resolved on the first iteration"}, true
}

// detectRapidConvergence: a single-step error-count drop >= 50%
// (Exceptional at >= 80%).
func detectRapidConvergence(history []escalation.IterationRecord) (DelightSignal, bool) {
	n := len(history)
	if n < 2 {
		return DelightSignal{}, false
	}
	prev, cur := history[n-2], history[n-1]
	if prev.ErrorCount == 0 {
		return DelightSignal{}, false
	}
	drop := 1.0 - float64(cur.ErrorCount)/float64(prev.ErrorCount)
	if drop < 0.50 {
		return DelightSignal{}, false
	}
	sev := DelightStrong
	if drop >= 0.80 {
		sev = DelightExceptional
	}
	return DelightSignal{Kind: DelightRapidConvergence, Severity: sev, Detail: "error count dropped sharply in one step"}, true
}

// detectSteadyProgress: >= 3 strictly decreasing tail (Strong at >= 4).
func detectSteadyProgress(history []escalation.IterationRecord) (DelightSignal, bool) {
	n := len(history)
	if n < 3 {
		return DelightSignal{}, false
	}
	run := 1
	for i := n - 1; i > 0; i-- {
		if history[i].ErrorCount < history[i-1].ErrorCount {
			run++
		} else {
			break
		}
	}
	if run < 3 {
		return DelightSignal{}, false
	}
	sev := DelightMild
	if run >= 4 {
		sev = DelightStrong
	}
	return DelightSignal{Kind: DelightSteadyProgress, Severity: sev, Detail: "error count has decreased for several consecutive iterations"}, true
}

// detectLowComplexityOnly: not all-green, but every remaining failure
// signal's category has complexity <= 1.
func detectLowComplexityOnly(report verifier.Report) (DelightSignal, bool) {
	if report.AllGreen || len(report.FailureSignals) == 0 {
		return DelightSignal{}, false
	}
	maxComplexity := 0
	for _, fs := range report.FailureSignals {
		if c := fs.Category.Complexity(); c > maxComplexity {
			maxComplexity = c
		}
	}
	if maxComplexity > 1 {
		return DelightSignal{}, false
	}
	return DelightSignal{Kind: DelightLowComplexityOnly, Severity: DelightMild, Detail: "remaining failures are all low complexity"}, true
}

// detectEfficientResolution: all-green within budget; Exceptional if
// <= budget/2, Strong if <= 3*budget/4, else Mild.
func detectEfficientResolution(history []escalation.IterationRecord, budget escalation.TierBudget) (DelightSignal, bool) {
	n := len(history)
	if n == 0 || !history[n-1].AllGreen || budget.MaxIterations <= 0 {
		return DelightSignal{}, false
	}
	if n > budget.MaxIterations {
		return DelightSignal{}, false
	}
	half := float64(budget.MaxIterations) / 2
	threeQuarter := float64(budget.MaxIterations) * 3 / 4
	sev := DelightMild
	switch {
	case float64(n) <= half:
		sev = DelightExceptional
	case float64(n) <= threeQuarter:
		sev = DelightStrong
	}
	return DelightSignal{Kind: DelightEfficientResolution, Severity: sev, Detail: "resolved well within the tier's iteration budget"}, true
}
