// Package friction implements the stateless FrictionDetector and
// DelightDetector pattern-signal functions over an escalation.State and
// a verifier.Report. Both are hints only: they never block execution.
package friction

import (
	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/verifier"
)

// Severity grades how strongly a signal applies.
type Severity int

const (
	SeverityMedium Severity = iota
	SeverityHigh
)

func (s Severity) String() string {
	if s == SeverityHigh {
		return "high"
	}
	return "medium"
}

// Kind tags which friction pattern a Signal reports.
type Kind int

const (
	KindOscillation Kind = iota
	KindPlateau
	KindCategoryChurn
	KindHighComplexityDominance
	KindRapidEscalation
)

func (k Kind) String() string {
	switch k {
	case KindOscillation:
		return "oscillation"
	case KindPlateau:
		return "plateau"
	case KindCategoryChurn:
		return "category_churn"
	case KindHighComplexityDominance:
		return "high_complexity_dominance"
	case KindRapidEscalation:
		return "rapid_escalation"
	default:
		return "unknown"
	}
}

// Signal is one detected friction pattern.
type Signal struct {
	Kind     Kind
	Severity Severity
	Detail   string
}

// Detect runs every friction check in priority order (oscillation >
// plateau > churn > complexity-dominance > rapid-escalation) and
// returns every signal that fires; callers interested in only the
// highest-priority one should take Detect(...)[0].
func Detect(state *escalation.State, report verifier.Report) []Signal {
	var out []Signal
	window := state.RecentErrorCategories()
	currentCats := make([]errorparser.ErrorCategory, 0, len(report.FailureSignals))
	for _, fs := range report.FailureSignals {
		currentCats = append(currentCats, fs.Category)
	}

	if s, ok := detectOscillation(window); ok {
		out = append(out, s)
	}
	if s, ok := detectPlateau(state.IterationHistory); ok {
		out = append(out, s)
	}
	if s, ok := detectCategoryChurn(window); ok {
		out = append(out, s)
	}
	if s, ok := detectHighComplexityDominance(currentCats); ok {
		out = append(out, s)
	}
	if s, ok := detectRapidEscalation(state.EscalationHistory, state.TotalIterations); ok {
		out = append(out, s)
	}
	return out
}

// detectOscillation: with a window of length >= 4, the even-indexed
// and odd-indexed category sets intersect non-empty. High severity at
// window length >= 6.
func detectOscillation(window [][]errorparser.ErrorCategory) (Signal, bool) {
	if len(window) < 4 {
		return Signal{}, false
	}
	even := unionAt(window, 0)
	odd := unionAt(window, 1)
	if !intersects(even, odd) {
		return Signal{}, false
	}
	sev := SeverityMedium
	if len(window) >= 6 {
		sev = SeverityHigh
	}
	return Signal{Kind: KindOscillation, Severity: sev, Detail: "error categories alternate between rounds"}, true
}

func unionAt(window [][]errorparser.ErrorCategory, parity int) map[errorparser.ErrorCategory]bool {
	out := make(map[errorparser.ErrorCategory]bool)
	for i, cats := range window {
		if i%2 != parity {
			continue
		}
		for _, c := range cats {
			out[c] = true
		}
	}
	return out
}

func intersects(a, b map[errorparser.ErrorCategory]bool) bool {
	for c := range a {
		if b[c] {
			return true
		}
	}
	return false
}

// detectPlateau: the last 3-4 iterations all failing, with the
// first-to-last error count non-decreasing. High severity if strictly
// increasing, medium if flat.
func detectPlateau(history []escalation.IterationRecord) (Signal, bool) {
	n := len(history)
	if n < 3 {
		return Signal{}, false
	}
	windowLen := 3
	if n >= 4 {
		windowLen = 4
	}
	tail := history[n-windowLen:]
	for _, rec := range tail {
		if rec.AllGreen {
			return Signal{}, false
		}
	}
	first, last := tail[0].ErrorCount, tail[len(tail)-1].ErrorCount
	if last < first {
		return Signal{}, false
	}
	sev := SeverityMedium
	if last > first {
		sev = SeverityHigh
	}
	return Signal{Kind: KindPlateau, Severity: sev, Detail: "error count is not decreasing across recent iterations"}, true
}

// detectCategoryChurn: unique categories across the window >= 4 (High
// at >= 6).
func detectCategoryChurn(window [][]errorparser.ErrorCategory) (Signal, bool) {
	seen := make(map[errorparser.ErrorCategory]bool)
	for _, cats := range window {
		for _, c := range cats {
			seen[c] = true
		}
	}
	if len(seen) < 4 {
		return Signal{}, false
	}
	sev := SeverityMedium
	if len(seen) >= 6 {
		sev = SeverityHigh
	}
	return Signal{Kind: KindCategoryChurn, Severity: sev, Detail: "many distinct error categories appeared recently"}, true
}

// detectHighComplexityDominance: for any category with complexity >=3,
// count/total >= 0.60 (High at >= 0.85).
func detectHighComplexityDominance(cats []errorparser.ErrorCategory) (Signal, bool) {
	if len(cats) == 0 {
		return Signal{}, false
	}
	counts := make(map[errorparser.ErrorCategory]int)
	for _, c := range cats {
		counts[c]++
	}
	total := float64(len(cats))
	for cat, count := range counts {
		if !cat.IsHighComplexity() {
			continue
		}
		ratio := float64(count) / total
		if ratio >= 0.60 {
			sev := SeverityMedium
			if ratio >= 0.85 {
				sev = SeverityHigh
			}
			return Signal{Kind: KindHighComplexityDominance, Severity: sev, Detail: cat.String() + " dominates this iteration's errors"}, true
		}
	}
	return Signal{}, false
}

// detectRapidEscalation: >= 2 escalations within <= 4 iterations.
func detectRapidEscalation(history []escalation.EscalationRecord, totalIterations int) (Signal, bool) {
	if len(history) < 2 {
		return Signal{}, false
	}
	last := history[len(history)-1]
	secondLast := history[len(history)-2]
	if last.AtIteration-secondLast.AtIteration <= 4 {
		return Signal{Kind: KindRapidEscalation, Severity: SeverityHigh, Detail: "two escalations within four iterations"}, true
	}
	return Signal{}, false
}
