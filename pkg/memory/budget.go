package memory

import "strings"

// TokenEstimator estimates how many tokens content will consume.
// Pluggable so a real tokenizer can replace the default heuristic.
type TokenEstimator interface {
	Estimate(content string) int
}

// WordCountEstimator is the default TokenEstimator: whitespace-delimited
// word count. Crude but cheap and dependency-free.
type WordCountEstimator struct{}

func (WordCountEstimator) Estimate(content string) int {
	return len(strings.Fields(content))
}

// TokenBudget bounds how much memory content may accumulate before
// compaction is triggered and before it is considered an emergency.
type TokenBudget struct {
	SoftLimit int
	HardLimit int
}

// BudgetDecision reports whether running tokens has crossed SoftLimit.
type BudgetDecision struct {
	RunningTokens int
	OverSoft      bool
	OverHard      bool
}

// CompactionTrigger evaluates a BudgetDecision against a running total.
func CompactionTrigger(budget TokenBudget, runningTokens int) BudgetDecision {
	return BudgetDecision{
		RunningTokens: runningTokens,
		OverSoft:      runningTokens > budget.SoftLimit,
		OverHard:      budget.HardLimit > 0 && runningTokens > budget.HardLimit,
	}
}
