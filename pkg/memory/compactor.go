package memory

import (
	"context"
	"errors"
)

// CompactionTriggerKind records what caused a compaction attempt.
type CompactionTriggerKind string

const (
	TriggerSoftLimit CompactionTriggerKind = "soft_limit"
	TriggerManual    CompactionTriggerKind = "manual"
)

// CompactionEvent reports the outcome of a successful compaction.
type CompactionEvent struct {
	Trigger           CompactionTriggerKind
	MessagesCompacted int
	TokensCompacted   int
	TokensSummary     int
	CompressionRatio  float64
}

// CompactionPolicy controls how much of the budget overage a single
// compaction pass clears.
type CompactionPolicy struct {
	Budget TokenBudget
}

// CompactionResult is either a CompactionEvent (compaction ran) or a
// no-op (nothing exceeded the soft limit).
type CompactionResult struct {
	Compacted bool
	Event     CompactionEvent
}

// MemoryCompactor summarizes the oldest contiguous prefix of a
// SwarmMemory once its running token total exceeds the configured
// soft limit.
type MemoryCompactor struct {
	policy     CompactionPolicy
	summarizer Summarizer
}

func NewMemoryCompactor(policy CompactionPolicy, summarizer Summarizer) *MemoryCompactor {
	return &MemoryCompactor{policy: policy, summarizer: summarizer}
}

type retriabler interface {
	Retriable() bool
}

// Compact runs one compaction pass against mem, if and only if its
// running token total exceeds the soft limit. It selects the oldest
// contiguous prefix whose cumulative tokens cover the overage, asks the
// Summarizer to condense it, and atomically replaces the prefix with a
// single Summary entry.
//
// If summarization fails with a retriable error, the prefix is left
// intact (the caller may retry on the next Append) and Compact returns
// a non-compacted result with no error. A non-retriable error is
// returned to the caller.
func (c *MemoryCompactor) Compact(ctx context.Context, mem *SwarmMemory, trigger CompactionTriggerKind) (CompactionResult, error) {
	snap := mem.Snapshot()
	decision := CompactionTrigger(c.policy.Budget, snap.RunningTokens)
	if !decision.OverSoft {
		return CompactionResult{}, nil
	}

	overage := snap.RunningTokens - c.policy.Budget.SoftLimit
	n, tokensCompacted := selectPrefix(snap.Entries, overage)
	if n == 0 {
		return CompactionResult{}, nil
	}

	resp, err := c.summarizer.Summarize(ctx, SummaryRequest{Entries: snap.Entries[:n]})
	if err != nil {
		var ce *CompactionError
		if errors.As(err, &ce) && ce.Retriable() {
			return CompactionResult{}, nil
		}
		var r retriabler
		if errors.As(err, &r) && r.Retriable() {
			return CompactionResult{}, nil
		}
		return CompactionResult{}, err
	}

	summaryEntry := MemoryEntry{Kind: KindSummary, Content: resp.Content, TokenEstimate: resp.Tokens, CreatedAt: now()}
	mem.replacePrefix(n, summaryEntry)

	ratio := 0.0
	if tokensCompacted > 0 {
		ratio = float64(resp.Tokens) / float64(tokensCompacted)
	}
	event := CompactionEvent{
		Trigger:           trigger,
		MessagesCompacted: n,
		TokensCompacted:   tokensCompacted,
		TokensSummary:     resp.Tokens,
		CompressionRatio:  ratio,
	}
	return CompactionResult{Compacted: true, Event: event}, nil
}

// selectPrefix finds the smallest n such that the cumulative tokens of
// entries[:n] is >= overage, counting every entry in order, including
// Summary entries left by a prior compaction. If all entries together
// fall short of overage, n is len(entries). Returns n and its
// cumulative token count.
func selectPrefix(entries []MemoryEntry, overage int) (int, int) {
	var cumulative int
	for i, e := range entries {
		cumulative += e.TokenEstimate
		if cumulative >= overage {
			return i + 1, cumulative
		}
	}
	if len(entries) > 0 {
		return len(entries), cumulative
	}
	return 0, 0
}
