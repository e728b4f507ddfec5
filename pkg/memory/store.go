package memory

import (
	"sync"
	"time"
)

// MemoryEntryKind classifies an entry in a SwarmMemory sequence.
type MemoryEntryKind string

const (
	KindSystem     MemoryEntryKind = "system"
	KindUser       MemoryEntryKind = "user"
	KindAssistant  MemoryEntryKind = "assistant"
	KindToolCall   MemoryEntryKind = "tool_call"
	KindToolResult MemoryEntryKind = "tool_result"
	KindSummary    MemoryEntryKind = "summary"
)

// MemoryEntry is one item in a SwarmMemory append-only sequence.
type MemoryEntry struct {
	Kind          MemoryEntryKind
	Content       string
	TokenEstimate int
	CreatedAt     time.Time
}

// MemorySnapshot is a point-in-time copy of a SwarmMemory's entries,
// safe for the caller to read without holding the memory's lock.
type MemorySnapshot struct {
	Entries       []MemoryEntry
	RunningTokens int
}

// SwarmMemory is an append-only, token-budget-aware conversation log.
// Append is the only mutation besides compaction's prefix replacement;
// entries are never edited or removed individually.
type SwarmMemory struct {
	mu        sync.Mutex
	entries   []MemoryEntry
	estimator TokenEstimator
	budget    TokenBudget
	total     int
}

// NewSwarmMemory constructs a SwarmMemory with the given budget. A nil
// estimator defaults to WordCountEstimator.
func NewSwarmMemory(budget TokenBudget, estimator TokenEstimator) *SwarmMemory {
	if estimator == nil {
		estimator = WordCountEstimator{}
	}
	return &SwarmMemory{estimator: estimator, budget: budget}
}

// Append adds an entry, estimating its token cost, and reports whether
// the running total now exceeds the soft limit (i.e. compaction should
// be triggered by the caller).
func (m *SwarmMemory) Append(kind MemoryEntryKind, content string) BudgetDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	tokens := m.estimator.Estimate(content)
	m.entries = append(m.entries, MemoryEntry{
		Kind:          kind,
		Content:       content,
		TokenEstimate: tokens,
		CreatedAt:     now(),
	})
	m.total += tokens
	return CompactionTrigger(m.budget, m.total)
}

// Snapshot returns a defensive copy of the current entries and running
// token total.
func (m *SwarmMemory) Snapshot() MemorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MemoryEntry, len(m.entries))
	copy(out, m.entries)
	return MemorySnapshot{Entries: out, RunningTokens: m.total}
}

// replacePrefix atomically swaps entries[:n] for a single summary entry.
// Called only by MemoryCompactor, which owns the selection logic.
func (m *SwarmMemory) replacePrefix(n int, summary MemoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var replacedTokens int
	for _, e := range m.entries[:n] {
		replacedTokens += e.TokenEstimate
	}

	rest := make([]MemoryEntry, 0, len(m.entries)-n+1)
	rest = append(rest, summary)
	rest = append(rest, m.entries[n:]...)
	m.entries = rest
	m.total = m.total - replacedTokens + summary.TokenEstimate
}

// now is overridable in tests that need deterministic timestamps; the
// package itself never calls time.Now() directly elsewhere.
var now = time.Now
