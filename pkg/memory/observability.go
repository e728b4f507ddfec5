package memory

import "sync"

// CompactionObserver receives a callback after every successful
// compaction. Used to wire compaction into the event bus or metrics
// without coupling MemoryCompactor to either.
type CompactionObserver interface {
	ObserveCompaction(CompactionEvent)
}

// CompactionStats accumulates running totals across every compaction
// observed, for simple in-process reporting.
type CompactionStats struct {
	mu                sync.Mutex
	Compactions       int
	MessagesCompacted int
	TokensCompacted   int
	TokensSummary     int
}

func (s *CompactionStats) ObserveCompaction(ev CompactionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Compactions++
	s.MessagesCompacted += ev.MessagesCompacted
	s.TokensCompacted += ev.TokensCompacted
	s.TokensSummary += ev.TokensSummary
}

// Snapshot returns a copy of the accumulated stats.
func (s *CompactionStats) Snapshot() CompactionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CompactionStats{
		Compactions:       s.Compactions,
		MessagesCompacted: s.MessagesCompacted,
		TokensCompacted:   s.TokensCompacted,
		TokensSummary:     s.TokensSummary,
	}
}

// CompactionMetrics is the minimal counter set an external metrics
// sink (Prometheus or otherwise) would scrape; observers translate a
// CompactionStats snapshot into this shape as needed.
type CompactionMetrics struct {
	TotalCompactions       int
	TotalMessagesCompacted int
	TotalTokensReclaimed   int
}

func (s *CompactionStats) Metrics() CompactionMetrics {
	snap := s.Snapshot()
	return CompactionMetrics{
		TotalCompactions:       snap.Compactions,
		TotalMessagesCompacted: snap.MessagesCompacted,
		TotalTokensReclaimed:   snap.TokensCompacted - snap.TokensSummary,
	}
}
