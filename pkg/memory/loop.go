package memory

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPeriodicInterval is how often Run re-checks the budget even
// absent an append, catching a Compact call that was skipped due to a
// retriable summarizer failure.
const DefaultPeriodicInterval = 5 * time.Minute

// DefaultSettleDelay debounces the post-append trigger so a burst of
// rapid appends (e.g. a tool-call/tool-result pair landing together)
// collapses into a single compaction pass.
const DefaultSettleDelay = 50 * time.Millisecond

// Loop runs MemoryCompactor.Compact in the background against one
// SwarmMemory: once on a periodic timer, once (debounced) after every
// append that crosses the soft limit, and once more on shutdown so
// nothing is left uncompacted when the caller exits.
type Loop struct {
	mem              *SwarmMemory
	compactor        *MemoryCompactor
	observer         CompactionObserver
	periodicInterval time.Duration
	settleDelay      time.Duration
	triggerCh        chan struct{}
}

func NewLoop(mem *SwarmMemory, compactor *MemoryCompactor, observer CompactionObserver) *Loop {
	return &Loop{
		mem:              mem,
		compactor:        compactor,
		observer:         observer,
		periodicInterval: DefaultPeriodicInterval,
		settleDelay:      DefaultSettleDelay,
		triggerCh:        make(chan struct{}, 1),
	}
}

// NotifyAppend signals the loop that an append occurred and may have
// crossed the soft limit. Non-blocking: a pending signal is enough,
// a burst of appends collapses to one debounced pass.
func (l *Loop) NotifyAppend() {
	select {
	case l.triggerCh <- struct{}{}:
	default:
	}
}

// Run drives the compaction loop until ctx is cancelled, performing one
// final compaction pass before returning.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.periodicInterval)
	defer ticker.Stop()

	var settleC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			l.runCompaction(context.Background(), "shutdown")
			return
		case <-ticker.C:
			l.runCompaction(ctx, "timer")
		case <-l.triggerCh:
			settleC = time.After(l.settleDelay)
		case <-settleC:
			l.runCompaction(ctx, "post-append")
			settleC = nil
		}
	}
}

func (l *Loop) runCompaction(ctx context.Context, trigger string) {
	result, err := l.compactor.Compact(ctx, l.mem, TriggerSoftLimit)
	if err != nil {
		slog.Warn("memory: compaction failed", "trigger", trigger, "error", err)
		return
	}
	if !result.Compacted {
		return
	}
	slog.Info("memory: compaction complete", "trigger", trigger,
		"messages_compacted", result.Event.MessagesCompacted,
		"tokens_compacted", result.Event.TokensCompacted,
		"tokens_summary", result.Event.TokensSummary,
		"compression_ratio", result.Event.CompressionRatio,
	)
	if l.observer != nil {
		l.observer.ObserveCompaction(result.Event)
	}
}
