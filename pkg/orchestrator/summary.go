package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// Summary is the operational view of one ProcessIssueDetailed call,
// the "what is this session doing right now" surface an HTTP status
// endpoint or CLI progress line wants.
type Summary struct {
	IssueID       string
	Status        string
	Tier          string
	Iterations    int
	ElapsedHuman  string
	Closed        bool
	Stuck         bool
}

// Summary renders result as the compact operational view a status
// endpoint reports.
func (r ProcessResult) Summary() Summary {
	status := "running"
	switch {
	case r.Closed:
		status = "closed"
	case r.Stuck:
		status = "needs_human"
	}
	return Summary{
		IssueID:      r.IssueID,
		Status:       status,
		Tier:         r.Tier.String(),
		Iterations:   r.Iterations,
		ElapsedHuman: elapsedHuman(r.Elapsed),
		Closed:       r.Closed,
		Stuck:        r.Stuck,
	}
}

// elapsedHuman renders a duration the way a human reads a progress
// line: seconds below a minute, otherwise minutes and seconds.
func elapsedHuman(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d / time.Minute)
	secs := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm%ds", mins, secs)
}

// Rollback reverts path to sha via the orchestrator's worktree
// adapter, as a first-class orchestrator operation rather than one
// reachable only from inside an agent's tool-calling loop.
func (o *AgentOrchestrator) Rollback(ctx context.Context, path, sha string) error {
	return o.Worktree.Rollback(ctx, path, sha)
}
