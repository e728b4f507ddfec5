package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/friction"
	"github.com/forgeswarm/coordinator/pkg/memory"
	"github.com/forgeswarm/coordinator/pkg/modrunner"
	"github.com/forgeswarm/coordinator/pkg/router"
	"github.com/forgeswarm/coordinator/pkg/sandbox"
	"github.com/forgeswarm/coordinator/pkg/verifier"
	"github.com/forgeswarm/coordinator/pkg/workpacket"
	"github.com/google/uuid"
)

// issueRun is the modrunner.ModeRunner for one ProcessIssue call: it
// owns everything scoped to a single issue (its EscalationState,
// worktree handle, and tool sandbox) so AgentOrchestrator itself stays
// stateless across concurrent issues.
type issueRun struct {
	orc       *AgentOrchestrator
	issue     collab.Issue
	sessionID string

	worktree  collab.Worktree
	sandbox   *sandbox.ToolSandbox
	generator *workpacket.Generator
	state     *escalation.State
	mem       *memory.SwarmMemory

	lastReport *verifier.Report
	checkpoint string

	closed bool
	result ProcessResult
}

// ProcessResult is the richer operational result ProcessIssueDetailed
// returns alongside ProcessIssue's plain bool: what a CLI progress
// line or status endpoint reports about the run.
type ProcessResult struct {
	IssueID  string
	Success  bool
	Tier     escalation.SwarmTier
	Stuck    bool
	Elapsed  time.Duration
	Closed   bool
	Iterations int
}

// ProcessIssue drives one issue end to end: claim -> worktree ->
// loop -> finish. Preconditions (title length, open status) are
// checked before anything is claimed or created.
func (o *AgentOrchestrator) ProcessIssue(ctx context.Context, issue collab.Issue) (bool, error) {
	result, err := o.ProcessIssueDetailed(ctx, issue)
	return result.Success, err
}

// ProcessIssueDetailed is ProcessIssue plus the operational summary a
// caller (CLI, HTTP control surface) needs to report progress.
func (o *AgentOrchestrator) ProcessIssueDetailed(ctx context.Context, issue collab.Issue) (ProcessResult, error) {
	run := &issueRun{orc: o, issue: issue, sessionID: uuid.New().String()}
	start := o.clock()

	sess := modrunner.NewSession(run, modrunner.RunConfig{MaxIterations: o.MaxIterations})
	if err := sess.Start(ctx); err != nil {
		return ProcessResult{IssueID: issue.ID}, err
	}
	if err := sess.Wait(ctx); err != nil {
		return ProcessResult{IssueID: issue.ID}, err
	}

	raw, runErr := sess.Result()
	result, _ := raw.(ProcessResult)
	result.IssueID = issue.ID
	result.Elapsed = o.clock().Sub(start)
	result.Iterations = sess.Iterations()
	if run.state != nil {
		result.Tier = run.state.CurrentTier
		result.Stuck = run.state.Stuck
	}

	if runErr != nil {
		switch {
		case errors.Is(runErr, modrunner.ErrCancelled):
			return result, ErrCancelled
		case errors.Is(runErr, modrunner.ErrIterationBudgetExceeded):
			// Budget exhaustion without ever resolving is itself a
			// "flag for human" outcome; Finish already updated tracker
			// status for the Stuck case, but a budget exceeded without
			// Stuck being set (e.g. Human tier's own iteration ran out)
			// still means "not successful", not an error.
			return result, nil
		case errors.Is(runErr, ErrTitleTooShort), errors.Is(runErr, ErrIssueNotOpen):
			return result, runErr
		default:
			return result, runErr
		}
	}
	return result, nil
}

func (o *AgentOrchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

// Prepare validates preconditions, claims the issue, creates its
// worktree, and initializes escalation state. No claim or worktree is
// created if the precondition check fails.
func (r *issueRun) Prepare(ctx context.Context) error {
	if len(r.issue.Title) < r.orc.MinObjectiveLen {
		return ErrTitleTooShort
	}
	if r.issue.Status != collab.IssueOpen {
		return ErrIssueNotOpen
	}

	claimed, err := r.orc.Tracker.TryClaim(ctx, r.issue.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: claim %s: %w", r.issue.ID, err)
	}
	if !claimed {
		return ErrClaimLost
	}

	wt, err := r.orc.Worktree.Create(ctx, r.issue.ID)
	if err != nil {
		return fmt.Errorf("orchestrator: create worktree for %s: %w", r.issue.ID, err)
	}
	r.worktree = wt
	r.sandbox = sandbox.New(wt.Path, r.orc.KB)
	r.generator = workpacket.NewGenerator(r.sandbox)
	r.state = escalation.NewState(r.issue.ID)
	r.mem = memory.NewSwarmMemory(r.orc.MemBudget, nil)
	r.mem.Append(memory.KindSystem, r.issue.Title)

	if r.orc.Bus != nil {
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventSessionCreated, map[string]string{"issue_id": r.issue.ID})
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventTaskCreated, map[string]string{"branch": wt.Branch})
	}

	slog.Info("orchestrator: claimed issue", "issue_id", r.issue.ID, "branch", wt.Branch)
	return nil
}

// Step runs exactly one edit -> verify -> decide iteration and reports
// done when the task has either closed or been flagged for a human.
func (r *issueRun) Step(ctx context.Context) (bool, error) {
	packet := r.generator.Generate(workpacket.Input{
		BeadID:     r.issue.ID,
		Branch:     r.worktree.Branch,
		Checkpoint: r.checkpoint,
		Objective:  r.issue.Title,
		Gates:      []string{"format", "lint", "compile", "test"},
		State:      r.state,
		Report:     r.lastReport,
	})

	maxTurns := turnsForTier(r.state.CurrentTier, r.orc.AgentTurns)
	turnResult, err := runAgentTurn(ctx, r.orc.Coder, r.sandbox, packet, maxTurns)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true, ErrCancelled
		}
		return false, err
	}

	r.mem.Append(memory.KindAssistant, turnResult.FinalMessage)

	report, err := r.orc.Verifier.RunPipeline(ctx, r.worktree.Path)
	if err != nil {
		return false, fmt.Errorf("orchestrator: verifier pipeline: %w", err)
	}
	r.lastReport = &report
	r.mem.Append(memory.KindToolResult, fmt.Sprintf("gates %d/%d passed, all_green=%t", report.GatesPassed, report.GatesTotal, report.AllGreen))
	r.compactIfNeeded(ctx)

	decision := r.orc.Engine.Decide(r.state, report, turnResult.ChangedFiles)

	if r.orc.Bus != nil {
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventIterationDecided, map[string]any{
			"iteration":  r.state.TotalIterations,
			"all_green":  report.AllGreen,
			"action":     decision.Action.String(),
			"tier":       decision.TargetTier.String(),
			"resolved":   decision.Resolved,
			"stuck":      decision.Stuck,
		})
	}

	r.publishFrictionSignals(ctx, report)

	switch {
	case decision.Resolved:
		return r.onResolved(ctx)
	case decision.Stuck:
		if r.orc.Bus != nil {
			_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventFlaggedForHuman, map[string]string{"reason": decision.Reason.String()})
		}
		return true, nil
	case decision.Escalated:
		r.logEscalation(report, decision)
		return false, nil
	default:
		return false, nil
	}
}

// compactIfNeeded runs one MemoryCompactor pass when this run's
// transcript has crossed the configured soft token limit, keeping the
// per-issue SwarmMemory bounded across long-running escalations. A
// retriable summarization failure is logged and left for the next
// iteration to retry, matching MemoryCompactor.Compact's own contract.
func (r *issueRun) compactIfNeeded(ctx context.Context) {
	if r.orc.Compactor == nil {
		return
	}
	result, err := r.orc.Compactor.Compact(ctx, r.mem, memory.TriggerSoftLimit)
	if err != nil {
		slog.Warn("orchestrator: memory compaction failed", "issue_id", r.issue.ID, "error", err)
		return
	}
	if result.Compacted && r.orc.Bus != nil {
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventMemoryCompacted, map[string]any{
			"messages_compacted": result.Event.MessagesCompacted,
			"tokens_compacted":   result.Event.TokensCompacted,
			"tokens_summary":     result.Event.TokensSummary,
		})
	}
}

// publishFrictionSignals runs the stateless friction/delight detectors
// over the latest report and emits any signal that fires as an
// observability event. Neither detector gates the engine's own
// resolved/stuck/escalated decision above; they only annotate it.
func (r *issueRun) publishFrictionSignals(ctx context.Context, report verifier.Report) {
	if r.orc.Bus == nil {
		return
	}
	for _, s := range friction.Detect(r.state, report) {
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventFrictionDetected, map[string]string{
			"kind":     s.Kind.String(),
			"severity": s.Severity.String(),
			"detail":   s.Detail,
		})
	}
	budget := r.state.TierBudgets[r.state.CurrentTier]
	for _, s := range friction.DetectDelight(r.state, report, budget) {
		_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventDelightDetected, map[string]string{
			"kind":     s.Kind.String(),
			"severity": s.Severity.String(),
			"detail":   s.Detail,
		})
	}
}

// onResolved commits a checkpoint, then either runs the reviewer
// debate (RequireAdversaryReview true, the default) or closes directly
// on the verifier's all-green (false). Reports done only once the
// debate either reaches consensus (success) or can no longer usefully
// continue (stall/escalation).
func (r *issueRun) onResolved(ctx context.Context) (bool, error) {
	sha, err := r.orc.Worktree.Commit(ctx, r.worktree.Path, fmt.Sprintf("checkpoint: iteration %d all-green", r.state.TotalIterations))
	if err == nil {
		r.checkpoint = sha
	}

	if !r.orc.RequireAdversaryReview {
		r.closed = true
		return true, nil
	}

	reached, err := r.runDebate(ctx)
	if err != nil {
		return false, err
	}
	if reached {
		r.closed = true
		return true, nil
	}
	// Stalled or needing escalation: keep iterating at the (possibly
	// already-escalated) current tier rather than declaring success.
	return false, nil
}

// logEscalation asks the router for the tier's preferred model ladder
// composed with the circuit breaker, purely as an operational signal:
// the core treats the LLM endpoint as opaque and does not itself
// switch backends.
func (r *issueRun) logEscalation(report verifier.Report, decision escalation.Decision) {
	dominant, count := dominantCategory(report)
	if count == 0 {
		return
	}
	model, sel, err := router.SelectAvailable(dominant, len(r.state.EscalationHistory), decision.TargetTier, r.orc.Breaker)
	if err != nil {
		slog.Warn("orchestrator: no available model for escalated tier", "issue_id", r.issue.ID, "tier", decision.TargetTier, "error", err)
		return
	}
	slog.Info("orchestrator: escalated", "issue_id", r.issue.ID, "tier", decision.TargetTier, "model", model, "reason", sel.Reason)
}

func dominantCategory(report verifier.Report) (category errorparser.ErrorCategory, count int) {
	var best errorparser.ErrorCategory
	var bestCount int
	for cat, n := range report.ErrorCategories {
		if n > bestCount {
			best = cat
			bestCount = n
		}
	}
	return best, bestCount
}

// Finish closes the issue or flags it for a human, and always returns
// a ProcessResult (never a bare bool) so ProcessIssueDetailed can
// report the richer operational summary.
func (r *issueRun) Finish(ctx context.Context) (any, error) {
	result := ProcessResult{IssueID: r.issue.ID, Closed: r.closed, Success: r.closed}

	if r.state == nil {
		// Prepare failed before state was initialized; nothing to finish.
		return result, nil
	}
	if r.orc.Bus != nil {
		defer func() {
			_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventSessionClosed, map[string]any{
				"closed": r.closed,
				"stuck":  r.state.Stuck,
				"tier":   r.state.CurrentTier.String(),
			})
		}()
	}
	result.Tier = r.state.CurrentTier
	result.Stuck = r.state.Stuck

	if r.closed {
		if err := r.orc.Tracker.Close(ctx, r.issue.ID, "verifier all-green; reviewer consensus reached"); err != nil {
			return result, fmt.Errorf("orchestrator: close %s: %w", r.issue.ID, err)
		}
		if r.orc.Bus != nil {
			_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventIssueClosed, map[string]string{"checkpoint": r.checkpoint})
		}
		slog.Info("orchestrator: issue closed", "issue_id", r.issue.ID)
		return result, nil
	}

	if r.state.Stuck {
		if err := r.orc.Tracker.UpdateStatus(ctx, r.issue.ID, collab.IssueNeedsHuman); err != nil {
			return result, fmt.Errorf("orchestrator: flag %s for human: %w", r.issue.ID, err)
		}
		slog.Info("orchestrator: issue flagged for human", "issue_id", r.issue.ID, "tier", r.state.CurrentTier)
	}
	return result, nil
}
