package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/debate"
	"github.com/google/uuid"
)

// runDebate drives a coder<->reviewer debate.Session over the diff an
// issueRun has just checkpointed: the first reviewer turn is recorded
// with the worktree path as its content and later ones with the
// coder's reply, the reviewer issues a ConsensusCheck, and the guardrail
// engine decides whether to continue, declare consensus, or stop
// without consensus. It reports true only when ConsensusProtocol
// reaches OutcomeReached.
func (r *issueRun) runDebate(ctx context.Context) (bool, error) {
	sess := debate.NewSession(uuid.New().String(), r.issue.ID, r.checkpoint, r.orc.DebateMaxRounds)
	if err := sess.Start(); err != nil {
		return false, fmt.Errorf("orchestrator: start debate: %w", err)
	}

	started := time.Now()
	var checks []debate.ConsensusCheck
	summary := r.lastReport.WorkingDir

	for {
		select {
		case <-ctx.Done():
			return false, ErrCancelled
		default:
		}

		if err := sess.Transition(debate.PhaseReviewerTurn, summary); err != nil {
			return false, fmt.Errorf("orchestrator: debate transition to reviewer: %w", err)
		}

		check := r.requestReview(ctx, sess)
		checks = append(checks, check)

		elapsed := time.Since(started)
		outcome := r.orc.Consensus.Evaluate(checks)

		if outcome == debate.OutcomeReached {
			_ = sess.Transition(debate.PhaseResolved, "consensus reached")
			if r.orc.Bus != nil {
				_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventDebateReached, map[string]any{"rounds": sess.CurrentRound})
			}
			return true, nil
		}

		verdict := r.orc.Guardrail.Evaluate(sess, checks, elapsed)
		if verdict.ShouldStop() {
			return r.stopDebate(ctx, sess, verdict)
		}

		// Not yet resolved and no guardrail fired: hand the blocking
		// issues back to the coder for another round.
		if err := sess.Transition(debate.PhaseCoderTurn, renderReview(check)); err != nil {
			return false, fmt.Errorf("orchestrator: debate transition to coder: %w", err)
		}

		reply, err := r.requestCoderReply(ctx, check)
		if err != nil {
			return false, err
		}
		summary = reply
	}
}

// stopDebate records why a debate ended without consensus and
// classifies the session's terminal phase accordingly.
func (r *issueRun) stopDebate(ctx context.Context, sess *debate.Session, verdict debate.DeadlockOutcome) (bool, error) {
	switch verdict.Kind {
	case debate.DeadlockStallDetected:
		_ = sess.Transition(debate.PhaseDeadlocked, verdict.String())
		if r.orc.Bus != nil {
			_ = publish(ctx, r.orc.Bus, r.sessionID, r.issue.ID, EventDebateStalled, map[string]string{"reason": verdict.String()})
		}
	case debate.DeadlockEscalationRequired:
		_ = sess.Transition(debate.PhaseEscalated, verdict.Reason)
	default:
		_ = sess.Transition(debate.PhaseAborted, verdict.String())
	}
	slog.Info("orchestrator: debate stopped without consensus", "issue_id", r.issue.ID, "kind", verdict.Kind)
	return false, nil
}

// requestReview asks the reviewer endpoint for one ConsensusCheck,
// parsing its response as JSON with a single retry on malformed
// output before falling back to an Abstain verdict; unparseable
// reviewer output is never silently accepted as approval.
func (r *issueRun) requestReview(ctx context.Context, sess *debate.Session) debate.ConsensusCheck {
	prompt := fmt.Sprintf(
		"Review the diff for issue %q at checkpoint %s. Respond with a JSON object: "+
			`{"verdict":"approve|request_changes|abstain","confidence":0.0-1.0,"blocking_issues":[...],"suggestions":[...],"approach_aligned":true|false}`,
		r.issue.Title, r.checkpoint)

	for attempt := 0; attempt < 2; attempt++ {
		resp, err := r.orc.Reviewer.Complete(ctx, []collab.ChatMessage{
			{Role: "system", Content: "You are a meticulous code reviewer. Reply with JSON only, no prose."},
			{Role: "user", Content: prompt},
		}, nil)
		if err != nil {
			continue
		}
		if check, ok := parseConsensusCheck(resp.Content); ok {
			return check
		}
		prompt = "Your previous reply was not valid JSON. " + prompt
	}
	return debate.ConsensusCheck{Verdict: debate.VerdictAbstain}
}

// requestCoderReply asks the coder endpoint to address a reviewer's
// blocking issues and returns its plain-text reply for the next
// reviewer round's summary.
func (r *issueRun) requestCoderReply(ctx context.Context, check debate.ConsensusCheck) (string, error) {
	resp, err := r.orc.Coder.Complete(ctx, []collab.ChatMessage{
		{Role: "system", Content: "You are addressing reviewer feedback on your prior change."},
		{Role: "user", Content: renderReview(check)},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("orchestrator: coder reply: %w", err)
	}
	return resp.Content, nil
}

func renderReview(c debate.ConsensusCheck) string {
	return fmt.Sprintf("Verdict: %s (confidence %.2f)\nBlocking issues: %v\nSuggestions: %v",
		c.Verdict, c.Confidence, c.BlockingIssues, c.Suggestions)
}

type consensusCheckWire struct {
	Verdict         string   `json:"verdict"`
	Confidence      float64  `json:"confidence"`
	BlockingIssues  []string `json:"blocking_issues"`
	Suggestions     []string `json:"suggestions"`
	ApproachAligned bool     `json:"approach_aligned"`
}

func parseConsensusCheck(raw string) (debate.ConsensusCheck, bool) {
	var wire consensusCheckWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return debate.ConsensusCheck{}, false
	}
	var verdict debate.Verdict
	switch wire.Verdict {
	case "approve":
		verdict = debate.VerdictApprove
	case "request_changes":
		verdict = debate.VerdictRequestChanges
	case "abstain":
		verdict = debate.VerdictAbstain
	default:
		return debate.ConsensusCheck{}, false
	}
	return debate.ConsensusCheck{
		Verdict:         verdict,
		Confidence:      wire.Confidence,
		BlockingIssues:  wire.BlockingIssues,
		Suggestions:     wire.Suggestions,
		ApproachAligned: wire.ApproachAligned,
	}, true
}
