package orchestrator

import (
	"context"
	"os"
	"testing"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/config"
	"github.com/forgeswarm/coordinator/pkg/eventbus"
)

// fakeWorktreeAdapter hands out a real temp directory per issue so the
// sandbox and verifier gate exercise real file I/O, without requiring
// an actual git repository: Commit counts its calls and returns the
// same fake sha every time.
type fakeWorktreeAdapter struct {
	t       *testing.T
	commits int
}

func (f *fakeWorktreeAdapter) Create(ctx context.Context, issueID string) (collab.Worktree, error) {
	dir, err := os.MkdirTemp("", "orchestrator-test-*")
	if err != nil {
		return collab.Worktree{}, err
	}
	return collab.Worktree{Path: dir, Branch: "issue/" + issueID}, nil
}

func (f *fakeWorktreeAdapter) Commit(ctx context.Context, path, message string) (string, error) {
	f.commits++
	return "fakecommit0", nil
}

func (f *fakeWorktreeAdapter) DiffStat(ctx context.Context, path, since string) (string, error) {
	return "", nil
}
func (f *fakeWorktreeAdapter) Rollback(ctx context.Context, path, sha string) error { return nil }
func (f *fakeWorktreeAdapter) Stash(ctx context.Context, path string) error         { return nil }
func (f *fakeWorktreeAdapter) Pop(ctx context.Context, path string) error           { return nil }

// silentLLM never requests a tool call, finishing the agent turn in a
// single round; used where the verifier pipeline is configured to run
// no gates so the first Step always resolves.
type silentLLM struct{}

func (silentLLM) Complete(ctx context.Context, messages []collab.ChatMessage, tools []collab.ToolDefinition) (collab.ChatResponse, error) {
	return collab.ChatResponse{Content: "no changes needed"}, nil
}

// approvingReviewer always approves with high confidence and no
// blocking issues, so ConsensusProtocol.Evaluate reaches consensus on
// the first round of debate.
type approvingReviewer struct{}

func (approvingReviewer) Complete(ctx context.Context, messages []collab.ChatMessage, tools []collab.ToolDefinition) (collab.ChatResponse, error) {
	return collab.ChatResponse{Content: `{"verdict":"approve","confidence":0.95,"blocking_issues":[],"suggestions":[],"approach_aligned":true}`}, nil
}

// abstainingReviewer always abstains, driving the debate straight to
// DeadlockEscalationRequired.
type abstainingReviewer struct{}

func (abstainingReviewer) Complete(ctx context.Context, messages []collab.ChatMessage, tools []collab.ToolDefinition) (collab.ChatResponse, error) {
	return collab.ChatResponse{Content: `{"verdict":"abstain","confidence":0,"blocking_issues":[],"suggestions":[],"approach_aligned":false}`}, nil
}

func noGateConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Verifier.CheckFmt = false
	cfg.Verifier.CheckLint = false
	cfg.Verifier.CheckCompile = false
	cfg.Verifier.CheckTest = false
	cfg.MinObjectiveLen = 5
	cfg.MaxIterations = 5
	// These tests exercise the coder<->reviewer debate path explicitly,
	// so require it regardless of config.DefaultConfig's own default.
	cfg.RequireAdversaryReview = true
	return cfg
}

func TestProcessIssue_ShortTitleRejectedBeforeClaim(t *testing.T) {
	tracker := collab.NewInMemoryIssueTracker(collab.Issue{ID: "i1", Title: "fix", Status: collab.IssueOpen})
	wt := &fakeWorktreeAdapter{t: t}
	orc := New(noGateConfig(), Deps{Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt, Coder: silentLLM{}, Reviewer: approvingReviewer{}})

	ok, err := orc.ProcessIssue(context.Background(), collab.Issue{ID: "i1", Title: "fix", Status: collab.IssueOpen})
	if err != ErrTitleTooShort {
		t.Fatalf("expected ErrTitleTooShort, got %v", err)
	}
	if ok {
		t.Fatal("expected failure result for a too-short title")
	}
	if wt.commits != 0 {
		t.Fatal("no worktree should have been touched")
	}

	issues, _ := tracker.ListReady(context.Background())
	if len(issues) != 1 || issues[0].Status != collab.IssueOpen {
		t.Fatal("the issue must remain unclaimed after a precondition failure")
	}
}

func TestProcessIssue_NotOpenRejectedBeforeClaim(t *testing.T) {
	tracker := collab.NewInMemoryIssueTracker(collab.Issue{ID: "i2", Title: "a sufficiently long title", Status: collab.IssueClosed})
	wt := &fakeWorktreeAdapter{t: t}
	orc := New(noGateConfig(), Deps{Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt, Coder: silentLLM{}, Reviewer: approvingReviewer{}})

	_, err := orc.ProcessIssue(context.Background(), collab.Issue{ID: "i2", Title: "a sufficiently long title", Status: collab.IssueClosed})
	if err != ErrIssueNotOpen {
		t.Fatalf("expected ErrIssueNotOpen, got %v", err)
	}
}

func TestProcessIssue_FirstPassSuccessClosesIssue(t *testing.T) {
	issue := collab.Issue{ID: "i3", Title: "a sufficiently long issue title", Status: collab.IssueOpen}
	tracker := collab.NewInMemoryIssueTracker(issue)
	wt := &fakeWorktreeAdapter{t: t}
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	orc := New(noGateConfig(), Deps{
		Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt,
		Coder: silentLLM{}, Reviewer: approvingReviewer{}, Bus: bus,
	})

	ok, err := orc.ProcessIssue(context.Background(), issue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success on the first all-green iteration")
	}

	issues, _ := tracker.ListReady(context.Background())
	if len(issues) != 0 {
		t.Fatal("the closed issue must no longer be ready")
	}

	sawClosed := false
	for {
		select {
		case ev := <-sub.C():
			if ev.Type == EventIssueClosed {
				sawClosed = true
			}
		default:
			if !sawClosed {
				t.Fatal("expected an issue_closed event on the bus")
			}
			return
		}
	}
}

func TestProcessIssue_DebateAbstainLeavesIssueOpenForHuman(t *testing.T) {
	issue := collab.Issue{ID: "i4", Title: "a sufficiently long issue title", Status: collab.IssueOpen}
	tracker := collab.NewInMemoryIssueTracker(issue)
	wt := &fakeWorktreeAdapter{t: t}
	cfg := noGateConfig()
	cfg.MaxIterations = 2

	orc := New(cfg, Deps{
		Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt,
		Coder: silentLLM{}, Reviewer: abstainingReviewer{},
	})

	ok, err := orc.ProcessIssue(context.Background(), issue)
	if ok {
		t.Fatal("an abstaining reviewer must never report success")
	}
	if err != nil {
		t.Fatalf("budget exhaustion without resolution is not itself an error, got %v", err)
	}

	issues, _ := tracker.ListReady(context.Background())
	if len(issues) != 0 {
		t.Fatal("issue should have left the open/ready set (claimed, never re-opened)")
	}
}

func TestProcessIssueDetailed_ReportsTierAndIterations(t *testing.T) {
	issue := collab.Issue{ID: "i5", Title: "a sufficiently long issue title", Status: collab.IssueOpen}
	tracker := collab.NewInMemoryIssueTracker(issue)
	wt := &fakeWorktreeAdapter{t: t}
	orc := New(noGateConfig(), Deps{
		Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt,
		Coder: silentLLM{}, Reviewer: approvingReviewer{},
	})

	result, err := orc.ProcessIssueDetailed(context.Background(), issue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !result.Closed {
		t.Fatalf("expected a closed, successful result, got %+v", result)
	}
	if result.Iterations < 1 {
		t.Fatalf("expected at least one iteration, got %d", result.Iterations)
	}
}

func TestProcessIssue_PublishesSessionClosedEvent(t *testing.T) {
	issue := collab.Issue{ID: "i7", Title: "a sufficiently long issue title", Status: collab.IssueOpen}
	tracker := collab.NewInMemoryIssueTracker(issue)
	wt := &fakeWorktreeAdapter{t: t}
	bus := eventbus.New()
	sub := bus.Subscribe()
	defer sub.Close()

	orc := New(noGateConfig(), Deps{
		Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt,
		Coder: silentLLM{}, Reviewer: approvingReviewer{}, Bus: bus,
	})

	if _, err := orc.ProcessIssue(context.Background(), issue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sawClosed := false
	for {
		select {
		case ev := <-sub.C():
			if ev.Type == EventSessionClosed {
				sawClosed = true
			}
		default:
			if !sawClosed {
				t.Fatal("expected a session_closed event on the bus regardless of outcome")
			}
			return
		}
	}
}

func TestProcessIssue_SkipsDebateWhenAdversaryReviewNotRequired(t *testing.T) {
	issue := collab.Issue{ID: "i6", Title: "a sufficiently long issue title", Status: collab.IssueOpen}
	tracker := collab.NewInMemoryIssueTracker(issue)
	wt := &fakeWorktreeAdapter{t: t}
	cfg := noGateConfig()
	cfg.RequireAdversaryReview = false

	// An abstaining reviewer would ordinarily drive the debate to
	// deadlock, but with RequireAdversaryReview off the debate never
	// runs, so the issue closes straight off the verifier's all-green.
	orc := New(cfg, Deps{
		Tracker: tracker, KB: collab.NoOpKnowledgeBase{}, Worktree: wt,
		Coder: silentLLM{}, Reviewer: abstainingReviewer{},
	})

	ok, err := orc.ProcessIssue(context.Background(), issue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected success without a gating debate")
	}
}
