package collab

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryIssueTracker is a test/demo IssueTracker backed by a map. Its
// TryClaim holds a mutex across the full check-then-set, giving the
// same atomicity guarantee a real tracker's compare-and-swap would.
type InMemoryIssueTracker struct {
	mu     sync.Mutex
	issues map[string]Issue
}

// NewInMemoryIssueTracker seeds a tracker with issues.
func NewInMemoryIssueTracker(issues ...Issue) *InMemoryIssueTracker {
	t := &InMemoryIssueTracker{issues: make(map[string]Issue)}
	for _, iss := range issues {
		t.issues[iss.ID] = iss
	}
	return t
}

func (t *InMemoryIssueTracker) ListReady(ctx context.Context) ([]Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Issue
	for _, iss := range t.issues {
		if iss.Status == IssueOpen {
			out = append(out, iss)
		}
	}
	return out, nil
}

func (t *InMemoryIssueTracker) UpdateStatus(ctx context.Context, id string, status IssueStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[id]
	if !ok {
		return fmt.Errorf("collab: unknown issue %s", id)
	}
	iss.Status = status
	t.issues[id] = iss
	return nil
}

func (t *InMemoryIssueTracker) Close(ctx context.Context, id string, reason string) error {
	return t.UpdateStatus(ctx, id, IssueClosed)
}

func (t *InMemoryIssueTracker) TryClaim(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	iss, ok := t.issues[id]
	if !ok {
		return false, fmt.Errorf("collab: unknown issue %s", id)
	}
	if iss.Status != IssueOpen {
		return false, nil
	}
	iss.Status = IssueInProgress
	t.issues[id] = iss
	return true, nil
}

// NoOpKnowledgeBase always reports unavailable with an empty answer,
// exercising the core's graceful-degradation path without a real KB.
type NoOpKnowledgeBase struct{}

func (NoOpKnowledgeBase) Query(ctx context.Context, role, question string) (string, error) {
	return "", nil
}

func (NoOpKnowledgeBase) IsAvailable(ctx context.Context) bool { return false }

// AlwaysFailKnowledgeBase simulates a KB that is configured but
// unreachable, for testing degrade-to-advisory-string behavior.
type AlwaysFailKnowledgeBase struct{}

func (AlwaysFailKnowledgeBase) Query(ctx context.Context, role, question string) (string, error) {
	return "", fmt.Errorf("collab: simulated knowledge base connection failure")
}

func (AlwaysFailKnowledgeBase) IsAvailable(ctx context.Context) bool { return false }

// NoOpLLMEndpoint answers every turn with "no changes needed" and no
// tool calls — the reference LLMEndpoint `cmd/orchestratord` wires by
// default when no real model endpoint is configured. Real inference
// endpoints are an integration point for the embedding application,
// not something this module backs with a live API call.
type NoOpLLMEndpoint struct{}

func (NoOpLLMEndpoint) Complete(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ChatResponse, error) {
	return ChatResponse{Content: "no changes needed"}, nil
}
