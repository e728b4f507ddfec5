package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryClaim_OnlyOneWinner(t *testing.T) {
	tr := NewInMemoryIssueTracker(Issue{ID: "i1", Title: "fix the bug", Status: IssueOpen})

	wins := 0
	for i := 0; i < 2; i++ {
		ok, err := tr.TryClaim(context.Background(), "i1")
		require.NoError(t, err)
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestTryClaim_UnknownIssue(t *testing.T) {
	tr := NewInMemoryIssueTracker()
	_, err := tr.TryClaim(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListReady_OnlyReturnsOpen(t *testing.T) {
	tr := NewInMemoryIssueTracker(
		Issue{ID: "i1", Status: IssueOpen},
		Issue{ID: "i2", Status: IssueClosed},
	)
	ready, err := tr.ListReady(context.Background())
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "i1", ready[0].ID)
}

func TestNoOpKnowledgeBase_Unavailable(t *testing.T) {
	kb := NoOpKnowledgeBase{}
	assert.False(t, kb.IsAvailable(context.Background()))
	ans, err := kb.Query(context.Background(), "project_brain", "what is this?")
	assert.NoError(t, err)
	assert.Empty(t, ans)
}

func TestAlwaysFailKnowledgeBase_ReturnsError(t *testing.T) {
	kb := AlwaysFailKnowledgeBase{}
	_, err := kb.Query(context.Background(), "debugging_kb", "why does it fail?")
	assert.Error(t, err)
}
