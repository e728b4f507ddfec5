package statestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := SessionRecord{ID: "sess-1", IssueID: "issue-1", TaskIDs: []string{"task-1"}}
	require.NoError(t, s.PutSession(rec))

	got, err := s.GetSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, rec.IssueID, got.IssueID)
	assert.Equal(t, rec.TaskIDs, got.TaskIDs)
}

func TestGetSession_MissingReturnsErrNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetSession("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := TaskRecord{ID: "task-1", SessionID: "sess-1", Status: TaskRunning}
	require.NoError(t, s.PutTask(rec))

	got, err := s.GetTask("task-1")
	require.NoError(t, err)
	assert.Equal(t, TaskRunning, got.Status)
}

func TestListResults_OrderedByModel(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutResult(ModelResult{TaskID: "t1", ModelID: "nova-pro", Success: true}))
	require.NoError(t, s.PutResult(ModelResult{TaskID: "t1", ModelID: "forge-coder", Success: false}))
	require.NoError(t, s.PutResult(ModelResult{TaskID: "t2", ModelID: "nova-pro", Success: true}))

	results, err := s.ListResults("t1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	// forge-coder sorts before nova-pro lexicographically.
	assert.Equal(t, "forge-coder", string(results[0].ModelID))
	assert.Equal(t, "nova-pro", string(results[1].ModelID))
}

func TestVoteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := VoteRecord{TaskID: "t1", Strategy: VotingMajority, Winner: "nova-pro", Tally: map[string]int{"nova-pro": 2}}
	require.NoError(t, s.PutVote(rec))

	got, err := s.GetVote("t1")
	require.NoError(t, err)
	assert.Equal(t, VotingMajority, got.Strategy)
	assert.Equal(t, 2, got.Tally["nova-pro"])
}

func TestContextRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := SharedContext{SessionID: "sess-1", Values: map[string]string{"k": "v"}}
	require.NoError(t, s.PutContext(rec))

	got, err := s.GetContext("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Values["k"])
}

func TestAppendEvent_AssignsIDWhenMissing(t *testing.T) {
	s := openTestStore(t)
	id, err := s.AppendEvent(Event{SessionID: "sess-1", Type: "task.started", At: time.Now()})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestScanEvents_ReturnsHalfOpenRangeInOrder(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		_, err := s.AppendEvent(Event{SessionID: "sess-1", Type: "tick", At: at})
		require.NoError(t, err)
	}

	from := base.Add(1 * time.Second).UnixNano()
	to := base.Add(4 * time.Second).UnixNano()
	events, err := s.ScanEvents(from, to)
	require.NoError(t, err)

	// half-open: includes tick@1s..3s, excludes tick@4s.
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i-1].At.Before(events[i].At) || events[i-1].At.Equal(events[i].At))
	}
}

func TestScanEvents_NoUpperBoundScansEverything(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.AppendEvent(Event{SessionID: "sess-1", Type: "tick", At: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	events, err := s.ScanEvents(base.UnixNano(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestEventsAreImmutable_AppendNeverOverwrites(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id1, err := s.AppendEvent(Event{SessionID: "s", Type: "a", At: at})
	require.NoError(t, err)
	id2, err := s.AppendEvent(Event{SessionID: "s", Type: "b", At: at})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	events, err := s.ScanEvents(at.UnixNano(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
