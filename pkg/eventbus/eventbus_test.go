package eventbus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgeswarm/coordinator/pkg/statestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Close()

	err := b.Publish(context.Background(), statestore.Event{Type: "session_created", At: time.Now()})
	require.NoError(t, err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, "session_created", ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	assert.Equal(t, 2, b.SubscriberCount())

	require.NoError(t, b.Publish(context.Background(), statestore.Event{Type: "model_loaded", At: time.Now()}))

	e1 := <-sub1.C()
	e2 := <-sub2.C()
	assert.Equal(t, e1.Type, e2.Type)
}

func TestPublish_NoSubscribersIsNotAnError(t *testing.T) {
	b := New()
	err := b.Publish(context.Background(), statestore.Event{Type: "x", At: time.Now()})
	assert.NoError(t, err)
}

func TestEventFilter_Matches(t *testing.T) {
	filter := NewEventFilter().WithSession("session-1").WithTypes("task_created", "task_completed")

	matching := statestore.Event{SessionID: "session-1", Type: "task_created"}
	wrongSession := statestore.Event{SessionID: "session-2", Type: "task_created"}
	wrongType := statestore.Event{SessionID: "session-1", Type: "model_loaded"}

	assert.True(t, filter.Matches(matching))
	assert.False(t, filter.Matches(wrongSession))
	assert.False(t, filter.Matches(wrongType))
}

func TestSubscribeFiltered_DropsNonMatchingEvents(t *testing.T) {
	b := New()
	filtered := b.SubscribeFiltered(NewEventFilter().WithTask("target-task"))
	defer filtered.Close()

	go func() {
		_ = b.Publish(context.Background(), statestore.Event{TaskID: "other-task", Type: "task_created", At: time.Now()})
		_ = b.Publish(context.Background(), statestore.Event{TaskID: "target-task", Type: "result_submitted", At: time.Now()})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := filtered.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, "target-task", ev.TaskID)
}

func TestPublish_PersistsBeforeBroadcast(t *testing.T) {
	dir := t.TempDir()
	store, err := statestore.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer store.Close()

	b := WithPersistence(store)
	sub := b.Subscribe()
	defer sub.Close()

	require.NoError(t, b.Publish(context.Background(), statestore.Event{SessionID: "s1", Type: "task_created", At: time.Now()}))

	<-sub.C()

	events, err := store.ScanEvents(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "task_created", events[0].Type)
}

func TestSubscriberBufferFull_DropsAndCountsInsteadOfBlocking(t *testing.T) {
	b := New()
	b.capacity = 1
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		_ = b.Publish(context.Background(), statestore.Event{Type: "tick", At: time.Now()})
	}

	assert.Greater(t, sub.Dropped(), int64(0))
}

func TestReplayBuilder_FeedsEventsInOrder(t *testing.T) {
	dir := t.TempDir()
	store, err := statestore.Open(filepath.Join(dir, "db"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := store.AppendEvent(statestore.Event{Type: "tick", At: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	var seen []string
	err = NewReplayBuilder(NewEventHistory(store)).Replay(func(ev statestore.Event) error {
		seen = append(seen, ev.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}
