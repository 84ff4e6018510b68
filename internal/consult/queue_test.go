package consult

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadops/leadbase-cli/internal/model"
)

// fakeRunner records consulted paths. enter/gate let a test observe and
// hold a file in flight; blockUntilCancel makes a path wait for its
// context to be cancelled.
type fakeRunner struct {
	mu               sync.Mutex
	paths            []string
	failing          map[string]bool
	blockUntilCancel map[string]bool
	enter            chan string
	gate             chan struct{}
}

func (f *fakeRunner) ConsultFile(ctx context.Context, path string) (model.ConsultSummary, error) {
	if f.enter != nil {
		f.enter <- path
	}
	if f.blockUntilCancel[path] {
		<-ctx.Done()
		return model.ConsultSummary{}, ctx.Err()
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if f.failing[path] {
		return model.ConsultSummary{}, fmt.Errorf("remote unavailable")
	}
	return model.ConsultSummary{File: path, Consulted: 1}, nil
}

func (f *fakeRunner) consulted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func waitIdle(t *testing.T, q *Queue) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = q.Snapshot()
		return !snap.Running
	}, 5*time.Second, 5*time.Millisecond)
	return snap
}

func TestQueue_EnqueueAndDedup(t *testing.T) {
	q := NewQueue(&fakeRunner{})

	item, err := q.Enqueue("a.xlsx")
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, model.QueuePending, item.Status)

	_, err = q.Enqueue("a.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already queued")

	snap := q.Snapshot()
	assert.Len(t, snap.Pending, 1)
}

func TestQueue_RemoveAndPrioritize(t *testing.T) {
	q := NewQueue(&fakeRunner{})

	a, _ := q.Enqueue("a.xlsx")
	b, _ := q.Enqueue("b.xlsx")
	c, _ := q.Enqueue("c.xlsx")

	require.NoError(t, q.Prioritize(c.ID))
	require.NoError(t, q.Remove(a.ID))
	require.Error(t, q.Remove("missing"))

	snap := q.Snapshot()
	require.Len(t, snap.Pending, 2)
	assert.Equal(t, c.ID, snap.Pending[0].ID)
	assert.Equal(t, b.ID, snap.Pending[1].ID)
}

func TestQueue_ProcessesInOrder(t *testing.T) {
	runner := &fakeRunner{}
	q := NewQueue(runner)

	q.Enqueue("a.xlsx")
	q.Enqueue("b.xlsx")
	q.Start(context.Background())

	snap := waitIdle(t, q)
	assert.Equal(t, []string{"a.xlsx", "b.xlsx"}, runner.consulted())
	require.Len(t, snap.Completed, 2)
	assert.Equal(t, model.QueueCompleted, snap.Completed[0].Status)
	assert.Empty(t, snap.Pending)
	assert.Nil(t, snap.Current)
}

func TestQueue_StartIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	q := NewQueue(runner)

	q.Enqueue("a.xlsx")
	q.Start(context.Background())
	q.Start(context.Background())

	snap := waitIdle(t, q)
	assert.Len(t, snap.Completed, 1)
	assert.Len(t, runner.consulted(), 1)
}

func TestQueue_PauseStopsBetweenFiles(t *testing.T) {
	runner := &fakeRunner{
		enter: make(chan string, 2),
		gate:  make(chan struct{}),
	}
	q := NewQueue(runner)

	q.Enqueue("a.xlsx")
	q.Enqueue("b.xlsx")
	q.Start(context.Background())

	// Pause while the first file is in flight, then let it finish.
	assert.Equal(t, "a.xlsx", <-runner.enter)
	q.Pause()
	runner.gate <- struct{}{}

	snap := waitIdle(t, q)
	assert.True(t, snap.Paused)
	assert.Len(t, snap.Completed, 1)
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "b.xlsx", snap.Pending[0].Path)

	q.Resume(context.Background())
	assert.Equal(t, "b.xlsx", <-runner.enter)
	runner.gate <- struct{}{}

	snap = waitIdle(t, q)
	assert.False(t, snap.Paused)
	assert.Len(t, snap.Completed, 2)
	assert.Empty(t, snap.Pending)
}

func TestQueue_CancelCurrent(t *testing.T) {
	runner := &fakeRunner{
		blockUntilCancel: map[string]bool{"a.xlsx": true},
	}
	q := NewQueue(runner)

	require.Error(t, q.CancelCurrent())

	q.Enqueue("a.xlsx")
	q.Enqueue("b.xlsx")
	q.Start(context.Background())

	require.Eventually(t, func() bool {
		return q.Snapshot().Current != nil
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, q.CancelCurrent())

	snap := waitIdle(t, q)
	require.Len(t, snap.Cancelled, 1)
	assert.Equal(t, "a.xlsx", snap.Cancelled[0].Path)
	assert.Equal(t, model.QueueCancelled, snap.Cancelled[0].Status)

	// The next file still ran.
	require.Len(t, snap.Completed, 1)
	assert.Equal(t, "b.xlsx", snap.Completed[0].Path)
}

func TestQueue_FailedFileIsRecorded(t *testing.T) {
	runner := &fakeRunner{failing: map[string]bool{"bad.xlsx": true}}
	q := NewQueue(runner)

	q.Enqueue("bad.xlsx")
	q.Enqueue("good.xlsx")
	q.Start(context.Background())

	snap := waitIdle(t, q)
	require.Len(t, snap.Cancelled, 1)
	assert.Equal(t, "bad.xlsx", snap.Cancelled[0].Path)
	assert.Contains(t, snap.Cancelled[0].Error, "remote unavailable")
	require.Len(t, snap.Completed, 1)
	assert.Equal(t, "good.xlsx", snap.Completed[0].Path)
}

func TestQueue_EnqueueRejectsInFlightPath(t *testing.T) {
	runner := &fakeRunner{
		enter: make(chan string, 1),
		gate:  make(chan struct{}),
	}
	q := NewQueue(runner)

	q.Enqueue("a.xlsx")
	q.Start(context.Background())
	<-runner.enter

	_, err := q.Enqueue("a.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "being processed")

	runner.gate <- struct{}{}
	waitIdle(t, q)
}

func TestQueue_Reset(t *testing.T) {
	runner := &fakeRunner{}
	q := NewQueue(runner)

	q.Enqueue("a.xlsx")
	q.Start(context.Background())
	waitIdle(t, q)

	q.Enqueue("b.xlsx")
	q.Reset()

	snap := q.Snapshot()
	assert.Empty(t, snap.Pending)
	assert.Empty(t, snap.Completed)
	assert.Empty(t, snap.Cancelled)
}
