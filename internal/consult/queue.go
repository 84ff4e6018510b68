package consult

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadops/leadbase-cli/internal/model"
)

// Runner consults a single spreadsheet. Satisfied by *Engine.
type Runner interface {
	ConsultFile(ctx context.Context, path string) (model.ConsultSummary, error)
}

// Queue feeds spreadsheets to a Runner one at a time. A single consumer
// goroutine drains pending items; Start is idempotent while the consumer
// is running, and the consumer exits when the queue is empty or paused.
type Queue struct {
	runner Runner

	mu            sync.Mutex
	pending       []*model.QueueItem
	completed     []*model.QueueItem
	cancelled     []*model.QueueItem
	current       *model.QueueItem
	running       bool
	paused        bool
	cancelCurrent context.CancelFunc
}

// Snapshot is a point-in-time copy of the queue state.
type Snapshot struct {
	Running   bool              `json:"running"`
	Paused    bool              `json:"paused"`
	Current   *model.QueueItem  `json:"current,omitempty"`
	Pending   []model.QueueItem `json:"pending"`
	Completed []model.QueueItem `json:"completed"`
	Cancelled []model.QueueItem `json:"cancelled"`
}

// NewQueue builds a queue around the given runner.
func NewQueue(runner Runner) *Queue {
	return &Queue{runner: runner}
}

// Enqueue adds a file to the queue. A path already pending or in flight
// is rejected.
func (q *Queue) Enqueue(path string) (model.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.Path == path {
		return model.QueueItem{}, eris.Errorf("queue: %s is being processed", path)
	}
	for _, it := range q.pending {
		if it.Path == path {
			return model.QueueItem{}, eris.Errorf("queue: %s is already queued", path)
		}
	}

	item := &model.QueueItem{
		ID:         uuid.NewString(),
		Path:       path,
		Status:     model.QueuePending,
		EnqueuedAt: time.Now(),
	}
	q.pending = append(q.pending, item)
	zap.L().Info("queue: file enqueued", zap.String("id", item.ID), zap.String("path", path))
	return *item, nil
}

// Remove drops a pending item. In-flight and finished items cannot be
// removed.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.pending {
		if it.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return nil
		}
	}
	return eris.Errorf("queue: no pending item %s", id)
}

// Prioritize moves a pending item to the head of the queue.
func (q *Queue) Prioritize(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.pending {
		if it.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			q.pending = append([]*model.QueueItem{it}, q.pending...)
			return nil
		}
	}
	return eris.Errorf("queue: no pending item %s", id)
}

// Start launches the consumer goroutine. A no-op when the consumer is
// already running. Resumes a paused queue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.paused = false
	if q.running {
		return
	}
	q.running = true
	go q.run(ctx)
}

// Pause stops the consumer after the current file finishes. Pending items
// are kept.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

// Resume restarts a paused queue.
func (q *Queue) Resume(ctx context.Context) {
	q.Start(ctx)
}

// CancelCurrent aborts the file being processed. Cancellation is
// cooperative; the engine observes it between batches.
func (q *Queue) CancelCurrent() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil || q.cancelCurrent == nil {
		return eris.New("queue: nothing is being processed")
	}
	q.cancelCurrent()
	return nil
}

// Reset drops every pending, completed, and cancelled item. The current
// item, if any, is left to finish.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.completed = nil
	q.cancelled = nil
}

// Snapshot returns a copy of the queue state for the HTTP surface.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := Snapshot{
		Running:   q.running,
		Paused:    q.paused,
		Pending:   copyItems(q.pending),
		Completed: copyItems(q.completed),
		Cancelled: copyItems(q.cancelled),
	}
	if q.current != nil {
		cur := *q.current
		snap.Current = &cur
	}
	return snap
}

func copyItems(items []*model.QueueItem) []model.QueueItem {
	out := make([]model.QueueItem, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}

// run is the single consumer loop. It pops pending items until the queue
// drains, the queue is paused, or ctx is cancelled.
func (q *Queue) run(ctx context.Context) {
	for {
		q.mu.Lock()
		if q.paused || ctx.Err() != nil || len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending = q.pending[1:]
		item.Status = model.QueueProcessing
		item.StartedAt = time.Now()
		q.current = item

		itemCtx, cancel := context.WithCancel(ctx)
		q.cancelCurrent = cancel
		q.mu.Unlock()

		summary, err := q.runner.ConsultFile(itemCtx, item.Path)
		cancelledByUser := itemCtx.Err() != nil && ctx.Err() == nil
		cancel()

		q.mu.Lock()
		item.FinishedAt = time.Now()
		q.current = nil
		q.cancelCurrent = nil
		switch {
		case cancelledByUser:
			item.Status = model.QueueCancelled
			q.cancelled = append(q.cancelled, item)
			zap.L().Info("queue: file cancelled", zap.String("path", item.Path))
		case err != nil:
			item.Status = model.QueueCancelled
			item.Error = err.Error()
			q.cancelled = append(q.cancelled, item)
			zap.L().Error("queue: file failed", zap.String("path", item.Path), zap.Error(err))
		default:
			item.Status = model.QueueCompleted
			q.completed = append(q.completed, item)
			zap.L().Info("queue: file completed",
				zap.String("path", item.Path),
				zap.Int("consulted", summary.Consulted),
				zap.Int("abandoned", summary.Abandoned))
		}
		q.mu.Unlock()
	}
}
