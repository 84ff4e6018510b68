// Package history keeps an in-memory mirror of the persisted identifier
// history so cleaning runs get O(1) membership checks over millions of
// identifiers.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Persister is the slice of the store the cache needs.
type Persister interface {
	LoadHistory(ctx context.Context) ([]string, error)
	AddHistoryBatch(ctx context.Context, ids []string, batchTag string) (int64, error)
	DeleteHistoryBatch(ctx context.Context, batchTag string) ([]string, error)
}

// Cache mirrors the history_ids table in memory. The mirror is only
// mutated after the store confirms the write, so it never runs ahead of
// the database.
type Cache struct {
	store Persister

	mu  sync.RWMutex
	ids map[string]struct{}
}

var (
	tagMu   sync.Mutex
	lastTag int64
)

// nextBatchTag returns a unix-millisecond batch tag, bumped forward when
// two batches land in the same millisecond.
func nextBatchTag() string {
	tagMu.Lock()
	defer tagMu.Unlock()
	now := time.Now().UnixMilli()
	if now <= lastTag {
		now = lastTag + 1
	}
	lastTag = now
	return fmt.Sprintf("batch-%d", now)
}

// New creates an empty cache backed by the given store.
func New(store Persister) *Cache {
	return &Cache{
		store: store,
		ids:   make(map[string]struct{}),
	}
}

// Load replaces the mirror with the persisted history. A load failure is
// not fatal: the cache stays empty and cleaning degrades to dedup-free
// behavior, which is logged loudly.
func (c *Cache) Load(ctx context.Context) error {
	ids, err := c.store.LoadHistory(ctx)
	if err != nil {
		zap.L().Warn("history: load failed, starting with empty set", zap.Error(err))
		return eris.Wrap(err, "history: load")
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	c.mu.Lock()
	c.ids = set
	c.mu.Unlock()

	zap.L().Info("history: loaded", zap.Int("identifiers", len(set)))
	return nil
}

// Contains reports whether the identifier is already in the history.
func (c *Cache) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Size returns the number of identifiers in the mirror.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// AddBatch persists the identifiers under a fresh batch tag and then adds
// them to the mirror. Returns the tag and the number of identifiers that
// were actually new to the store.
func (c *Cache) AddBatch(ctx context.Context, ids []string) (string, int64, error) {
	if len(ids) == 0 {
		return "", 0, nil
	}

	tag := nextBatchTag()
	inserted, err := c.store.AddHistoryBatch(ctx, ids, tag)
	if err != nil {
		return "", 0, eris.Wrapf(err, "history: add batch %s", tag)
	}

	c.mu.Lock()
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	c.mu.Unlock()

	zap.L().Info("history: batch saved",
		zap.String("batch_tag", tag),
		zap.Int("identifiers", len(ids)),
		zap.Int64("inserted", inserted))
	return tag, inserted, nil
}

// DeleteBatch removes one persisted batch and prunes exactly the returned
// identifiers from the mirror, keeping both views consistent.
func (c *Cache) DeleteBatch(ctx context.Context, batchTag string) (int, error) {
	if batchTag == "" {
		return 0, eris.New("history: empty batch tag")
	}

	deleted, err := c.store.DeleteHistoryBatch(ctx, batchTag)
	if err != nil {
		return 0, eris.Wrapf(err, "history: delete batch %s", batchTag)
	}

	c.mu.Lock()
	for _, id := range deleted {
		delete(c.ids, id)
	}
	c.mu.Unlock()

	zap.L().Info("history: batch deleted",
		zap.String("batch_tag", batchTag),
		zap.Int("identifiers", len(deleted)))
	return len(deleted), nil
}
