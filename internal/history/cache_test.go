package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePersister is an in-memory Persister for cache tests.
type fakePersister struct {
	byTag   map[string][]string
	ids     map[string]bool
	loadErr error
	addErr  error
}

func newFakePersister() *fakePersister {
	return &fakePersister{byTag: make(map[string][]string), ids: make(map[string]bool)}
}

func (f *fakePersister) LoadHistory(_ context.Context) ([]string, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	var out []string
	for id := range f.ids {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakePersister) AddHistoryBatch(_ context.Context, ids []string, tag string) (int64, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	var inserted int64
	for _, id := range ids {
		if !f.ids[id] {
			f.ids[id] = true
			f.byTag[tag] = append(f.byTag[tag], id)
			inserted++
		}
	}
	return inserted, nil
}

func (f *fakePersister) DeleteHistoryBatch(_ context.Context, tag string) ([]string, error) {
	deleted := f.byTag[tag]
	for _, id := range deleted {
		delete(f.ids, id)
	}
	delete(f.byTag, tag)
	return deleted, nil
}

func TestCache_LoadAndContains(t *testing.T) {
	p := newFakePersister()
	p.ids["12345678000195"] = true

	c := New(p)
	require.NoError(t, c.Load(context.Background()))

	assert.True(t, c.Contains("12345678000195"))
	assert.False(t, c.Contains("98765432000110"))
	assert.Equal(t, 1, c.Size())
}

func TestCache_LoadFailureLeavesEmpty(t *testing.T) {
	p := newFakePersister()
	p.loadErr = fmt.Errorf("connection refused")

	c := New(p)
	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, c.Size())
}

func TestCache_AddBatch(t *testing.T) {
	p := newFakePersister()
	c := New(p)

	tag, inserted, err := c.AddBatch(context.Background(), []string{"12345678000195", "98765432000110"})
	require.NoError(t, err)
	assert.Contains(t, tag, "batch-")
	assert.Equal(t, int64(2), inserted)
	assert.True(t, c.Contains("12345678000195"))

	// identifiers already persisted count as zero new inserts
	_, inserted, err = c.AddBatch(context.Background(), []string{"12345678000195"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)
}

func TestCache_AddBatch_Empty(t *testing.T) {
	c := New(newFakePersister())

	tag, inserted, err := c.AddBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tag)
	assert.Equal(t, int64(0), inserted)
}

func TestCache_AddBatch_PersistFailureDoesNotMutateMirror(t *testing.T) {
	p := newFakePersister()
	p.addErr = fmt.Errorf("disk full")
	c := New(p)

	_, _, err := c.AddBatch(context.Background(), []string{"12345678000195"})
	require.Error(t, err)
	assert.False(t, c.Contains("12345678000195"))
}

func TestCache_DeleteBatch(t *testing.T) {
	p := newFakePersister()
	c := New(p)

	tag, _, err := c.AddBatch(context.Background(), []string{"12345678000195", "98765432000110"})
	require.NoError(t, err)

	n, err := c.DeleteBatch(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, c.Contains("12345678000195"))
	assert.False(t, c.Contains("98765432000110"))
	assert.Equal(t, 0, c.Size())
}

func TestCache_DeleteBatch_PrunesOnlyBatchMembers(t *testing.T) {
	p := newFakePersister()
	c := New(p)

	tag1, _, err := c.AddBatch(context.Background(), []string{"12345678000195"})
	require.NoError(t, err)
	_, _, err = c.AddBatch(context.Background(), []string{"98765432000110"})
	require.NoError(t, err)

	n, err := c.DeleteBatch(context.Background(), tag1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, c.Contains("12345678000195"))
	assert.True(t, c.Contains("98765432000110"))
}

func TestCache_DeleteBatch_EmptyTag(t *testing.T) {
	c := New(newFakePersister())

	_, err := c.DeleteBatch(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty batch tag")
}
