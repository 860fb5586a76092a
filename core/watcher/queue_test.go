package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueLaterEventSupersedesEarlier(t *testing.T) {
	q := NewQueue()
	q.Push(OpUpdate, "a.ts")
	q.Push(OpDelete, "a.ts")

	changes := q.Flush()
	require.Len(t, changes, 1)
	assert.Equal(t, OpDelete, changes[0].Op)
}

func TestQueueAddThenDeleteCancels(t *testing.T) {
	q := NewQueue()
	q.Push(OpAdd, "a.ts")
	q.Push(OpDelete, "a.ts")

	changes := q.Flush()
	assert.Empty(t, changes)
}

func TestQueueAddThenUpdateCollapsesToAdd(t *testing.T) {
	q := NewQueue()
	q.Push(OpAdd, "a.ts")
	q.Push(OpUpdate, "a.ts")

	changes := q.Flush()
	require.Len(t, changes, 1)
	assert.Equal(t, OpAdd, changes[0].Op)
}

func TestQueuePreservesInsertionOrderAcrossPaths(t *testing.T) {
	q := NewQueue()
	q.Push(OpAdd, "a.ts")
	q.Push(OpAdd, "b.ts")
	q.Push(OpAdd, "c.ts")

	changes := q.Flush()
	require.Len(t, changes, 3)
	assert.Equal(t, "a.ts", changes[0].Path)
	assert.Equal(t, "b.ts", changes[1].Path)
	assert.Equal(t, "c.ts", changes[2].Path)
}

func TestQueueFlushEmptiesQueue(t *testing.T) {
	q := NewQueue()
	q.Push(OpAdd, "a.ts")
	q.Flush()
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Flush())
}

func TestQueueUpdateThenDeleteKeepsDelete(t *testing.T) {
	q := NewQueue()
	q.Push(OpUpdate, "a.ts")
	q.Push(OpDelete, "a.ts")

	changes := q.Flush()
	require.Len(t, changes, 1)
	assert.Equal(t, OpDelete, changes[0].Op)
}

func TestQueueDeleteThenAddIsTreatedAsLatestAdd(t *testing.T) {
	q := NewQueue()
	q.Push(OpDelete, "a.ts")
	q.Push(OpAdd, "a.ts")

	changes := q.Flush()
	require.Len(t, changes, 1)
	assert.Equal(t, OpAdd, changes[0].Op)
}
