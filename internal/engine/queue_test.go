package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liveql/internal/catalog"
)

func TestCommitQueue_FIFO(t *testing.T) {
	q := newCommitQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok)

	a := &catalog.Commit{Seq: 1}
	b := &catalog.Commit{Seq: 2}
	require.True(t, q.Enqueue(a))
	require.True(t, q.Enqueue(b))
	assert.Equal(t, 2, q.Len())

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, 0, q.Len())
}

func TestCommitQueue_Signal(t *testing.T) {
	q := newCommitQueue()
	require.True(t, q.Enqueue(&catalog.Commit{Seq: 1}))

	select {
	case <-q.Wait():
	default:
		t.Fatal("enqueue did not signal")
	}
}

func TestCommitQueue_Close(t *testing.T) {
	q := newCommitQueue()
	require.True(t, q.Enqueue(&catalog.Commit{Seq: 1}))

	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(&catalog.Commit{Seq: 2}))

	// Already-queued commits stay drainable after close.
	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Seq)

	// The signal channel is closed, so waiters wake immediately.
	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue did not wake waiter")
	}
}
