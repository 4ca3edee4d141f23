package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.True(t, rq.IsEmpty())

	for i := 1; i <= 3; i++ {
		require.NoError(t, rq.Enqueue(i))
	}
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	head, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, head)

	for i := 1; i <= 3; i++ {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueRotate(t *testing.T) {
	rq := NewRingQueue[string](2)
	require.NoError(t, rq.Enqueue("a"))
	require.NoError(t, rq.Enqueue("b"))

	got := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		v, err := rq.Rotate()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, got)
	assert.Equal(t, 2, rq.Len())
}
