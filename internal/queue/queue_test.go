package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePreservesOrder(t *testing.T) {
	t.Parallel()

	q := New[int]()
	for i := range 5 {
		require.True(t, q.Push(i))
	}
	require.Equal(t, 5, q.Len())

	for i := range 5 {
		got, err := q.Pop(context.Background(), time.Second)
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}

func TestQueuePopTimesOut(t *testing.T) {
	t.Parallel()

	q := New[string]()
	start := time.Now()
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()

	q := New[int]()
	require.True(t, q.Push(1))
	q.Close()
	require.False(t, q.Push(2))

	got, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, got)

	_, err = q.Pop(context.Background(), time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestQueuePopHonorsContext(t *testing.T) {
	t.Parallel()

	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueueWakesBlockedConsumer(t *testing.T) {
	t.Parallel()

	q := New[int]()
	done := make(chan int, 1)
	go func() {
		v, err := q.Pop(context.Background(), 0)
		if err == nil {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case v := <-done:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("consumer was not woken")
	}
}

func TestQueueTryPop(t *testing.T) {
	t.Parallel()

	q := New[int]()
	_, ok := q.TryPop()
	require.False(t, ok)

	q.Push(7)
	v, ok := q.TryPop()
	require.True(t, ok)
	require.Equal(t, 7, v)
}
