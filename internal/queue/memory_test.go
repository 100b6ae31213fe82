package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublisher_PublishAndDrain(t *testing.T) {
	q := NewMemoryPublisher()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	data := []byte("first")
	require.NoError(t, q.Publish(ctx, "analytics.anomalies.revenue", data))
	require.NoError(t, q.Publish(ctx, "analytics.anomalies.revenue", []byte("second")))

	// Mutating the caller's buffer must not affect the stored message
	data[0] = 'X'

	assert.Equal(t, 2, q.PendingCount("analytics.anomalies.revenue"))
	msgs := q.Drain("analytics.anomalies.revenue")
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", string(msgs[0]))
	assert.Equal(t, "second", string(msgs[1]))
	assert.Equal(t, 0, q.PendingCount("analytics.anomalies.revenue"))
	assert.Nil(t, q.Drain("unknown"))
}

func TestMemoryPublisher_PublishBatch(t *testing.T) {
	q := NewMemoryPublisher()
	defer func() { _ = q.Close() }()

	n, err := q.PublishBatch(context.Background(), []BatchMessage{
		{Subject: "a", Data: []byte("1")},
		{Subject: "b", Data: []byte("2")},
		{Subject: "a", Data: []byte("3")},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, q.PendingCount("a"))
	assert.ElementsMatch(t, []string{"a", "b"}, q.Subjects())

	n, err = q.PublishBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryPublisher_ChannelFull(t *testing.T) {
	q := NewMemoryPublisher()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	for i := 0; i < memoryCapacity; i++ {
		require.NoError(t, q.Publish(ctx, "full", []byte("x")))
	}
	assert.Error(t, q.Publish(ctx, "full", []byte("x")))
}

func TestMemoryPublisher_CancelledContext(t *testing.T) {
	q := NewMemoryPublisher()
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Publish(ctx, "a", []byte("x")), context.Canceled)
}

func TestMemoryPublisher_Close(t *testing.T) {
	q := NewMemoryPublisher()
	require.NoError(t, q.Publish(context.Background(), "a", []byte("x")))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.Error(t, q.Publish(context.Background(), "a", []byte("y")))

	n, err := q.PublishBatch(context.Background(), []BatchMessage{{Subject: "a", Data: []byte("z")}})
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryPublisher_Concurrent(t *testing.T) {
	q := NewMemoryPublisher()
	defer func() { _ = q.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = q.Publish(context.Background(), "concurrent", []byte("x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.PendingCount("concurrent"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "analytics.anomalies.revenue", Subject("analytics.anomalies", "revenue"))
	assert.Equal(t, "revenue", Subject("", "revenue"))
}
