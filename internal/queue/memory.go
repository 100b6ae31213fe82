package queue

import (
	"context"
	"fmt"
	"sync"
)

// memoryCapacity bounds pending messages per subject
const memoryCapacity = 10000

// MemoryPublisher keeps published messages in per-subject buffered channels.
// Useful for tests and local runs without a broker.
type MemoryPublisher struct {
	channels map[string]chan []byte
	closed   bool
	mu       sync.RWMutex
}

// NewMemoryPublisher creates an in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		channels: make(map[string]chan []byte),
	}
}

// getOrCreateChannel returns existing channel or creates new one.
// Caller must hold q.mu.
func (q *MemoryPublisher) getOrCreateChannel(subject string) chan []byte {
	if ch, exists := q.channels[subject]; exists {
		return ch
	}

	ch := make(chan []byte, memoryCapacity)
	q.channels[subject] = ch
	return ch
}

// Publish publishes a message to an in-memory channel
func (q *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Callers may reuse data after Publish returns
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	// The send never blocks, so holding the lock keeps Close from closing
	// the channel underneath it.
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("publisher is closed")
	}

	select {
	case q.getOrCreateChannel(subject) <- dataCopy:
		return nil
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// PublishBatch publishes multiple messages
func (q *MemoryPublisher) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	successCount := 0
	var lastErr error

	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Subject, msg.Data); err != nil {
			lastErr = err
			continue
		}
		successCount++
	}

	if lastErr != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return successCount, nil
}

// Drain removes and returns the pending messages for subject in publish order
func (q *MemoryPublisher) Drain(subject string) [][]byte {
	q.mu.RLock()
	ch, exists := q.channels[subject]
	q.mu.RUnlock()
	if !exists {
		return nil
	}

	var out [][]byte
	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, data)
		default:
			return out
		}
	}
}

// PendingCount returns the number of pending messages for a subject
func (q *MemoryPublisher) PendingCount(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[subject]; exists {
		return len(ch)
	}
	return 0
}

// Subjects returns every subject that has received a message
func (q *MemoryPublisher) Subjects() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	subjects := make([]string, 0, len(q.channels))
	for s := range q.channels {
		subjects = append(subjects, s)
	}
	return subjects
}

// Close closes all channels
func (q *MemoryPublisher) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for subject, ch := range q.channels {
		close(ch)
		delete(q.channels, subject)
	}
	return nil
}
