// Package queue hands anomaly events to downstream notification dispatchers.
// Only the publishing side lives here; consumers are separate services.
package queue

import "context"

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishBatch publishes multiple messages and waits for all to complete.
	// Returns the number of successfully published messages and any error
	PublishBatch(ctx context.Context, messages []BatchMessage) (int, error)

	// Close closes the connection
	Close() error
}

// BatchMessage represents a message for batch publishing
type BatchMessage struct {
	Subject string
	Data    []byte
}

// Subject returns the subject anomaly events for metric are published to,
// e.g. analytics.anomalies.revenue
func Subject(prefix, metric string) string {
	if prefix == "" {
		return metric
	}
	return prefix + "." + metric
}
