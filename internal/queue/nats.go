package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSConfig represents NATS JetStream configuration
type NATSConfig struct {
	URL      string // e.g. nats://localhost:4222
	Username string // Optional authentication
	Password string // Optional authentication

	// SubjectPrefix scopes the stream, which captures <prefix>.>
	SubjectPrefix string

	// Stream is the JetStream stream name (default: derived from the prefix)
	Stream string
}

// NATSPublisher publishes to NATS JetStream. The stream covering the subject
// prefix is created on first connect so messages persist until a dispatcher
// consumes them.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
}

// newNATSPublisher connects to NATS and ensures the stream exists
func newNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{nats.Name("merchantlens")}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p, err := newNATSPublisherWithConn(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// newNATSPublisherWithConn creates a publisher on an existing connection
func newNATSPublisherWithConn(conn *nats.Conn, cfg NATSConfig) (*NATSPublisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = streamName(cfg.SubjectPrefix)
	}

	if cfg.SubjectPrefix != "" {
		if err := ensureStream(js, stream, cfg.SubjectPrefix+".>"); err != nil {
			return nil, err
		}
	}

	return &NATSPublisher{
		conn:   conn,
		js:     js,
		stream: stream,
	}, nil
}

// ensureStream creates the stream when it does not exist yet
func ensureStream(js nats.JetStreamContext, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", name, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	return nil
}

// Publish publishes a message and waits for the JetStream ack
func (q *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := q.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch publishes multiple messages asynchronously and waits for all
// acks. Messages are queued without blocking and acknowledged together.
func (q *NATSPublisher) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	futures := make([]nats.PubAckFuture, 0, len(messages))
	for _, msg := range messages {
		future, err := q.js.PublishAsync(msg.Subject, msg.Data)
		if err != nil {
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-q.js.PublishAsyncComplete():
	case <-ctx.Done():
		return 0, fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	successCount := 0
	var lastErr error
	for _, future := range futures {
		select {
		case <-future.Ok():
			successCount++
		case err := <-future.Err():
			lastErr = err
		default:
			// Acked by PublishAsyncComplete but not yet surfaced
			successCount++
		}
	}

	if lastErr != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return successCount, nil
}

// Stream returns the JetStream stream name
func (q *NATSPublisher) Stream() string {
	return q.stream
}

// Close drains pending publishes and closes the connection
func (q *NATSPublisher) Close() error {
	if q.conn.IsClosed() {
		return nil
	}
	return q.conn.Drain()
}

// streamName derives a stream name from a subject prefix.
// Stream names can only contain: A-Z, a-z, 0-9, dash (-) and underscore (_)
func streamName(prefix string) string {
	if prefix == "" {
		return "MERCHANTLENS"
	}
	result := make([]byte, 0, len(prefix))
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return strings.ToUpper(string(result))
}
