package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestNATS creates an embedded NATS server for testing
func setupTestNATS(t *testing.T) string {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random port
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func streamMessages(t *testing.T, url, stream string) uint64 {
	conn, err := nats.Connect(url)
	require.NoError(t, err)
	defer conn.Close()

	js, err := conn.JetStream()
	require.NoError(t, err)

	info, err := js.StreamInfo(stream)
	require.NoError(t, err)
	return info.State.Msgs
}

func TestNATSPublisher_CreatesStream(t *testing.T) {
	url := setupTestNATS(t)

	p, err := newNATSPublisher(NATSConfig{URL: url, SubjectPrefix: "analytics.anomalies"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, "ANALYTICS_ANOMALIES", p.Stream())
	assert.Equal(t, uint64(0), streamMessages(t, url, p.Stream()))

	// A second publisher reuses the existing stream
	p2, err := newNATSPublisher(NATSConfig{URL: url, SubjectPrefix: "analytics.anomalies"})
	require.NoError(t, err)
	_ = p2.Close()
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := setupTestNATS(t)

	p, err := newNATSPublisher(NATSConfig{URL: url, SubjectPrefix: "analytics.anomalies"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.Publish(ctx, "analytics.anomalies.revenue", []byte(`{"metric":"revenue"}`)))
	assert.Equal(t, uint64(1), streamMessages(t, url, p.Stream()))

	// No stream captures this subject, so JetStream cannot ack it
	assert.Error(t, p.Publish(ctx, "elsewhere.revenue", []byte("x")))
}

func TestNATSPublisher_PublishBatch(t *testing.T) {
	url := setupTestNATS(t)

	p, err := newNATSPublisher(NATSConfig{URL: url, SubjectPrefix: "analytics.anomalies"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	messages := make([]BatchMessage, 0, 50)
	for i := 0; i < 50; i++ {
		subject := "analytics.anomalies.revenue"
		if i%2 == 0 {
			subject = "analytics.anomalies.transactions"
		}
		messages = append(messages, BatchMessage{Subject: subject, Data: []byte("event")})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := p.PublishBatch(ctx, messages)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, uint64(50), streamMessages(t, url, p.Stream()))

	n, err = p.PublishBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNATSPublisher_InvalidURL(t *testing.T) {
	_, err := newNATSPublisher(NATSConfig{URL: "nats://127.0.0.1:1", SubjectPrefix: "analytics.anomalies"})
	assert.Error(t, err)
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "ANALYTICS_ANOMALIES", streamName("analytics.anomalies"))
	assert.Equal(t, "MERCHANTLENS", streamName(""))
	assert.Equal(t, "A_B-C_D", streamName("a*b-c>d"))
}
