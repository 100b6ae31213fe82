package utils

import "time"

// =============================================================================
// Date Constants
// =============================================================================

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout bounds a single analytics request end to end
	DefaultRequestTimeout = 30 * time.Second

	// MerchantScanTimeout bounds one merchant's detection during a scan
	MerchantScanTimeout = 30 * time.Second

	// PublishTimeout bounds handing one batch of events to the queue
	PublishTimeout = 10 * time.Second
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of retry attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 100 * time.Millisecond
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBufferSize is the default buffer size for channels
	DefaultBufferSize = 100

	// MaxCompetitors caps the competitor IDs accepted in one insight request
	MaxCompetitors = 20
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)
