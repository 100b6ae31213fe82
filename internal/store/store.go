// Package store reads merchants and their daily operational metrics. The
// analytics layer never writes; ingestion belongs to upstream systems.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/config"
)

// ErrMerchantNotFound is returned when a merchant ID is unknown
var ErrMerchantNotFound = errors.New("merchant not found")

// MetricStore is the read-only source of merchant data
type MetricStore interface {
	// DailyMetrics returns the merchant's records with from <= date <= to,
	// ascending by date, at most one per day.
	DailyMetrics(ctx context.Context, merchantID string, from, to time.Time) ([]analytics.DailyRecord, error)

	// Merchant returns the merchant or ErrMerchantNotFound
	Merchant(ctx context.Context, merchantID string) (*analytics.Merchant, error)

	// Peers returns up to limit merchant IDs in the same category, excluding
	// the merchant itself, in ascending ID order.
	Peers(ctx context.Context, merchantID string, limit int) ([]string, error)

	// ListMerchants returns every merchant ID in ascending order
	ListMerchants(ctx context.Context) ([]string, error)

	// Close releases the underlying resources
	Close() error
}

// New creates a store based on configuration
func New(ctx context.Context, cfg config.DatabaseConfig) (MetricStore, error) {
	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(ctx, cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// truncateDay drops the time of day, keeping the location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
