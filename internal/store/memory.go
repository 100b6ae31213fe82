package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

// MemoryStore is an in-memory MetricStore for tests, benchmarks and local runs
type MemoryStore struct {
	mu        sync.RWMutex
	merchants map[string]analytics.Merchant
	records   map[string]map[time.Time]analytics.DailyRecord
	closed    bool
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		merchants: make(map[string]analytics.Merchant),
		records:   make(map[string]map[time.Time]analytics.DailyRecord),
	}
}

// PutMerchant adds or replaces a merchant
func (s *MemoryStore) PutMerchant(m analytics.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.ID] = m
}

// PutRecords stores daily records for a merchant, replacing any existing
// record for the same day.
func (s *MemoryStore) PutRecords(merchantID string, records ...analytics.DailyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, ok := s.records[merchantID]
	if !ok {
		byDay = make(map[time.Time]analytics.DailyRecord)
		s.records[merchantID] = byDay
	}
	for _, r := range records {
		r.Date = truncateDay(r.Date.UTC())
		byDay[r.Date] = r
	}
}

// DailyMetrics implements MetricStore
func (s *MemoryStore) DailyMetrics(ctx context.Context, merchantID string, from, to time.Time) ([]analytics.DailyRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to = truncateDay(from.UTC()), truncateDay(to.UTC())
	records := make([]analytics.DailyRecord, 0)
	for day, r := range s.records[merchantID] {
		if day.Before(from) || day.After(to) {
			continue
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// Merchant implements MetricStore
func (s *MemoryStore) Merchant(ctx context.Context, merchantID string) (*analytics.Merchant, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.merchants[merchantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, merchantID)
	}
	return &m, nil
}

// Peers implements MetricStore
func (s *MemoryStore) Peers(ctx context.Context, merchantID string, limit int) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	self, ok := s.merchants[merchantID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, merchantID)
	}

	peers := make([]string, 0)
	for id, m := range s.merchants {
		if id != merchantID && m.Category == self.Category {
			peers = append(peers, id)
		}
	}
	sort.Strings(peers)
	if limit >= 0 && len(peers) > limit {
		peers = peers[:limit]
	}
	return peers, nil
}

// ListMerchants implements MetricStore
func (s *MemoryStore) ListMerchants(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.merchants))
	for id := range s.merchants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close implements MetricStore
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
