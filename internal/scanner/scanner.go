// Package scanner periodically runs anomaly detection across merchants and
// hands every new anomaly to the event queue.
//
// Flow:
//  1. Server or scanner binary starts → Scanner.Start(ctx)
//  2. Every interval, list the merchants to scan (configured or all)
//  3. Detect anomalies per merchant with bounded concurrency
//  4. Publish one AnomalyEvent per anomaly not published before to
//     <subject_prefix>.<metric>
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/models"
	"github.com/merchantlens/merchantlens/internal/queue"
	"github.com/merchantlens/merchantlens/internal/services"
	"github.com/merchantlens/merchantlens/internal/utils"
)

// seenRetention is how long a published anomaly is remembered
const seenRetention = 31 * 24 * time.Hour

// eventNamespace scopes deterministic event IDs
var eventNamespace = uuid.MustParse("6f1d9a52-4c3b-4e8f-9a0e-2b7c5d8e1f34")

// Detector runs anomaly detection for one merchant
type Detector interface {
	DetectAnomalies(ctx context.Context, req *services.AnomalyRequest) (*models.AnomalyFeed, error)
}

// MerchantLister lists every known merchant
type MerchantLister interface {
	ListMerchants(ctx context.Context) ([]string, error)
}

// Summary describes one scan
type Summary struct {
	Merchants int
	Failed    int
	Anomalies int
	Published int
}

// Scanner runs scheduled anomaly scans
type Scanner struct {
	logger        *logging.Logger
	detector      Detector
	lister        MerchantLister
	publisher     queue.Publisher
	recorder      *metrics.Recorder
	config        config.ScannerConfig
	subjectPrefix string
	now           func() time.Time

	runMu sync.Mutex        // one scan at a time
	seen  map[string]string // event ID -> anomaly date

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scanner. recorder may be nil.
func New(
	logger *logging.Logger,
	detector Detector,
	lister MerchantLister,
	publisher queue.Publisher,
	recorder *metrics.Recorder,
	cfg config.ScannerConfig,
	subjectPrefix string,
) *Scanner {
	return &Scanner{
		logger:        logger,
		detector:      detector,
		lister:        lister,
		publisher:     publisher,
		recorder:      recorder,
		config:        cfg,
		subjectPrefix: subjectPrefix,
		now:           time.Now,
		seen:          make(map[string]string),
		stopCh:        make(chan struct{}),
	}
}

// Start begins scanning in a background goroutine
func (s *Scanner) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info("Anomaly scanner is disabled")
		return
	}

	s.logger.Info("Starting anomaly scanner",
		"interval", s.config.Interval,
		"run_on_start", s.config.RunOnStart,
		"concurrency", s.config.Concurrency,
		"merchants", len(s.config.Merchants))

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop stops the scanner and waits for a running scan to finish
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("Anomaly scanner stopped")
}

func (s *Scanner) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.scan(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scan(ctx)
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Anomaly scan failed", "error", err)
	}
}

// RunOnce scans every merchant once and publishes new anomalies
func (s *Scanner) RunOnce(ctx context.Context) (Summary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	defer s.recorder.ObserveDuration(metrics.OperationScan, start)

	merchants, err := s.merchants(ctx)
	if err != nil {
		return Summary{}, err
	}

	feeds := s.detectAll(ctx, merchants)

	summary := Summary{Merchants: len(merchants)}
	detectedAt := s.now().UTC()
	var messages []queue.BatchMessage
	var pending []models.AnomalyEntry
	var pendingIDs []string

	for i, feed := range feeds {
		if feed == nil {
			summary.Failed++
			continue
		}
		summary.Anomalies += len(feed.Anomalies)
		for _, a := range feed.Anomalies {
			id := eventID(merchants[i], a)
			if _, dup := s.seen[id]; dup {
				continue
			}
			data, err := json.Marshal(models.AnomalyEvent{
				EventID:    id,
				MerchantID: merchants[i],
				DetectedAt: detectedAt.Format(time.RFC3339),
				Anomaly:    a,
			})
			if err != nil {
				return summary, fmt.Errorf("failed to encode anomaly event: %w", err)
			}
			messages = append(messages, queue.BatchMessage{
				Subject: queue.Subject(s.subjectPrefix, a.Metric),
				Data:    data,
			})
			pending = append(pending, a)
			pendingIDs = append(pendingIDs, id)
		}
	}

	if len(messages) > 0 {
		pubCtx, cancel := context.WithTimeout(ctx, utils.PublishTimeout)
		published, err := s.publisher.PublishBatch(pubCtx, messages)
		cancel()
		summary.Published = published
		if err != nil {
			return summary, fmt.Errorf("failed to publish anomaly events: %w", err)
		}
		// Partial failures are retried on the next scan
		if published == len(messages) {
			for i, id := range pendingIDs {
				s.seen[id] = pending[i].Date
			}
		}
	}
	s.prune(detectedAt)

	s.logger.Info("Anomaly scan completed",
		"merchants", summary.Merchants,
		"failed", summary.Failed,
		"anomalies", summary.Anomalies,
		"published", summary.Published,
		"duration", time.Since(start))

	return summary, nil
}

// merchants returns the configured merchants or every listed one
func (s *Scanner) merchants(ctx context.Context) ([]string, error) {
	if len(s.config.Merchants) > 0 {
		return s.config.Merchants, nil
	}
	ids, err := s.lister.ListMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list merchants: %w", err)
	}
	return ids, nil
}

// detectAll returns one feed per merchant, nil where detection failed
func (s *Scanner) detectAll(ctx context.Context, merchants []string) []*models.AnomalyFeed {
	feeds := make([]*models.AnomalyFeed, len(merchants))

	concurrency := s.config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, id := range merchants {
		i, id := i, id
		g.Go(func() error {
			mctx, cancel := context.WithTimeout(ctx, utils.MerchantScanTimeout)
			defer cancel()

			feed, err := s.detector.DetectAnomalies(mctx, &services.AnomalyRequest{MerchantID: id})
			if err != nil {
				s.logger.Warn("Anomaly scan failed for merchant", "merchant_id", id, "error", err)
				return nil
			}
			feeds[i] = feed
			return nil
		})
	}
	_ = g.Wait()

	return feeds
}

// prune forgets anomalies older than the retention window
func (s *Scanner) prune(now time.Time) {
	cutoff := now.Add(-seenRetention).Format(utils.DateLayout)
	for id, date := range s.seen {
		if date < cutoff {
			delete(s.seen, id)
		}
	}
}

// eventID is stable for a merchant, metric and day so downstream consumers
// can deduplicate across scanner restarts.
func eventID(merchantID string, a models.AnomalyEntry) string {
	return uuid.NewSHA1(eventNamespace, []byte(merchantID+"|"+a.Metric+"|"+a.Date)).String()
}
