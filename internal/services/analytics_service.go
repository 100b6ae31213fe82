package services

import (
	"context"
	"fmt"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/anomaly"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/analytics/insights"
	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/store"
)

// AnalyticsService runs anomaly detection, forecasting and insight detection
// for one merchant at a time.
type AnalyticsService struct {
	logger   *logging.Logger
	store    store.MetricStore
	recorder *metrics.Recorder
	config   config.AnalyticsConfig

	metrics     []analytics.MetricKind
	location    *time.Location
	anomalyCfg  anomaly.Config
	forecaster  *forecast.Engine
	insightsCfg insights.Config

	now func() time.Time
}

// Option customizes an AnalyticsService
type Option func(*AnalyticsService)

// WithClock overrides the wall clock used to place query windows
func WithClock(now func() time.Time) Option {
	return func(s *AnalyticsService) {
		s.now = now
	}
}

// NewAnalyticsService creates a new AnalyticsService. recorder may be nil.
func NewAnalyticsService(
	logger *logging.Logger,
	metricStore store.MetricStore,
	recorder *metrics.Recorder,
	cfg config.AnalyticsConfig,
	opts ...Option,
) (*AnalyticsService, error) {
	tracked, err := cfg.TrackedMetrics()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	anomalyCfg := cfg.AnomalyConfig()
	if err := anomalyCfg.Validate(); err != nil {
		return nil, fmt.Errorf("anomaly config: %w", err)
	}

	forecastCfg, err := cfg.ForecastConfig()
	if err != nil {
		return nil, fmt.Errorf("forecast config: %w", err)
	}
	engine, err := forecast.NewEngine(forecastCfg)
	if err != nil {
		return nil, fmt.Errorf("forecast config: %w", err)
	}

	insightsCfg, err := cfg.InsightsConfig()
	if err != nil {
		return nil, fmt.Errorf("insights config: %w", err)
	}
	if err := insightsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("insights config: %w", err)
	}

	s := &AnalyticsService{
		logger:      logger,
		store:       metricStore,
		recorder:    recorder,
		config:      cfg,
		metrics:     tracked,
		location:    loc,
		anomalyCfg:  anomalyCfg,
		forecaster:  engine,
		insightsCfg: insightsCfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TrackedMetrics returns the metrics evaluated by default
func (s *AnalyticsService) TrackedMetrics() []analytics.MetricKind {
	out := make([]analytics.MetricKind, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// window returns the inclusive [from, to] range covering the last days days,
// ending today in the configured timezone. Both ends are UTC midnights of the
// local calendar dates, matching how daily records are keyed.
func (s *AnalyticsService) window(days int) (from, to time.Time) {
	y, m, d := s.now().In(s.location).Date()
	to = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	from = to.AddDate(0, 0, -(days - 1))
	return from, to
}

// loadMerchant fetches the merchant and its records over the last days days
func (s *AnalyticsService) loadMerchant(ctx context.Context, merchantID string, days int) (*analytics.Merchant, []analytics.DailyRecord, *ServiceError) {
	merchant, err := s.store.Merchant(ctx, merchantID)
	if err != nil {
		return nil, nil, storeError(err, merchantID)
	}

	from, to := s.window(days)
	records, err := s.store.DailyMetrics(ctx, merchantID, from, to)
	if err != nil {
		return nil, nil, storeError(err, merchantID)
	}
	return merchant, records, nil
}

// concurrency bounds the per-request fan-out
func (s *AnalyticsService) concurrency() int {
	if s.config.Concurrency < 1 {
		return 1
	}
	return s.config.Concurrency
}
