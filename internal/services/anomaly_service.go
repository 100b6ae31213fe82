package services

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/anomaly"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/models"
)

// AnomalyRequest represents an anomaly detection request. Zero values fall
// back to the configured defaults.
type AnomalyRequest struct {
	MerchantID   string
	LookbackDays int
	Threshold    float64
	RecentDays   int
	Metrics      []analytics.MetricKind
}

// DetectAnomalies flags abnormal recent days across the requested metrics
func (s *AnalyticsService) DetectAnomalies(ctx context.Context, req *AnomalyRequest) (*models.AnomalyFeed, error) {
	startExec := time.Now()
	defer s.recorder.ObserveDuration(metrics.OperationAnomalies, startExec)

	lookback := req.LookbackDays
	if lookback == 0 {
		lookback = s.config.Anomaly.LookbackDays
	}
	if lookback < 1 {
		return nil, invalidParameter("lookback_days", "lookback_days must be positive")
	}

	cfg, svcErr := s.detectorConfig(req, lookback)
	if svcErr != nil {
		return nil, svcErr
	}
	detector, err := anomaly.NewDetector(cfg)
	if err != nil {
		return nil, analyticsError(err)
	}

	tracked := req.Metrics
	if len(tracked) == 0 {
		tracked = s.metrics
	}
	for _, m := range tracked {
		if !m.Valid() {
			return nil, NewServiceErrorWithDetails(ErrCodeInvalidMetric, "Unknown metric",
				map[string]interface{}{"metric": string(m), "available_metrics": analytics.AllMetrics()})
		}
	}

	_, records, svcErr := s.loadMerchant(ctx, req.MerchantID, lookback)
	if svcErr != nil {
		return nil, svcErr
	}
	series := analytics.BuildAllSeries(records, tracked)

	// Each worker writes its own slot; Merge fixes the output order.
	results := make([]anomaly.Result, len(series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i := range series {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = detector.Detect(series[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError(err, req.MerchantID)
	}

	report := anomaly.Merge(results)
	feed, err := buildAnomalyFeed(req.MerchantID, cfg.ZThreshold, lookback, report)
	if err != nil {
		return nil, NewServiceErrorWithDetails(ErrCodeInternal, "Anomaly feed contains non-finite values",
			map[string]interface{}{"error": err.Error()})
	}

	for _, a := range report.Anomalies {
		s.recorder.ObserveAnomaly(string(a.Metric), string(a.Severity))
	}

	s.logger.Info("Anomaly detection completed",
		"merchant_id", req.MerchantID,
		"lookback_days", lookback,
		"records", len(records),
		"anomaly_count", feed.AnomalyCount,
		"skipped", len(report.Skipped),
		"latency_ms", time.Since(startExec).Milliseconds())

	return feed, nil
}

// detectorConfig applies request overrides to the configured detector settings
func (s *AnalyticsService) detectorConfig(req *AnomalyRequest, lookback int) (anomaly.Config, *ServiceError) {
	cfg := s.anomalyCfg

	if req.Threshold != 0 {
		if !(req.Threshold > 0) || math.IsInf(req.Threshold, 0) {
			return cfg, invalidParameter("threshold", "threshold must be a positive number")
		}
		cfg.ZThreshold = req.Threshold
		if cfg.HighSeverityZ < cfg.ZThreshold {
			cfg.HighSeverityZ = cfg.ZThreshold
		}
	}

	if req.RecentDays != 0 {
		cfg.RecentWindow = req.RecentDays
	}
	if cfg.RecentWindow < 1 || cfg.RecentWindow >= lookback {
		return cfg, invalidParameter("recent_days", "recent_days must be at least 1 and shorter than lookback_days")
	}
	if cfg.BaselineWindow < cfg.RecentWindow {
		cfg.BaselineWindow = cfg.RecentWindow
	}
	return cfg, nil
}
