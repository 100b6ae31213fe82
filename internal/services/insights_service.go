package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/insights"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/models"
	"github.com/merchantlens/merchantlens/internal/utils"
)

// InsightsRequest represents an insights request. With no competitors the
// merchant's category peers are used.
type InsightsRequest struct {
	MerchantID  string
	Competitors []string
	Window      int
}

// Insights compares a merchant's recent growth with its own past and its peers
func (s *AnalyticsService) Insights(ctx context.Context, req *InsightsRequest) (*models.InsightFeed, error) {
	startExec := time.Now()
	defer s.recorder.ObserveDuration(metrics.OperationInsights, startExec)

	cfg := s.insightsCfg
	if req.Window != 0 {
		cfg.Window = req.Window
	}
	engine, err := insights.NewEngine(cfg)
	if err != nil {
		return nil, analyticsError(err)
	}
	if len(req.Competitors) > utils.MaxCompetitors {
		return nil, NewServiceErrorWithDetails(ErrCodeInvalidParameters, "too many competitors",
			map[string]interface{}{"parameter": "competitors", "max": utils.MaxCompetitors})
	}

	days := 2 * cfg.Window
	merchant, records, svcErr := s.loadMerchant(ctx, req.MerchantID, days)
	if svcErr != nil {
		return nil, svcErr
	}

	peerIDs := dedupe(req.Competitors, req.MerchantID)
	if len(req.Competitors) == 0 {
		peerIDs, err = s.store.Peers(ctx, req.MerchantID, s.config.Insights.MaxPeers)
		if err != nil {
			return nil, storeError(err, req.MerchantID)
		}
	}

	competitors, svcErr := s.loadCompetitors(ctx, peerIDs, days)
	if svcErr != nil {
		return nil, svcErr
	}

	history := analytics.BuildAllSeries(records, cfg.Metrics)
	found := engine.DetectInsights(*merchant, history, competitors)

	feed, err := buildInsightFeed(req.MerchantID, found)
	if err != nil {
		return nil, NewServiceErrorWithDetails(ErrCodeInternal, "Insight feed contains non-finite values",
			map[string]interface{}{"error": err.Error()})
	}
	for _, in := range found {
		s.recorder.ObserveInsight(string(in.Type))
	}

	s.logger.Info("Insight detection completed",
		"merchant_id", req.MerchantID,
		"window", cfg.Window,
		"competitors", len(competitors),
		"insight_count", feed.InsightCount,
		"latency_ms", time.Since(startExec).Milliseconds())

	return feed, nil
}

// loadCompetitors fetches each peer and its history concurrently, keeping
// the order of ids.
func (s *AnalyticsService) loadCompetitors(ctx context.Context, ids []string, days int) ([]insights.Competitor, *ServiceError) {
	competitors := make([]insights.Competitor, len(ids))
	failures := make([]*ServiceError, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			merchant, records, svcErr := s.loadMerchant(gctx, id, days)
			if svcErr != nil {
				failures[i] = svcErr
				return svcErr
			}
			competitors[i] = insights.Competitor{
				Merchant: *merchant,
				History:  analytics.BuildAllSeries(records, s.insightsCfg.Metrics),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		if f != nil && f.Code != ErrCodeQueryFailed {
			return nil, f
		}
	}
	for _, f := range failures {
		if f != nil {
			return nil, f
		}
	}
	return competitors, nil
}

// dedupe drops repeated and self references, keeping first-seen order
func dedupe(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
