// Package insights turns a merchant's recent trajectory, and how it compares
// with a set of competitors, into short evidence-backed findings.
package insights

import (
	"fmt"
	"math"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

// InsightType classifies an insight
type InsightType string

const (
	InsightSustainedGrowth      InsightType = "sustained_growth"
	InsightSustainedDecline     InsightType = "sustained_decline"
	InsightOutperformingPeers   InsightType = "outperforming_peers"
	InsightUnderperformingPeers InsightType = "underperforming_peers"
)

// SupportingValues keys
const (
	KeyRecentMean        = "recent_mean"
	KeyPriorMean         = "prior_mean"
	KeyChangePercent     = "change_percent"
	KeySlope             = "slope"
	KeyPeerAverageChange = "peer_average_change_percent"
	KeyDivergencePoints  = "divergence_points"
	KeyPeerCount         = "peer_count"
)

// Insight is one finding with the numbers that back it.
type Insight struct {
	Type             InsightType          `json:"type"`
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	Metric           analytics.MetricKind `json:"metric"`
	SupportingValues map[string]float64   `json:"supporting_values"`
}

// Competitor is a peer merchant and its daily history.
type Competitor struct {
	Merchant analytics.Merchant
	History  []analytics.MetricSeries
}

// Config holds the insight thresholds
type Config struct {
	// Window is the number of days in each compared period
	Window int
	// GrowthThreshold is the minimum |change| in percent for a self-trend insight
	GrowthThreshold float64
	// DivergenceThreshold is the minimum gap in percentage points to peers
	DivergenceThreshold float64
	// Metrics lists the metrics to examine, in output order
	Metrics []analytics.MetricKind
}

// DefaultConfig returns the default insight configuration
func DefaultConfig() Config {
	return Config{
		Window:              7,
		GrowthThreshold:     10,
		DivergenceThreshold: 10,
		Metrics:             analytics.AllMetrics(),
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("%w: window must be at least 1, got %d", analytics.ErrInvalidParameters, c.Window)
	}
	if !(c.GrowthThreshold > 0) || math.IsInf(c.GrowthThreshold, 0) {
		return fmt.Errorf("%w: growth threshold must be positive, got %v", analytics.ErrInvalidParameters, c.GrowthThreshold)
	}
	if !(c.DivergenceThreshold > 0) || math.IsInf(c.DivergenceThreshold, 0) {
		return fmt.Errorf("%w: divergence threshold must be positive, got %v", analytics.ErrInvalidParameters, c.DivergenceThreshold)
	}
	if len(c.Metrics) == 0 {
		return fmt.Errorf("%w: no metrics configured", analytics.ErrInvalidParameters)
	}
	for _, m := range c.Metrics {
		if !m.Valid() {
			return fmt.Errorf("%w: unknown metric %q", analytics.ErrInvalidParameters, m)
		}
	}
	return nil
}

// Engine detects insights. It is stateless apart from its configuration.
type Engine struct {
	config Config
}

// NewEngine creates an engine after validating config
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	metrics := make([]analytics.MetricKind, len(config.Metrics))
	copy(metrics, config.Metrics)
	config.Metrics = metrics
	return &Engine{config: config}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// DetectInsights examines each configured metric of merchant's history. For
// every metric it emits at most one self-trend insight followed by at most one
// peer comparison. Metrics without enough history are silently passed over.
func (e *Engine) DetectInsights(merchant analytics.Merchant, history []analytics.MetricSeries, competitors []Competitor) []Insight {
	insights := make([]Insight, 0)

	for _, metric := range e.config.Metrics {
		series, ok := analytics.FindSeries(history, metric)
		if !ok {
			continue
		}
		own, ok := measureGrowth(series, e.config.Window)
		if !ok {
			continue
		}

		if insight, ok := e.selfTrend(merchant, metric, own); ok {
			insights = append(insights, insight)
		}
		if insight, ok := e.peerComparison(merchant, metric, own, competitors); ok {
			insights = append(insights, insight)
		}
	}

	return insights
}

func (e *Engine) selfTrend(merchant analytics.Merchant, metric analytics.MetricKind, g growth) (Insight, bool) {
	var kind InsightType
	switch {
	case g.change >= e.config.GrowthThreshold && g.slope > 0:
		kind = InsightSustainedGrowth
	case g.change <= -e.config.GrowthThreshold && g.slope < 0:
		kind = InsightSustainedDecline
	default:
		return Insight{}, false
	}

	return Insight{
		Type:        kind,
		Title:       trendTitle(kind, metric),
		Description: trendDescription(merchant, metric, g, e.config.Window),
		Metric:      metric,
		SupportingValues: map[string]float64{
			KeyRecentMean:    g.recentMean,
			KeyPriorMean:     g.priorMean,
			KeyChangePercent: g.change,
			KeySlope:         g.slope,
		},
	}, true
}

func (e *Engine) peerComparison(merchant analytics.Merchant, metric analytics.MetricKind, own growth, competitors []Competitor) (Insight, bool) {
	sum := 0.0
	count := 0
	for _, c := range competitors {
		if c.Merchant.ID != "" && c.Merchant.ID == merchant.ID {
			continue
		}
		series, ok := analytics.FindSeries(c.History, metric)
		if !ok {
			continue
		}
		if g, ok := measureGrowth(series, e.config.Window); ok {
			sum += g.change
			count++
		}
	}
	if count == 0 {
		return Insight{}, false
	}

	peerAverage := sum / float64(count)
	divergence := own.change - peerAverage

	var kind InsightType
	switch {
	case divergence >= e.config.DivergenceThreshold:
		kind = InsightOutperformingPeers
	case divergence <= -e.config.DivergenceThreshold:
		kind = InsightUnderperformingPeers
	default:
		return Insight{}, false
	}

	return Insight{
		Type:        kind,
		Title:       peerTitle(kind, metric),
		Description: peerDescription(merchant, metric, own.change, peerAverage, divergence, count),
		Metric:      metric,
		SupportingValues: map[string]float64{
			KeyRecentMean:        own.recentMean,
			KeyPriorMean:         own.priorMean,
			KeyChangePercent:     own.change,
			KeyPeerAverageChange: peerAverage,
			KeyDivergencePoints:  divergence,
			KeyPeerCount:         float64(count),
		},
	}, true
}
