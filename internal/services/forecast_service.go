package services

import (
	"context"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/models"
)

// ForecastRequest represents a forecast request. Zero values fall back to
// the configured defaults.
type ForecastRequest struct {
	MerchantID  string
	Metric      analytics.MetricKind
	Days        int
	HistoryDays int
	Method      forecast.Method
}

// Forecast projects one metric of a merchant forward
func (s *AnalyticsService) Forecast(ctx context.Context, req *ForecastRequest) (*models.ForecastFeed, error) {
	startExec := time.Now()
	defer s.recorder.ObserveDuration(metrics.OperationForecast, startExec)

	if !req.Metric.Valid() {
		return nil, NewServiceErrorWithDetails(ErrCodeInvalidMetric, "Unknown metric",
			map[string]interface{}{"metric": string(req.Metric), "available_metrics": analytics.AllMetrics()})
	}

	days := req.Days
	if days == 0 {
		days = s.config.Forecast.DefaultDays
	}
	maxHorizon := s.forecaster.Config().MaxHorizon
	if days < 1 || days > maxHorizon {
		return nil, NewServiceErrorWithDetails(ErrCodeInvalidParameters, "days out of range",
			map[string]interface{}{"parameter": "days", "min": 1, "max": maxHorizon})
	}

	history := req.HistoryDays
	if history == 0 {
		history = s.config.Forecast.HistoryDays
	}
	if history < 1 {
		return nil, invalidParameter("history_days", "history_days must be positive")
	}

	method := req.Method
	if method == "" {
		method = s.forecaster.Config().Method
	}
	if _, err := forecast.ParseMethod(string(method)); err != nil {
		return nil, NewServiceErrorWithDetails(ErrCodeInvalidParameters, err.Error(),
			map[string]interface{}{
				"parameter":         "method",
				"available_methods": []forecast.Method{forecast.MethodLinear, forecast.MethodHolt, forecast.MethodAuto},
			})
	}

	_, records, svcErr := s.loadMerchant(ctx, req.MerchantID, history)
	if svcErr != nil {
		return nil, svcErr
	}
	series := analytics.BuildSeries(records, req.Metric)

	result, err := s.forecaster.ForecastMetricWith(series, days, method)
	if err != nil {
		s.recorder.ObserveForecast(string(method), err)
		s.logger.Warn("Forecast failed",
			"merchant_id", req.MerchantID,
			"metric", req.Metric,
			"method", method,
			"history", series.Len(),
			"error", err)
		return nil, analyticsError(err)
	}
	s.recorder.ObserveForecast(string(result.Method), nil)

	feed, err := buildForecastFeed(req.MerchantID, result)
	if err != nil {
		return nil, NewServiceErrorWithDetails(ErrCodeInternal, "Forecast feed contains non-finite values",
			map[string]interface{}{"error": err.Error()})
	}

	s.logger.Info("Forecast completed",
		"merchant_id", req.MerchantID,
		"metric", req.Metric,
		"method", result.Method,
		"horizon", days,
		"history", result.HistorySize,
		"latency_ms", time.Since(startExec).Milliseconds())

	return feed, nil
}
