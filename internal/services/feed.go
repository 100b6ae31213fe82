package services

import (
	"fmt"

	"github.com/merchantlens/merchantlens/internal/analytics/anomaly"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/analytics/insights"
	"github.com/merchantlens/merchantlens/internal/models"
	"github.com/merchantlens/merchantlens/internal/utils"
)

// Decimal places kept in feeds
const (
	valuePlaces = 2
	scorePlaces = 2
)

// buildAnomalyFeed converts a detection report into its wire form
func buildAnomalyFeed(merchantID string, threshold float64, lookback int, report anomaly.Report) (*models.AnomalyFeed, error) {
	feed := &models.AnomalyFeed{
		MerchantID:      merchantID,
		ThresholdZScore: threshold,
		LookbackDays:    lookback,
		AnomalyCount:    len(report.Anomalies),
		Anomalies:       make([]models.AnomalyEntry, 0, len(report.Anomalies)),
	}

	for _, a := range report.Anomalies {
		if !utils.AllFinite(a.ObservedValue, a.ExpectedValue, a.ZScore) ||
			(a.DeviationPercent != nil && !utils.IsFinite(*a.DeviationPercent)) {
			return nil, fmt.Errorf("anomaly for %s on %s", a.Metric, a.Date.Format(utils.DateLayout))
		}
		feed.Anomalies = append(feed.Anomalies, models.AnomalyEntry{
			Metric:           string(a.Metric),
			Type:             string(a.Direction),
			Severity:         string(a.Severity),
			Date:             a.Date.Format(utils.DateLayout),
			Value:            utils.Round(a.ObservedValue, valuePlaces),
			ExpectedValue:    utils.Round(a.ExpectedValue, valuePlaces),
			DeviationPercent: utils.RoundPtr(a.DeviationPercent, valuePlaces),
			ZScore:           utils.Round(a.ZScore, scorePlaces),
			Description:      a.Description,
			Recommendation:   a.Recommendation,
		})
	}

	for _, skip := range report.Skipped {
		feed.Skipped = append(feed.Skipped, models.SkippedMetric{
			Metric: string(skip.Metric),
			Reason: string(skip.Reason),
		})
	}

	return feed, nil
}

// buildForecastFeed converts a forecast result into its wire form
func buildForecastFeed(merchantID string, result *forecast.ForecastResult) (*models.ForecastFeed, error) {
	if !utils.IsFinite(result.Accuracy.RMSE) ||
		(result.Accuracy.MAPE != nil && !utils.IsFinite(*result.Accuracy.MAPE)) {
		return nil, fmt.Errorf("forecast accuracy for %s", result.Metric)
	}

	feed := &models.ForecastFeed{
		MerchantID:  merchantID,
		Metric:      string(result.Metric),
		Method:      string(result.Method),
		Methodology: result.Methodology,
		Accuracy: models.ForecastQuality{
			MAPE:        utils.RoundPtr(result.Accuracy.MAPE, valuePlaces),
			RMSE:        utils.Round(result.Accuracy.RMSE, valuePlaces),
			HoldoutDays: result.Accuracy.HoldoutDays,
		},
		Forecast: make([]models.ForecastEntry, 0, len(result.Points)),
	}

	for _, p := range result.Points {
		if !utils.AllFinite(p.PredictedValue, p.LowerBound, p.UpperBound) {
			return nil, fmt.Errorf("forecast for %s on %s", result.Metric, p.Date.Format(utils.DateLayout))
		}
		feed.Forecast = append(feed.Forecast, models.ForecastEntry{
			Date:           p.Date.Format(utils.DateLayout),
			PredictedValue: utils.Round(p.PredictedValue, valuePlaces),
			ConfidenceInterval: models.ConfidenceInterval{
				Lower: utils.Round(p.LowerBound, valuePlaces),
				Upper: utils.Round(p.UpperBound, valuePlaces),
			},
		})
	}

	return feed, nil
}

// buildInsightFeed converts insights into their wire form
func buildInsightFeed(merchantID string, found []insights.Insight) (*models.InsightFeed, error) {
	feed := &models.InsightFeed{
		MerchantID:   merchantID,
		InsightCount: len(found),
		Insights:     make([]models.InsightEntry, 0, len(found)),
	}

	for _, in := range found {
		values := make(map[string]float64, len(in.SupportingValues))
		for k, v := range in.SupportingValues {
			if !utils.IsFinite(v) {
				return nil, fmt.Errorf("insight %s for %s has non-finite %s", in.Type, in.Metric, k)
			}
			values[k] = utils.Round(v, valuePlaces)
		}
		feed.Insights = append(feed.Insights, models.InsightEntry{
			Type:             string(in.Type),
			Title:            in.Title,
			Description:      in.Description,
			Metric:           string(in.Metric),
			SupportingValues: values,
		})
	}

	return feed, nil
}
