package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/anomaly"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/analytics/insights"
	"github.com/merchantlens/merchantlens/internal/config"
	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/metrics"
	"github.com/merchantlens/merchantlens/internal/store"
)

var testNow = time.Date(2024, 6, 30, 15, 30, 0, 0, time.UTC)

// dayBefore returns the date n days before testNow's calendar day
func dayBefore(n int) time.Time {
	return time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -n)
}

func newTestService(t *testing.T, s store.MetricStore, mutate ...func(*config.AnalyticsConfig)) *AnalyticsService {
	t.Helper()
	cfg := config.DefaultConfig().Analytics
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := NewAnalyticsService(logging.NewNop(), s, metrics.New(), cfg, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return svc
}

// seedSpike stores 90 days of revenue alternating 1050/950 with 3000 on the
// last day. Transactions are constant; customers and cashback are missing.
func seedSpike(s *store.MemoryStore, merchantID string) {
	s.PutMerchant(analytics.Merchant{ID: merchantID, Name: "Corner Cafe", Category: "food"})
	for i := 0; i < 90; i++ {
		revenue := 950.0
		if i%2 == 0 {
			revenue = 1050
		}
		if i == 89 {
			revenue = 3000
		}
		s.PutRecords(merchantID, analytics.DailyRecord{
			Date:         dayBefore(89 - i),
			Transactions: analytics.Float(100),
			Revenue:      analytics.Float(revenue),
		})
	}
}

// seedLinear stores 60 days of revenue rising by 10 per day from 100
func seedLinear(s *store.MemoryStore, merchantID string) {
	s.PutMerchant(analytics.Merchant{ID: merchantID, Name: "Bakery", Category: "food"})
	for i := 0; i < 60; i++ {
		s.PutRecords(merchantID, analytics.DailyRecord{
			Date:    dayBefore(59 - i),
			Revenue: analytics.Float(100 + 10*float64(i)),
		})
	}
}

// seedStep stores 14 days of revenue: prior week at prior, last week at recent
func seedStep(s *store.MemoryStore, m analytics.Merchant, prior, recent float64) {
	s.PutMerchant(m)
	for i := 0; i < 14; i++ {
		v := prior
		if i >= 7 {
			v = recent
		}
		s.PutRecords(m.ID, analytics.DailyRecord{Date: dayBefore(13 - i), Revenue: analytics.Float(v)})
	}
}

func requireServiceError(t *testing.T, err error, code string) *ServiceError {
	t.Helper()
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr), "expected *ServiceError, got %T", err)
	assert.Equal(t, code, svcErr.Code)
	return svcErr
}

func TestNewAnalyticsService_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig().Analytics
	cfg.Metrics = []string{"revenue", "footfall"}
	_, err := NewAnalyticsService(logging.NewNop(), store.NewMemoryStore(), nil, cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig().Analytics
	cfg.Forecast.Method = "arima"
	_, err = NewAnalyticsService(logging.NewNop(), store.NewMemoryStore(), nil, cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig().Analytics
	cfg.Anomaly.ZThreshold = 0
	_, err = NewAnalyticsService(logging.NewNop(), store.NewMemoryStore(), nil, cfg)
	assert.Error(t, err)
}

func TestDetectAnomalies_RevenueSpike(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	svc := newTestService(t, s)

	feed, err := svc.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1"})
	require.NoError(t, err)

	assert.Equal(t, "m-1", feed.MerchantID)
	assert.Equal(t, 2.0, feed.ThresholdZScore)
	assert.Equal(t, 90, feed.LookbackDays)
	require.Equal(t, 1, feed.AnomalyCount)
	require.Len(t, feed.Anomalies, 1)

	a := feed.Anomalies[0]
	assert.Equal(t, "revenue", a.Metric)
	assert.Equal(t, "spike", a.Type)
	assert.Equal(t, "high", a.Severity)
	assert.Equal(t, "2024-06-30", a.Date)
	assert.Equal(t, 3000.0, a.Value)
	require.NotNil(t, a.DeviationPercent)
	assert.InDelta(t, 193, *a.DeviationPercent, 2)
	assert.Greater(t, a.ZScore, 3.0)
	assert.NotEmpty(t, a.Description)
	assert.NotEmpty(t, a.Recommendation)

	// Transactions are constant; customers and cashback read as zero
	require.Len(t, feed.Skipped, 3)
	assert.Equal(t, "transactions", feed.Skipped[0].Metric)
	assert.Equal(t, string(anomaly.ReasonZeroVariance), feed.Skipped[0].Reason)
	assert.Equal(t, "customers", feed.Skipped[1].Metric)
	assert.Equal(t, "cashback", feed.Skipped[2].Metric)
}

func TestDetectAnomalies_MetricSubset(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	svc := newTestService(t, s)

	feed, err := svc.DetectAnomalies(context.Background(), &AnomalyRequest{
		MerchantID: "m-1",
		Metrics:    []analytics.MetricKind{analytics.MetricRevenue},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, feed.AnomalyCount)
	assert.Empty(t, feed.Skipped)
}

func TestDetectAnomalies_ThresholdAboveHighSeverity(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	svc := newTestService(t, s)

	feed, err := svc.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1", Threshold: 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, feed.ThresholdZScore)
	require.Len(t, feed.Anomalies, 1)
	assert.Equal(t, "high", feed.Anomalies[0].Severity)

	feed, err = svc.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1", Threshold: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, feed.AnomalyCount)
	assert.NotNil(t, feed.Anomalies)
}

func TestDetectAnomalies_ShortHistory(t *testing.T) {
	s := store.NewMemoryStore()
	s.PutMerchant(analytics.Merchant{ID: "new"})
	for i := 0; i < 3; i++ {
		s.PutRecords("new", analytics.DailyRecord{Date: dayBefore(i), Revenue: analytics.Float(float64(10 * (i + 1)))})
	}
	svc := newTestService(t, s)

	feed, err := svc.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "new"})
	require.NoError(t, err)
	assert.Equal(t, 0, feed.AnomalyCount)
	require.Len(t, feed.Skipped, 4)
	for _, skip := range feed.Skipped {
		assert.Equal(t, string(anomaly.ReasonInsufficientData), skip.Reason)
	}
}

func TestDetectAnomalies_Errors(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	svc := newTestService(t, s)
	ctx := context.Background()

	_, err := svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "missing"})
	requireServiceError(t, err, ErrCodeMerchantNotFound)

	_, err = svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "m-1", Threshold: -1})
	svcErr := requireServiceError(t, err, ErrCodeInvalidParameters)
	assert.Equal(t, "threshold", svcErr.Details["parameter"])

	_, err = svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "m-1", LookbackDays: -5})
	requireServiceError(t, err, ErrCodeInvalidParameters)

	_, err = svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "m-1", LookbackDays: 7, RecentDays: 7})
	requireServiceError(t, err, ErrCodeInvalidParameters)

	_, err = svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "m-1", Metrics: []analytics.MetricKind{"footfall"}})
	requireServiceError(t, err, ErrCodeInvalidMetric)
}

func TestDetectAnomalies_ConcurrencyDoesNotChangeOutput(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")

	sequential := newTestService(t, s, func(c *config.AnalyticsConfig) { c.Concurrency = 1 })
	parallel := newTestService(t, s, func(c *config.AnalyticsConfig) { c.Concurrency = 8 })

	want, err := sequential.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1", Threshold: 0.1})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := parallel.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1", Threshold: 0.1})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDetectAnomalies_Timezone(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	// 15:30 UTC on the 30th is already July 1st at +10:00
	svc := newTestService(t, s, func(c *config.AnalyticsConfig) { c.Timezone = "+10:00" })

	feed, err := svc.DetectAnomalies(context.Background(), &AnomalyRequest{MerchantID: "m-1", Metrics: []analytics.MetricKind{analytics.MetricRevenue}})
	require.NoError(t, err)
	require.Len(t, feed.Anomalies, 1)
	assert.Equal(t, "2024-06-30", feed.Anomalies[0].Date)
}

func TestForecast_LinearTrend(t *testing.T) {
	s := store.NewMemoryStore()
	seedLinear(s, "m-2")
	svc := newTestService(t, s)

	feed, err := svc.Forecast(context.Background(), &ForecastRequest{MerchantID: "m-2", Metric: analytics.MetricRevenue})
	require.NoError(t, err)

	assert.Equal(t, "m-2", feed.MerchantID)
	assert.Equal(t, "revenue", feed.Metric)
	// Both methods fit a straight line exactly; either may win the backtest
	assert.Contains(t, []string{string(forecast.MethodLinear), string(forecast.MethodHolt)}, feed.Method)
	assert.Contains(t, feed.Methodology, "Selected automatically")
	assert.Equal(t, 12, feed.Accuracy.HoldoutDays)
	assert.InDelta(t, 0, feed.Accuracy.RMSE, 1e-6)
	require.NotNil(t, feed.Accuracy.MAPE)

	require.Len(t, feed.Forecast, 7)
	assert.Equal(t, "2024-07-01", feed.Forecast[0].Date)
	assert.Equal(t, "2024-07-07", feed.Forecast[6].Date)
	assert.InDelta(t, 700, feed.Forecast[0].PredictedValue, 0.01)
	assert.InDelta(t, 760, feed.Forecast[6].PredictedValue, 0.01)
	for _, p := range feed.Forecast {
		assert.LessOrEqual(t, p.ConfidenceInterval.Lower, p.PredictedValue)
		assert.GreaterOrEqual(t, p.ConfidenceInterval.Upper, p.PredictedValue)
	}
}

func TestForecast_ExplicitMethodAndDays(t *testing.T) {
	s := store.NewMemoryStore()
	seedLinear(s, "m-2")
	svc := newTestService(t, s)

	feed, err := svc.Forecast(context.Background(), &ForecastRequest{
		MerchantID: "m-2",
		Metric:     analytics.MetricRevenue,
		Days:       3,
		Method:     forecast.MethodHolt,
	})
	require.NoError(t, err)
	assert.Equal(t, string(forecast.MethodHolt), feed.Method)
	assert.Len(t, feed.Forecast, 3)
}

func TestForecast_InsufficientHistory(t *testing.T) {
	s := store.NewMemoryStore()
	seedLinear(s, "m-2")
	svc := newTestService(t, s)

	_, err := svc.Forecast(context.Background(), &ForecastRequest{
		MerchantID:  "m-2",
		Metric:      analytics.MetricRevenue,
		HistoryDays: 10,
	})
	svcErr := requireServiceError(t, err, ErrCodeInsufficientData)
	assert.Equal(t, 10, svcErr.Details["have"])
	assert.Equal(t, 14, svcErr.Details["need"])
}

func TestForecast_Validation(t *testing.T) {
	s := store.NewMemoryStore()
	seedLinear(s, "m-2")
	svc := newTestService(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ForecastRequest
		code string
	}{
		{"unknown metric", ForecastRequest{MerchantID: "m-2", Metric: "footfall"}, ErrCodeInvalidMetric},
		{"days too large", ForecastRequest{MerchantID: "m-2", Metric: analytics.MetricRevenue, Days: 31}, ErrCodeInvalidParameters},
		{"negative days", ForecastRequest{MerchantID: "m-2", Metric: analytics.MetricRevenue, Days: -1}, ErrCodeInvalidParameters},
		{"negative history", ForecastRequest{MerchantID: "m-2", Metric: analytics.MetricRevenue, HistoryDays: -1}, ErrCodeInvalidParameters},
		{"unknown method", ForecastRequest{MerchantID: "m-2", Metric: analytics.MetricRevenue, Method: "prophet"}, ErrCodeInvalidParameters},
		{"unknown merchant", ForecastRequest{MerchantID: "missing", Metric: analytics.MetricRevenue}, ErrCodeMerchantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Forecast(ctx, &req)
			requireServiceError(t, err, tt.code)
		})
	}
}

func TestInsights_PeersFromCategory(t *testing.T) {
	s := store.NewMemoryStore()
	seedStep(s, analytics.Merchant{ID: "m-1", Name: "Corner Cafe", Category: "food"}, 100, 130)
	seedStep(s, analytics.Merchant{ID: "m-2", Category: "food"}, 100, 100)
	seedStep(s, analytics.Merchant{ID: "m-3", Category: "food"}, 200, 200)
	seedStep(s, analytics.Merchant{ID: "m-9", Category: "retail"}, 100, 500)
	svc := newTestService(t, s)

	feed, err := svc.Insights(context.Background(), &InsightsRequest{MerchantID: "m-1"})
	require.NoError(t, err)

	require.Equal(t, 2, feed.InsightCount)
	growth := feed.Insights[0]
	assert.Equal(t, string(insights.InsightSustainedGrowth), growth.Type)
	assert.Equal(t, "revenue", growth.Metric)
	assert.InDelta(t, 30, growth.SupportingValues[insights.KeyChangePercent], 1e-9)

	peers := feed.Insights[1]
	assert.Equal(t, string(insights.InsightOutperformingPeers), peers.Type)
	assert.InDelta(t, 0, peers.SupportingValues[insights.KeyPeerAverageChange], 1e-9)
	assert.InDelta(t, 30, peers.SupportingValues[insights.KeyDivergencePoints], 1e-9)
	assert.Equal(t, 2.0, peers.SupportingValues[insights.KeyPeerCount])
}

func TestInsights_ExplicitCompetitors(t *testing.T) {
	s := store.NewMemoryStore()
	seedStep(s, analytics.Merchant{ID: "m-1", Category: "food"}, 100, 130)
	seedStep(s, analytics.Merchant{ID: "m-9", Category: "retail"}, 100, 200)
	svc := newTestService(t, s)

	feed, err := svc.Insights(context.Background(), &InsightsRequest{
		MerchantID:  "m-1",
		Competitors: []string{"m-9", "m-1", "m-9"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, feed.InsightCount)
	assert.Equal(t, string(insights.InsightUnderperformingPeers), feed.Insights[1].Type)
	assert.Equal(t, 1.0, feed.Insights[1].SupportingValues[insights.KeyPeerCount])
}

func TestInsights_Errors(t *testing.T) {
	s := store.NewMemoryStore()
	seedStep(s, analytics.Merchant{ID: "m-1", Category: "food"}, 100, 130)
	svc := newTestService(t, s)
	ctx := context.Background()

	_, err := svc.Insights(ctx, &InsightsRequest{MerchantID: "missing"})
	requireServiceError(t, err, ErrCodeMerchantNotFound)

	_, err = svc.Insights(ctx, &InsightsRequest{MerchantID: "m-1", Competitors: []string{"ghost"}})
	svcErr := requireServiceError(t, err, ErrCodeMerchantNotFound)
	assert.Equal(t, "ghost", svcErr.Details["merchant_id"])

	_, err = svc.Insights(ctx, &InsightsRequest{MerchantID: "m-1", Window: -1})
	requireServiceError(t, err, ErrCodeInvalidParameters)

	many := make([]string, 21)
	for i := range many {
		many[i] = "peer"
	}
	_, err = svc.Insights(ctx, &InsightsRequest{MerchantID: "m-1", Competitors: many})
	requireServiceError(t, err, ErrCodeInvalidParameters)
}

func TestInsights_ShortWindowHistory(t *testing.T) {
	s := store.NewMemoryStore()
	seedStep(s, analytics.Merchant{ID: "m-1", Category: "food"}, 100, 130)
	svc := newTestService(t, s)

	// A 10-day window needs 20 days of history
	feed, err := svc.Insights(context.Background(), &InsightsRequest{MerchantID: "m-1", Window: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, feed.InsightCount)
	assert.NotNil(t, feed.Insights)
}

func TestAnalyticsService_CancelledContext(t *testing.T) {
	s := store.NewMemoryStore()
	seedSpike(s, "m-1")
	svc := newTestService(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.DetectAnomalies(ctx, &AnomalyRequest{MerchantID: "m-1"})
	requireServiceError(t, err, ErrCodeQueryFailed)
}
