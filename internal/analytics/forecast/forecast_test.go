package forecast

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

var testBaseDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func createTestSeries(values []float64) analytics.MetricSeries {
	points := make([]analytics.TimeSeriesPoint, len(values))
	for i, v := range values {
		points[i] = analytics.TimeSeriesPoint{
			Date:  testBaseDate.AddDate(0, 0, i),
			Value: v,
		}
	}
	return analytics.MetricSeries{Metric: analytics.MetricRevenue, Points: points}
}

// generateLinearValues creates values on y = slope*x + intercept
func generateLinearValues(n int, slope, intercept float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = slope*float64(i) + intercept
	}
	return values
}

// generateNoisyValues creates a deterministic level with bounded noise
func generateNoisyValues(n int, level, amplitude float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = level + amplitude*math.Sin(float64(i))
	}
	return values
}

func newTestEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	engine, err := NewEngine(config)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestForecastMetric_IntervalWidthNonDecreasing(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	for _, method := range []Method{MethodLinear, MethodHolt, MethodAuto} {
		t.Run(string(method), func(t *testing.T) {
			result, err := engine.ForecastMetricWith(createTestSeries(generateNoisyValues(60, 1000, 50)), 30, method)
			if err != nil {
				t.Fatalf("ForecastMetric failed: %v", err)
			}
			if len(result.Points) != 30 {
				t.Fatalf("Expected 30 points, got %d", len(result.Points))
			}

			prevWidth := -1.0
			for i, p := range result.Points {
				if p.LowerBound > p.PredictedValue || p.PredictedValue > p.UpperBound {
					t.Errorf("Step %d: prediction %v outside [%v, %v]", i+1, p.PredictedValue, p.LowerBound, p.UpperBound)
				}
				width := p.UpperBound - p.LowerBound
				if width < prevWidth {
					t.Errorf("Step %d: width %v narrower than previous %v", i+1, width, prevWidth)
				}
				prevWidth = width
			}
			if prevWidth <= 0 {
				t.Error("Expected a positive interval width for a noisy series")
			}
		})
	}
}

func TestForecastMetric_InsufficientHistory(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	_, err := engine.ForecastMetric(createTestSeries(generateNoisyValues(13, 100, 5)), 7)
	if !errors.Is(err, analytics.ErrInsufficientData) {
		t.Fatalf("Expected ErrInsufficientData, got %v", err)
	}

	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected *InsufficientDataError, got %T", err)
	}
	if insufficient.Have != 13 || insufficient.Need != 14 {
		t.Errorf("Expected have=13 need=14, got have=%d need=%d", insufficient.Have, insufficient.Need)
	}
}

func TestForecastMetric_InvalidHorizon(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	series := createTestSeries(generateNoisyValues(30, 100, 5))

	for _, days := range []int{0, -1, 31} {
		if _, err := engine.ForecastMetric(series, days); !errors.Is(err, analytics.ErrInvalidParameters) {
			t.Errorf("daysAhead=%d: expected ErrInvalidParameters, got %v", days, err)
		}
	}
}

func TestForecastMetric_NonFiniteInput(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	values := generateNoisyValues(20, 100, 5)
	values[4] = math.Inf(1)

	if _, err := engine.ForecastMetric(createTestSeries(values), 7); !errors.Is(err, analytics.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestForecastMetric_ConstantSeries(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.ForecastMetric(createTestSeries(generateLinearValues(20, 0, 250)), 7)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}

	if result.Method != MethodLinear {
		t.Errorf("Expected tie to resolve to linear, got %s", result.Method)
	}
	for _, p := range result.Points {
		if p.PredictedValue != 250 || p.LowerBound != 250 || p.UpperBound != 250 {
			t.Errorf("Expected zero-width interval at 250, got %+v", p)
		}
	}
	if result.Accuracy.RMSE != 0 {
		t.Errorf("Expected zero backtest RMSE, got %v", result.Accuracy.RMSE)
	}
}

func TestForecastMetric_AllZeroSeriesHasNoMAPE(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.ForecastMetric(createTestSeries(make([]float64, 14)), 3)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}
	if result.Accuracy.MAPE != nil {
		t.Errorf("Expected nil MAPE for all-zero actuals, got %v", *result.Accuracy.MAPE)
	}
}

func TestForecastMetric_LinearTrend(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	series := createTestSeries(generateLinearValues(30, 5, 100))

	result, err := engine.ForecastMetricWith(series, 7, MethodLinear)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}

	for i, p := range result.Points {
		k := i + 1
		want := 100 + 5*float64(29+k)
		if math.Abs(p.PredictedValue-want) > 1e-6 {
			t.Errorf("Step %d: expected %v, got %v", k, want, p.PredictedValue)
		}
		if !p.Date.Equal(series.LastDate().AddDate(0, 0, k)) {
			t.Errorf("Step %d: expected date %v, got %v", k, series.LastDate().AddDate(0, 0, k), p.Date)
		}
	}
	if result.Accuracy.MAPE == nil || *result.Accuracy.MAPE > 1e-6 {
		t.Errorf("Expected near-zero MAPE on a perfect line, got %v", result.Accuracy.MAPE)
	}
	if result.Accuracy.HoldoutDays != 6 {
		t.Errorf("Expected holdout of 6 days, got %d", result.Accuracy.HoldoutDays)
	}
}

func TestForecastMetric_AutoMethodology(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.ForecastMetric(createTestSeries(generateNoisyValues(60, 1000, 50)), 7)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}
	if result.Method != MethodLinear && result.Method != MethodHolt {
		t.Errorf("Expected a concrete method, got %s", result.Method)
	}
	if !strings.Contains(result.Methodology, "Selected automatically") {
		t.Errorf("Expected methodology to explain the selection, got %q", result.Methodology)
	}
	if result.HistorySize != 60 {
		t.Errorf("Expected history size 60, got %d", result.HistorySize)
	}
}

func TestForecastMetric_ExplicitHolt(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	result, err := engine.ForecastMetricWith(createTestSeries(generateNoisyValues(30, 500, 20)), 5, MethodHolt)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}
	if result.Method != MethodHolt {
		t.Errorf("Expected holt, got %s", result.Method)
	}
	if strings.Contains(result.Methodology, "Selected automatically") {
		t.Error("Expected no selection note for an explicit method")
	}
}

func TestForecastMetric_Idempotent(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())
	series := createTestSeries(generateNoisyValues(45, 300, 40))

	first, err := engine.ForecastMetric(series, 14)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}
	second, err := engine.ForecastMetric(series, 14)
	if err != nil {
		t.Fatalf("ForecastMetric failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical output for identical input")
	}
}

func TestHoltForecaster_Fit(t *testing.T) {
	f := NewHoltForecaster(0.3, 0.1)

	fit, err := f.Fit(generateLinearValues(10, 2, 1))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for k := 1; k <= 3; k++ {
		want := 1 + 2*float64(9+k)
		if math.Abs(fit.Predict(k)-want) > 1e-9 {
			t.Errorf("Predict(%d): expected %v, got %v", k, want, fit.Predict(k))
		}
	}

	if _, err := f.Fit([]float64{1}); !errors.Is(err, analytics.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for one point, got %v", err)
	}
}

func TestEngine_HoldoutSize(t *testing.T) {
	engine := newTestEngine(t, DefaultConfig())

	tests := []struct {
		n    int
		want int
	}{
		{4, 1},
		{14, 3},
		{60, 12},
	}
	for _, tt := range tests {
		if got := engine.holdoutSize(tt.n); got != tt.want {
			t.Errorf("holdoutSize(%d): expected %d, got %d", tt.n, tt.want, got)
		}
	}

	config := DefaultConfig()
	config.HoldoutFraction = 0.9
	wide := newTestEngine(t, config)
	if got := wide.holdoutSize(20); got != 17 {
		t.Errorf("Expected holdout capped at 17, got %d", got)
	}
}

func TestCalculateMAPE(t *testing.T) {
	mape, ok := CalculateMAPE([]float64{0, 100}, []float64{5, 110})
	if !ok || math.Abs(mape-10) > 1e-9 {
		t.Errorf("Expected 10%% skipping the zero actual, got %v (ok=%v)", mape, ok)
	}

	if _, ok := CalculateMAPE([]float64{0, 0}, []float64{1, 2}); ok {
		t.Error("Expected undefined MAPE for all-zero actuals")
	}
}

func TestCalculateRMSE(t *testing.T) {
	got := CalculateRMSE([]float64{1, 2, 3}, []float64{2, 2, 5})
	want := math.Sqrt(5.0 / 3.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestZForConfidence(t *testing.T) {
	if z := zForConfidence(0.95); math.Abs(z-1.959964) > 1e-5 {
		t.Errorf("Expected z=1.96 for 95%%, got %v", z)
	}
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"min history too small", func(c *Config) { c.MinHistory = 3 }},
		{"zero horizon", func(c *Config) { c.MaxHorizon = 0 }},
		{"confidence of one", func(c *Config) { c.Confidence = 1 }},
		{"zero holdout", func(c *Config) { c.HoldoutFraction = 0 }},
		{"unknown method", func(c *Config) { c.Method = "arima" }},
		{"zero alpha", func(c *Config) { c.Alpha = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(&config)
			if _, err := NewEngine(config); !errors.Is(err, analytics.ErrInvalidParameters) {
				t.Errorf("Expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Holt ")
	if err != nil || m != MethodHolt {
		t.Errorf("Expected holt, got %s (%v)", m, err)
	}
	if _, err := ParseMethod("prophet"); err == nil {
		t.Error("Expected error for unknown method")
	}
}

func BenchmarkForecastMetric(b *testing.B) {
	engine, _ := NewEngine(DefaultConfig())
	series := createTestSeries(generateNoisyValues(90, 1000, 50))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = engine.ForecastMetric(series, 30)
	}
}
