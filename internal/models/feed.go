package models

// AnomalyFeed is the anomaly report for one merchant
type AnomalyFeed struct {
	MerchantID      string          `json:"merchant_id"`
	ThresholdZScore float64         `json:"threshold_z_score"`
	LookbackDays    int             `json:"lookback_days"`
	AnomalyCount    int             `json:"anomaly_count"`
	Anomalies       []AnomalyEntry  `json:"anomalies"`
	Skipped         []SkippedMetric `json:"skipped,omitempty"`
}

// AnomalyEntry is one flagged day
type AnomalyEntry struct {
	Metric           string   `json:"metric"`
	Type             string   `json:"type"` // spike, drop
	Severity         string   `json:"severity"`
	Date             string   `json:"date"` // YYYY-MM-DD
	Value            float64  `json:"value"`
	ExpectedValue    float64  `json:"expected_value"`
	DeviationPercent *float64 `json:"deviation_percent"` // null when the baseline mean is zero
	ZScore           float64  `json:"z_score"`
	Description      string   `json:"description,omitempty"`
	Recommendation   string   `json:"recommendation,omitempty"`
}

// SkippedMetric notes a metric that was not evaluated
type SkippedMetric struct {
	Metric string `json:"metric"`
	Reason string `json:"reason"`
}

// ForecastFeed is the forecast for one merchant metric
type ForecastFeed struct {
	MerchantID  string          `json:"merchant_id"`
	Metric      string          `json:"metric"`
	Method      string          `json:"method"`
	Methodology string          `json:"methodology"`
	Accuracy    ForecastQuality `json:"accuracy"`
	Forecast    []ForecastEntry `json:"forecast"`
}

// ForecastQuality reports backtest accuracy
type ForecastQuality struct {
	MAPE        *float64 `json:"mape"` // null when every withheld actual is zero
	RMSE        float64  `json:"rmse"`
	HoldoutDays int      `json:"holdout_days"`
}

// ForecastEntry is the prediction for one day
type ForecastEntry struct {
	Date               string             `json:"date"`
	PredictedValue     float64            `json:"predicted_value"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

// ConfidenceInterval bounds a prediction
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// InsightFeed lists insights for one merchant
type InsightFeed struct {
	MerchantID   string         `json:"merchant_id"`
	InsightCount int            `json:"insight_count"`
	Insights     []InsightEntry `json:"insights"`
}

// InsightEntry is one insight with its evidence
type InsightEntry struct {
	Type             string             `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Metric           string             `json:"metric"`
	SupportingValues map[string]float64 `json:"supporting_values"`
}
