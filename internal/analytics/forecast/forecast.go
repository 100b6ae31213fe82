// Package forecast projects a merchant's daily metric forward with a widening
// confidence interval and reports how well the chosen method would have
// predicted the most recent days.
package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// Method names a forecasting method
type Method string

const (
	MethodLinear Method = "linear" // Least-squares trend line
	MethodHolt   Method = "holt"   // Holt linear exponential smoothing
	MethodAuto   Method = "auto"   // Pick by backtest RMSE
)

// ParseMethod resolves an external method name.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodLinear, MethodHolt, MethodAuto:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown forecast method %q", analytics.ErrInvalidParameters, s)
}

// ForecastPoint is the prediction for one future day.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_value"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
}

// Accuracy summarizes the backtest over the withheld trailing days.
type Accuracy struct {
	// MAPE is nil when every withheld actual is zero.
	MAPE *float64 `json:"mape"`
	RMSE float64  `json:"rmse"`
	// HoldoutDays is the number of withheld days.
	HoldoutDays int `json:"holdout_days"`
}

// ForecastResult contains the predictions and how they were produced
type ForecastResult struct {
	Metric         analytics.MetricKind `json:"metric"`
	Method         Method               `json:"method"`
	Methodology    string               `json:"methodology"`
	Accuracy       Accuracy             `json:"accuracy"`
	Points         []ForecastPoint      `json:"points"`
	ResidualStdDev float64              `json:"residual_std_dev"`
	HistorySize    int                  `json:"history_size"`
}

// Config holds forecasting parameters
type Config struct {
	MinHistory      int     // Minimum series length
	MaxHorizon      int     // Largest accepted daysAhead
	Confidence      float64 // Two-sided interval coverage (0-1)
	HoldoutFraction float64 // Share of trailing points withheld for the backtest
	Method          Method  // linear, holt or auto
	Alpha           float64 // Holt level smoothing (0-1]
	Beta            float64 // Holt trend smoothing (0-1]
}

// DefaultConfig returns default forecast configuration
func DefaultConfig() Config {
	return Config{
		MinHistory:      14,
		MaxHorizon:      30,
		Confidence:      0.95,
		HoldoutFraction: 0.2,
		Method:          MethodAuto,
		Alpha:           0.3,
		Beta:            0.1,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MinHistory < 4 {
		return fmt.Errorf("%w: min history must be at least 4, got %d", analytics.ErrInvalidParameters, c.MinHistory)
	}
	if c.MaxHorizon < 1 {
		return fmt.Errorf("%w: max horizon must be at least 1, got %d", analytics.ErrInvalidParameters, c.MaxHorizon)
	}
	if !(c.Confidence > 0 && c.Confidence < 1) {
		return fmt.Errorf("%w: confidence must be in (0, 1), got %v", analytics.ErrInvalidParameters, c.Confidence)
	}
	if !(c.HoldoutFraction > 0 && c.HoldoutFraction < 1) {
		return fmt.Errorf("%w: holdout fraction must be in (0, 1), got %v", analytics.ErrInvalidParameters, c.HoldoutFraction)
	}
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if !(c.Alpha > 0 && c.Alpha <= 1) || !(c.Beta > 0 && c.Beta <= 1) {
		return fmt.Errorf("%w: smoothing factors must be in (0, 1], got alpha=%v beta=%v",
			analytics.ErrInvalidParameters, c.Alpha, c.Beta)
	}
	return nil
}

// InsufficientDataError reports a series shorter than MinHistory.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d daily points, have %d", e.Need, e.Have)
}

// Unwrap lets errors.Is match analytics.ErrInsufficientData.
func (e *InsufficientDataError) Unwrap() error {
	return analytics.ErrInsufficientData
}

// Fit is a method fitted to a history.
type Fit struct {
	// Fitted holds the in-sample one-step predictions, aligned with the history
	Fitted []float64
	// Params are the fitted parameters, for the methodology text
	Params map[string]float64

	predict func(k int) float64
}

// Predict returns the point forecast k steps past the end of the history.
func (f *Fit) Predict(k int) float64 {
	return f.predict(k)
}

// Forecaster fits one method to a value sequence.
type Forecaster interface {
	Name() Method
	Fit(values []float64) (*Fit, error)
}

// CalculateMAPE calculates Mean Absolute Percentage Error, skipping zero
// actuals. ok is false when every actual is zero.
func CalculateMAPE(actual, predicted []float64) (mape float64, ok bool) {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0, false
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}

	if count == 0 {
		return 0, false
	}
	return (sum / float64(count)) * 100, true
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// residualStdDev is the population standard deviation of actual - fitted.
func residualStdDev(actual, fitted []float64) float64 {
	residuals := make([]float64, len(actual))
	for i := range actual {
		residuals[i] = actual[i] - fitted[i]
	}
	s, err := stats.ComputeStatistics(residuals)
	if err != nil {
		return 0
	}
	return s.StdDev
}

// zForConfidence returns the two-sided standard normal quantile.
func zForConfidence(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// intervalHalfWidth grows with the square root of the step so that the
// interval never narrows further out.
func intervalHalfWidth(stdDev, z float64, k int) float64 {
	return stdDev * z * math.Sqrt(float64(k))
}
