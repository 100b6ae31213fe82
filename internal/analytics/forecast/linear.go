package forecast

import (
	"fmt"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// LinearForecaster extrapolates the least-squares trend line
type LinearForecaster struct{}

// NewLinearForecaster creates a new linear trend forecaster
func NewLinearForecaster() *LinearForecaster {
	return &LinearForecaster{}
}

// Name returns the method name
func (f *LinearForecaster) Name() Method {
	return MethodLinear
}

// Fit fits y = intercept + slope*x with x the day index.
func (f *LinearForecaster) Fit(values []float64) (*Fit, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("%w: linear fit needs 2 points, have %d", analytics.ErrInsufficientData, len(values))
	}

	trend, err := stats.FitTrend(values)
	if err != nil {
		return nil, err
	}

	fitted := make([]float64, len(values))
	for i := range values {
		fitted[i] = trend.At(float64(i))
	}

	last := float64(len(values) - 1)
	return &Fit{
		Fitted: fitted,
		Params: map[string]float64{
			"slope":     trend.Slope,
			"intercept": trend.Intercept,
		},
		predict: func(k int) float64 {
			return trend.At(last + float64(k))
		},
	}, nil
}
