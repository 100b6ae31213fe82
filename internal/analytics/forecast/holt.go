package forecast

import (
	"fmt"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

// HoltForecaster implements Holt's linear exponential smoothing: a smoothed
// level plus a smoothed trend, projected as level + k*trend.
type HoltForecaster struct {
	alpha float64
	beta  float64
}

// NewHoltForecaster creates a Holt forecaster with level smoothing alpha and
// trend smoothing beta, both in (0, 1].
func NewHoltForecaster(alpha, beta float64) *HoltForecaster {
	return &HoltForecaster{alpha: alpha, beta: beta}
}

// Name returns the method name
func (f *HoltForecaster) Name() Method {
	return MethodHolt
}

// Fit runs the smoothing recursion over values.
func (f *HoltForecaster) Fit(values []float64) (*Fit, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("%w: holt fit needs 2 points, have %d", analytics.ErrInsufficientData, len(values))
	}
	if !(f.alpha > 0 && f.alpha <= 1) || !(f.beta > 0 && f.beta <= 1) {
		return nil, fmt.Errorf("%w: alpha=%v beta=%v", analytics.ErrInvalidParameters, f.alpha, f.beta)
	}

	level := values[0]
	trend := values[1] - values[0]

	fitted := make([]float64, len(values))
	fitted[0] = values[0]

	for i := 1; i < len(values); i++ {
		// One-step-ahead prediction made before seeing values[i]
		fitted[i] = level + trend

		prevLevel := level
		level = f.alpha*values[i] + (1-f.alpha)*(level+trend)
		trend = f.beta*(level-prevLevel) + (1-f.beta)*trend
	}

	finalLevel, finalTrend := level, trend
	return &Fit{
		Fitted: fitted,
		Params: map[string]float64{
			"alpha": f.alpha,
			"beta":  f.beta,
			"level": finalLevel,
			"trend": finalTrend,
		},
		predict: func(k int) float64 {
			return finalLevel + float64(k)*finalTrend
		},
	}, nil
}
