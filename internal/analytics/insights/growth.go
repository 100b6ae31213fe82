package insights

import (
	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// growth compares the trailing window of a series with the window before it.
type growth struct {
	recentMean float64
	priorMean  float64
	change     float64 // percent
	slope      float64 // per day, over both windows
}

// measureGrowth needs 2*window points and a non-zero prior mean.
func measureGrowth(series analytics.MetricSeries, window int) (growth, bool) {
	if series.Len() < 2*window {
		return growth{}, false
	}

	values := series.Tail(2 * window).Values()
	prior, err := stats.ComputeStatistics(values[:window])
	if err != nil {
		return growth{}, false
	}
	recent, err := stats.ComputeStatistics(values[window:])
	if err != nil {
		return growth{}, false
	}

	change, ok := stats.PercentChange(prior.Mean, recent.Mean)
	if !ok {
		return growth{}, false
	}

	slope, err := stats.ComputeTrendSlope(values)
	if err != nil {
		return growth{}, false
	}

	return growth{
		recentMean: recent.Mean,
		priorMean:  prior.Mean,
		change:     change,
		slope:      slope,
	}, true
}
