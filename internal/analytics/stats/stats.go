// Package stats holds the numeric primitives shared by the anomaly detector,
// the forecasting engine and the insights engine.
//
// Standard deviations are population deviations (divide by n). Every caller in
// the analytics core uses this package, so the choice is applied uniformly.
package stats

import (
	"fmt"
	"math"

	"github.com/merchantlens/merchantlens/internal/analytics"
	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes a window of values.
type Statistics struct {
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
}

// ComputeStatistics returns mean and population standard deviation of values.
func ComputeStatistics(values []float64) (Statistics, error) {
	if len(values) == 0 {
		return Statistics{}, fmt.Errorf("%w: cannot compute statistics of an empty sequence", analytics.ErrInvalidInput)
	}
	if err := checkFinite(values); err != nil {
		return Statistics{}, err
	}

	mean, err := mstats.Mean(values)
	if err != nil {
		return Statistics{}, fmt.Errorf("%w: %v", analytics.ErrInvalidInput, err)
	}

	stdDev := 0.0
	if len(values) > 1 {
		stdDev, err = mstats.StandardDeviationPopulation(values)
		if err != nil {
			return Statistics{}, fmt.Errorf("%w: %v", analytics.ErrInvalidInput, err)
		}
		// Rounding can leave a tiny residue for constant input.
		if stdDev < 0 || isConstant(values) {
			stdDev = 0
		}
	}

	return Statistics{
		Mean:       mean,
		StdDev:     stdDev,
		SampleSize: len(values),
	}, nil
}

// Trend is an ordinary least squares line fitted against index position.
type Trend struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
}

// At evaluates the fitted line at index position x.
func (t Trend) At(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// FitTrend fits y = intercept + slope*i over values indexed 0..n-1.
func FitTrend(values []float64) (Trend, error) {
	if len(values) == 0 {
		return Trend{}, fmt.Errorf("%w: cannot fit a trend to an empty sequence", analytics.ErrInvalidInput)
	}
	if err := checkFinite(values); err != nil {
		return Trend{}, err
	}
	if len(values) == 1 {
		return Trend{Intercept: values[0]}, nil
	}
	if isConstant(values) {
		return Trend{Intercept: values[0]}, nil
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	return Trend{Intercept: intercept, Slope: slope}, nil
}

// ComputeTrendSlope returns the OLS slope of values against index position.
func ComputeTrendSlope(values []float64) (float64, error) {
	trend, err := FitTrend(values)
	if err != nil {
		return 0, err
	}
	return trend.Slope, nil
}

// PercentChange returns (to-from)/from*100. ok is false when from is zero and
// the ratio is undefined.
func PercentChange(from, to float64) (change float64, ok bool) {
	if from == 0 {
		return 0, false
	}
	return (to - from) / math.Abs(from) * 100, true
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at position %d", analytics.ErrInvalidInput, i)
		}
	}
	return nil
}
