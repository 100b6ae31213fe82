package anomaly

import (
	"math"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// Detector detects anomalies using Z-Score (standard score).
// Z-Score measures how many standard deviations a point is from the baseline
// mean; recent days with |Z| > threshold are anomalies.
//
// The baseline is the whole supplied window, including the recent days under
// test. A sharp outlier therefore inflates its own baseline, which dampens
// sensitivity to sustained shifts.
type Detector struct {
	config Config
}

// NewDetector creates a detector after validating config
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{config: config}, nil
}

// Config returns the detector configuration
func (d *Detector) Config() Config {
	return d.config
}

// Detect finds anomalies among the trailing RecentWindow days of series.
func (d *Detector) Detect(series analytics.MetricSeries) Result {
	result := Result{
		Metric:    series.Metric,
		Anomalies: make([]Anomaly, 0),
	}

	window := series.Tail(d.config.BaselineWindow)
	if window.Len() < d.config.RecentWindow {
		result.Reason = ReasonInsufficientData
		return result
	}

	values := window.Values()
	baseline, err := stats.ComputeStatistics(values)
	if err != nil {
		result.Reason = ReasonNonFinite
		return result
	}
	result.Baseline = baseline

	// Avoid division by zero; a constant series cannot be anomalous
	if baseline.StdDev == 0 {
		result.Reason = ReasonZeroVariance
		return result
	}

	highCutoff := d.highCutoff(baseline.SampleSize)

	for i := len(values) - d.config.RecentWindow; i < len(values); i++ {
		zScore := (values[i] - baseline.Mean) / baseline.StdDev
		if math.Abs(zScore) <= d.config.ZThreshold {
			continue
		}

		direction := AnomalyTypeDrop
		if zScore > 0 {
			direction = AnomalyTypeSpike
		}

		severity := SeverityMedium
		if math.Abs(zScore) > highCutoff {
			severity = SeverityHigh
		}

		var deviation *float64
		if change, ok := stats.PercentChange(baseline.Mean, values[i]); ok {
			deviation = &change
		}

		a := Anomaly{
			Metric:           series.Metric,
			Date:             window.Points[i].Date,
			ObservedValue:    values[i],
			ExpectedValue:    baseline.Mean,
			DeviationPercent: deviation,
			ZScore:           zScore,
			Direction:        direction,
			Severity:         severity,
		}
		a.Description = describe(a)
		a.Recommendation = recommend(a.Metric, a.Direction, a.Severity)

		result.Anomalies = append(result.Anomalies, a)
	}

	SortAnomalies(result.Anomalies)
	return result
}

// DetectAll runs Detect for every series and merges the results.
func (d *Detector) DetectAll(series []analytics.MetricSeries) Report {
	results := make([]Result, len(series))
	for i, s := range series {
		results[i] = d.Detect(s)
	}
	return Merge(results)
}

// highCutoff returns the |z| above which an anomaly is high severity for a
// baseline of n points.
//
// With a population stddev no point can sit further than sqrt(n-1) deviations
// from the mean (Samuelson's inequality). When that bound does not exceed
// HighSeverityZ the high tier would be unreachable, so the cutoff drops to the
// midpoint between ZThreshold and the bound.
func (d *Detector) highCutoff(n int) float64 {
	cutoff := d.config.HighSeverityZ
	if !d.config.CalibrateSmallSamples || n < 2 {
		return cutoff
	}

	bound := math.Sqrt(float64(n - 1))
	if bound > cutoff {
		return cutoff
	}
	if mid := (d.config.ZThreshold + bound) / 2; mid < cutoff {
		cutoff = mid
	}
	return cutoff
}
