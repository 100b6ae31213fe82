// Package anomaly flags statistically abnormal recent days in a merchant's
// daily metric series using z-scores against a trailing baseline.
package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/stats"
)

// AnomalyType is the direction of a detected anomaly
type AnomalyType string

const (
	AnomalyTypeSpike AnomalyType = "spike" // Value above baseline
	AnomalyTypeDrop  AnomalyType = "drop"  // Value below baseline
)

// Severity tiers a detected anomaly by the magnitude of its z-score
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// rank orders severities for sorting, higher first.
func (s Severity) rank() int {
	if s == SeverityHigh {
		return 0
	}
	return 1
}

// Reason explains why a metric produced no anomalies without being evaluated.
type Reason string

const (
	ReasonInsufficientData Reason = "insufficient data"
	ReasonZeroVariance     Reason = "zero variance"
	ReasonNonFinite        Reason = "non-finite values"
)

// Anomaly is one abnormal day of one metric.
type Anomaly struct {
	Metric        analytics.MetricKind `json:"metric"`
	Date          time.Time            `json:"date"`
	ObservedValue float64              `json:"observed_value"`
	ExpectedValue float64              `json:"expected_value"`
	// DeviationPercent is nil when the baseline mean is zero.
	DeviationPercent *float64    `json:"deviation_percent,omitempty"`
	ZScore           float64     `json:"z_score"`
	Direction        AnomalyType `json:"direction"`
	Severity         Severity    `json:"severity"`
	Description      string      `json:"description"`
	Recommendation   string      `json:"recommendation"`
}

// Result is the outcome of running detection over a single metric series.
type Result struct {
	Metric    analytics.MetricKind
	Anomalies []Anomaly
	Baseline  stats.Statistics
	// Reason is set when the metric was skipped; Anomalies is then empty.
	Reason Reason
}

// Skipped reports whether the metric was not evaluated.
func (r Result) Skipped() bool {
	return r.Reason != ""
}

// Skip records a metric that was not evaluated and why.
type Skip struct {
	Metric analytics.MetricKind `json:"metric"`
	Reason Reason               `json:"reason"`
}

// Report merges per-metric results in the documented order.
type Report struct {
	Anomalies []Anomaly
	Skipped   []Skip
}

// Config holds the detection parameters. Every field is threaded explicitly
// into the detector; there are no package-level defaults in effect.
type Config struct {
	// RecentWindow is the number of trailing days tested for anomalies
	RecentWindow int

	// BaselineWindow bounds the trailing span used for mean and stddev
	BaselineWindow int

	// ZThreshold is the |z| a day must exceed to be flagged
	ZThreshold float64

	// HighSeverityZ is the |z| above which an anomaly is high severity
	HighSeverityZ float64

	// CalibrateSmallSamples lowers the high-severity cutoff for baselines too
	// short to ever reach HighSeverityZ (see highCutoff).
	CalibrateSmallSamples bool
}

// DefaultConfig returns default detector configuration
func DefaultConfig() Config {
	return Config{
		RecentWindow:          7,
		BaselineWindow:        90,
		ZThreshold:            2.0,
		HighSeverityZ:         3.0,
		CalibrateSmallSamples: true,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.RecentWindow < 1 {
		return fmt.Errorf("%w: recent window must be at least 1, got %d", analytics.ErrInvalidParameters, c.RecentWindow)
	}
	if c.BaselineWindow < c.RecentWindow {
		return fmt.Errorf("%w: baseline window %d shorter than recent window %d",
			analytics.ErrInvalidParameters, c.BaselineWindow, c.RecentWindow)
	}
	if !(c.ZThreshold > 0) || math.IsInf(c.ZThreshold, 0) {
		return fmt.Errorf("%w: z threshold must be positive and finite, got %v", analytics.ErrInvalidParameters, c.ZThreshold)
	}
	if c.HighSeverityZ < c.ZThreshold || math.IsInf(c.HighSeverityZ, 0) {
		return fmt.Errorf("%w: high severity z %v below threshold %v",
			analytics.ErrInvalidParameters, c.HighSeverityZ, c.ZThreshold)
	}
	return nil
}

// SortAnomalies orders anomalies by date descending, high severity before
// medium on the same date, then by metric declaration order.
func SortAnomalies(anomalies []Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Severity != b.Severity {
			return a.Severity.rank() < b.Severity.rank()
		}
		return a.Metric.Order() < b.Metric.Order()
	})
}

// Merge combines per-metric results into a Report. Results may arrive in any
// order (for example from concurrent workers); the output order does not
// depend on it.
func Merge(results []Result) Report {
	report := Report{
		Anomalies: make([]Anomaly, 0),
		Skipped:   make([]Skip, 0),
	}

	for _, r := range results {
		if r.Skipped() {
			report.Skipped = append(report.Skipped, Skip{Metric: r.Metric, Reason: r.Reason})
			continue
		}
		report.Anomalies = append(report.Anomalies, r.Anomalies...)
	}

	SortAnomalies(report.Anomalies)
	sort.SliceStable(report.Skipped, func(i, j int) bool {
		return report.Skipped[i].Metric.Order() < report.Skipped[j].Metric.Order()
	})
	return report
}
