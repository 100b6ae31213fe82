// Package analytics provides the shared types of the merchant analytics core:
// the closed set of tracked metrics, daily records as delivered by the storage
// collaborator, and the per-metric ordered series the engines consume.
package analytics

import (
	"fmt"
	"strings"
	"time"
)

// MetricKind identifies one tracked daily metric. The set is closed; use
// ParseMetricKind at the system boundary and pass MetricKind values inward.
type MetricKind string

const (
	MetricTransactions MetricKind = "transactions" // Transaction count
	MetricRevenue      MetricKind = "revenue"      // Gross revenue
	MetricCustomers    MetricKind = "customers"    // Unique customers
	MetricCashback     MetricKind = "cashback"     // Cashback paid out
)

// AllMetrics returns every tracked metric in declaration order.
func AllMetrics() []MetricKind {
	return []MetricKind{MetricTransactions, MetricRevenue, MetricCustomers, MetricCashback}
}

// ParseMetricKind resolves an external identifier into a MetricKind.
func ParseMetricKind(s string) (MetricKind, error) {
	kind := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, s)
	}
	return kind, nil
}

// Valid reports whether m is one of the tracked metrics.
func (m MetricKind) Valid() bool {
	switch m {
	case MetricTransactions, MetricRevenue, MetricCustomers, MetricCashback:
		return true
	}
	return false
}

// Order returns the declaration index of m, used as a stable tie-breaker.
func (m MetricKind) Order() int {
	for i, k := range AllMetrics() {
		if k == m {
			return i
		}
	}
	return len(AllMetrics())
}

// Label returns a human-readable metric name for narrative text.
func (m MetricKind) Label() string {
	switch m {
	case MetricTransactions:
		return "transaction count"
	case MetricRevenue:
		return "revenue"
	case MetricCustomers:
		return "unique customers"
	case MetricCashback:
		return "cashback paid"
	default:
		return string(m)
	}
}

// TimeSeriesPoint is a single daily observation.
type TimeSeriesPoint struct {
	Date  time.Time
	Value float64
}

// MetricSeries is the ordered (ascending by date) daily series of one metric.
// Missing days are absent points; nothing is interpolated.
type MetricSeries struct {
	Metric MetricKind
	Points []TimeSeriesPoint
}

// Values extracts just the values from the series
func (s MetricSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Dates extracts just the dates from the series
func (s MetricSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date
	}
	return dates
}

// Len returns the number of data points
func (s MetricSeries) Len() int {
	return len(s.Points)
}

// Tail returns the trailing n points as a new series sharing no backing array
// with s. A non-positive n or n >= Len returns a copy of the whole series.
func (s MetricSeries) Tail(n int) MetricSeries {
	start := 0
	if n > 0 && n < len(s.Points) {
		start = len(s.Points) - n
	}
	points := make([]TimeSeriesPoint, len(s.Points)-start)
	copy(points, s.Points[start:])
	return MetricSeries{Metric: s.Metric, Points: points}
}

// LastDate returns the date of the final point, or the zero time for an empty series.
func (s MetricSeries) LastDate() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// DailyRecord is one day of a tenant's operational metrics as returned by the
// storage collaborator. Nil fields are missing values and read as zero.
type DailyRecord struct {
	Date         time.Time
	Transactions *float64
	Revenue      *float64
	Customers    *float64
	Cashback     *float64
}

// Value returns the record's value for metric, treating missing values as zero.
func (r DailyRecord) Value(metric MetricKind) float64 {
	var v *float64
	switch metric {
	case MetricTransactions:
		v = r.Transactions
	case MetricRevenue:
		v = r.Revenue
	case MetricCustomers:
		v = r.Customers
	case MetricCashback:
		v = r.Cashback
	}
	if v == nil {
		return 0
	}
	return *v
}

// BuildSeries projects ascending daily records onto a single metric.
func BuildSeries(records []DailyRecord, metric MetricKind) MetricSeries {
	points := make([]TimeSeriesPoint, len(records))
	for i, r := range records {
		points[i] = TimeSeriesPoint{Date: r.Date, Value: r.Value(metric)}
	}
	return MetricSeries{Metric: metric, Points: points}
}

// BuildAllSeries builds one series per requested metric, in the order given.
func BuildAllSeries(records []DailyRecord, metrics []MetricKind) []MetricSeries {
	series := make([]MetricSeries, len(metrics))
	for i, m := range metrics {
		series[i] = BuildSeries(records, m)
	}
	return series
}

// Float returns a pointer to v, handy for building DailyRecord literals.
func Float(v float64) *float64 {
	return &v
}

// FindSeries returns the series for metric from a slice, if present.
func FindSeries(series []MetricSeries, metric MetricKind) (MetricSeries, bool) {
	for _, s := range series {
		if s.Metric == metric {
			return s, true
		}
	}
	return MetricSeries{}, false
}

// Merchant identifies a tenant.
type Merchant struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
}
