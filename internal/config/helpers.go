package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/anomaly"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/analytics/insights"
)

var offsetPattern = regexp.MustCompile(`^([+-])(\d{2}):(\d{2})$`)

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// ServerAddress returns the HTTP listen address
func (c *ServerConfig) ServerAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

// TrackedMetrics parses the configured metric names
func (c *AnalyticsConfig) TrackedMetrics() ([]analytics.MetricKind, error) {
	if len(c.Metrics) == 0 {
		return nil, fmt.Errorf("analytics.metrics must list at least one metric")
	}
	metrics := make([]analytics.MetricKind, 0, len(c.Metrics))
	seen := make(map[analytics.MetricKind]bool, len(c.Metrics))
	for _, name := range c.Metrics {
		m, err := analytics.ParseMetricKind(name)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("analytics.metrics lists %q twice", m)
		}
		seen[m] = true
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// Location returns the timezone that defines day boundaries.
// Supports IANA names ("Asia/Jakarta", "UTC") and offsets ("+07:00").
func (c *AnalyticsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc, nil
	}
	return parseOffsetTimezone(c.Timezone)
}

// parseOffsetTimezone parses timezone offset format like "+09:00", "-05:00"
func parseOffsetTimezone(offset string) (*time.Location, error) {
	matches := offsetPattern.FindStringSubmatch(offset)
	if len(matches) != 4 {
		return nil, fmt.Errorf("invalid timezone: %s", offset)
	}

	sign := 1
	if matches[1] == "-" {
		sign = -1
	}
	hours, _ := strconv.Atoi(matches[2])
	minutes, _ := strconv.Atoi(matches[3])
	if hours > 14 || minutes > 59 {
		return nil, fmt.Errorf("invalid timezone offset: %s", offset)
	}

	return time.FixedZone(offset, sign*(hours*3600+minutes*60)), nil
}

// AnomalyConfig converts the settings into the detector configuration
func (c *AnalyticsConfig) AnomalyConfig() anomaly.Config {
	return anomaly.Config{
		RecentWindow:          c.Anomaly.RecentWindow,
		BaselineWindow:        c.Anomaly.BaselineWindow,
		ZThreshold:            c.Anomaly.ZThreshold,
		HighSeverityZ:         c.Anomaly.HighSeverityZ,
		CalibrateSmallSamples: c.Anomaly.CalibrateSmallSamples,
	}
}

// ForecastConfig converts the settings into the forecasting engine configuration
func (c *AnalyticsConfig) ForecastConfig() (forecast.Config, error) {
	method, err := forecast.ParseMethod(c.Forecast.Method)
	if err != nil {
		return forecast.Config{}, err
	}
	return forecast.Config{
		MinHistory:      c.Forecast.MinHistory,
		MaxHorizon:      c.Forecast.MaxHorizon,
		Confidence:      c.Forecast.Confidence,
		HoldoutFraction: c.Forecast.HoldoutFraction,
		Method:          method,
		Alpha:           c.Forecast.Alpha,
		Beta:            c.Forecast.Beta,
	}, nil
}

// InsightsConfig converts the settings into the insights engine configuration
func (c *AnalyticsConfig) InsightsConfig() (insights.Config, error) {
	metrics, err := c.TrackedMetrics()
	if err != nil {
		return insights.Config{}, err
	}
	return insights.Config{
		Window:              c.Insights.Window,
		GrowthThreshold:     c.Insights.GrowthThreshold,
		DivergenceThreshold: c.Insights.DivergenceThreshold,
		Metrics:             metrics,
	}, nil
}
