package handlers

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/services"
)

// positiveInt reads an optional positive integer query parameter. An absent
// parameter yields 0 so the service default applies.
func positiveInt(c *fiber.Ctx, name string) (int, *services.ServiceError) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, services.NewServiceErrorWithDetails(services.ErrCodeInvalidParameters,
			name+" must be a positive integer",
			map[string]interface{}{"parameter": name, "value": raw})
	}
	return v, nil
}

// positiveFloat reads an optional positive, finite float query parameter
func positiveFloat(c *fiber.Ctx, name string) (float64, *services.ServiceError) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(v > 0) || math.IsInf(v, 0) {
		return 0, services.NewServiceErrorWithDetails(services.ErrCodeInvalidParameters,
			name+" must be a positive number",
			map[string]interface{}{"parameter": name, "value": raw})
	}
	return v, nil
}

// metricKinds parses a comma separated metric list
func metricKinds(raw string) ([]analytics.MetricKind, *services.ServiceError) {
	var kinds []analytics.MetricKind
	for _, part := range splitAndTrim(raw, ",") {
		kind, svcErr := metricKind(part)
		if svcErr != nil {
			return nil, svcErr
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func metricKind(raw string) (analytics.MetricKind, *services.ServiceError) {
	kind, err := analytics.ParseMetricKind(raw)
	if err != nil {
		return "", services.NewServiceErrorWithDetails(services.ErrCodeInvalidMetric, "Unknown metric",
			map[string]interface{}{"metric": raw, "available_metrics": analytics.AllMetrics()})
	}
	return kind, nil
}

// splitAndTrim splits a string and trims whitespace from each part
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
