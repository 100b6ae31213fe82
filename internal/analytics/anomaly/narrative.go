package anomaly

import (
	"fmt"
	"math"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

const dateLayout = "2006-01-02"

// describe renders the one-line explanation attached to an anomaly.
func describe(a Anomaly) string {
	verb := "spiked"
	if a.Direction == AnomalyTypeDrop {
		verb = "dropped"
	}

	text := fmt.Sprintf("%s %s on %s: %s against an expected %s (z-score %.2f)",
		capitalize(a.Metric.Label()), verb, a.Date.Format(dateLayout),
		formatValue(a.Metric, a.ObservedValue), formatValue(a.Metric, a.ExpectedValue), a.ZScore)

	if a.DeviationPercent != nil {
		text += fmt.Sprintf(", %+.1f%% from baseline", *a.DeviationPercent)
	}
	return text
}

// recommend returns the suggested follow-up for an anomaly.
func recommend(metric analytics.MetricKind, direction AnomalyType, severity Severity) string {
	var text string

	switch metric {
	case analytics.MetricTransactions:
		if direction == AnomalyTypeSpike {
			text = "Check for a promotion, bulk order or duplicate submissions driving the extra transactions."
		} else {
			text = "Verify that the point-of-sale integration is reporting and that the store was open."
		}
	case analytics.MetricRevenue:
		if direction == AnomalyTypeSpike {
			text = "Confirm large tickets are genuine and review refunds that may follow."
		} else {
			text = "Compare basket size and transaction count to see whether fewer or smaller sales caused the drop."
		}
	case analytics.MetricCustomers:
		if direction == AnomalyTypeSpike {
			text = "Identify the acquisition source and consider a retention offer for the new customers."
		} else {
			text = "Review recent customer experience changes and reach out to lapsed regulars."
		}
	case analytics.MetricCashback:
		if direction == AnomalyTypeSpike {
			text = "Audit cashback campaign rules and look for abuse of stacked offers."
		} else {
			text = "Check that cashback campaigns are still active and correctly configured."
		}
	default:
		text = "Review the underlying records for this day."
	}

	if severity == SeverityHigh {
		text = "Investigate promptly. " + text
	}
	return text
}

func formatValue(metric analytics.MetricKind, v float64) string {
	switch metric {
	case analytics.MetricTransactions, analytics.MetricCustomers:
		return fmt.Sprintf("%.0f", math.Round(v))
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
