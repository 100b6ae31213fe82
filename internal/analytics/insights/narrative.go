package insights

import (
	"fmt"
	"strings"

	"github.com/merchantlens/merchantlens/internal/analytics"
)

func trendTitle(kind InsightType, metric analytics.MetricKind) string {
	if kind == InsightSustainedGrowth {
		return "Sustained growth in " + metric.Label()
	}
	return "Sustained decline in " + metric.Label()
}

func trendDescription(merchant analytics.Merchant, metric analytics.MetricKind, g growth, window int) string {
	direction := "up"
	if g.change < 0 {
		direction = "down"
	}
	return fmt.Sprintf("%s averaged %.2f per day over the last %d days, %s %.1f%% from %.2f in the %d days before.",
		subject(merchant, metric), g.recentMean, window, direction, abs(g.change), g.priorMean, window)
}

func peerTitle(kind InsightType, metric analytics.MetricKind) string {
	if kind == InsightOutperformingPeers {
		return "Outpacing competitors on " + metric.Label()
	}
	return "Falling behind competitors on " + metric.Label()
}

func peerDescription(merchant analytics.Merchant, metric analytics.MetricKind, own, peerAverage, divergence float64, peers int) string {
	noun := "competitors"
	if peers == 1 {
		noun = "competitor"
	}
	return fmt.Sprintf("%s changed %+.1f%% while %d %s averaged %+.1f%%, a gap of %.1f percentage points.",
		subject(merchant, metric), own, peers, noun, peerAverage, abs(divergence))
}

// subject names the metric, owned by the merchant when its name is known.
func subject(merchant analytics.Merchant, metric analytics.MetricKind) string {
	if merchant.Name != "" {
		return merchant.Name + "'s " + metric.Label()
	}
	label := metric.Label()
	return strings.ToUpper(label[:1]) + label[1:]
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
