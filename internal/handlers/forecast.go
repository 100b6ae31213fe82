package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/services"
)

// Forecast handles forecast requests
// GET /v1/merchants/:merchant_id/forecast?metric=revenue&days=7&history_days=60&method=auto
func (h *Handler) Forecast(c *fiber.Ctx) error {
	req := &services.ForecastRequest{
		MerchantID: c.Params("merchant_id"),
		Method:     forecast.Method(strings.ToLower(strings.TrimSpace(c.Query("method")))),
	}

	var svcErr *services.ServiceError
	if req.Metric, svcErr = metricKind(c.Query("metric", string(analytics.MetricRevenue))); svcErr != nil {
		return h.respondError(c, svcErr)
	}
	if req.Days, svcErr = positiveInt(c, "days"); svcErr != nil {
		return h.respondError(c, svcErr)
	}
	if req.HistoryDays, svcErr = positiveInt(c, "history_days"); svcErr != nil {
		return h.respondError(c, svcErr)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	// Execute via service layer; it owns the horizon and method bounds
	feed, err := h.analytics.Forecast(ctx, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(feed)
}
