package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/merchantlens/merchantlens/internal/services"
)

// Anomalies handles anomaly detection requests
// GET /v1/merchants/:merchant_id/anomalies?lookback_days=90&threshold=2.0&recent_days=7&metrics=revenue
func (h *Handler) Anomalies(c *fiber.Ctx) error {
	req := &services.AnomalyRequest{MerchantID: c.Params("merchant_id")}

	var svcErr *services.ServiceError
	if req.LookbackDays, svcErr = positiveInt(c, "lookback_days"); svcErr != nil {
		return h.respondError(c, svcErr)
	}
	if req.Threshold, svcErr = positiveFloat(c, "threshold"); svcErr != nil {
		return h.respondError(c, svcErr)
	}
	if req.RecentDays, svcErr = positiveInt(c, "recent_days"); svcErr != nil {
		return h.respondError(c, svcErr)
	}
	if req.Metrics, svcErr = metricKinds(c.Query("metrics")); svcErr != nil {
		return h.respondError(c, svcErr)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	feed, err := h.analytics.DetectAnomalies(ctx, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(feed)
}
