package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/merchantlens/merchantlens/internal/services"
)

// Insights handles insight requests. Without competitors the merchant's
// category peers are compared.
// GET /v1/merchants/:merchant_id/insights?competitors=a,b&window=7
func (h *Handler) Insights(c *fiber.Ctx) error {
	req := &services.InsightsRequest{
		MerchantID:  c.Params("merchant_id"),
		Competitors: splitAndTrim(c.Query("competitors"), ","),
	}

	var svcErr *services.ServiceError
	if req.Window, svcErr = positiveInt(c, "window"); svcErr != nil {
		return h.respondError(c, svcErr)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	feed, err := h.analytics.Insights(ctx, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(feed)
}
