package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/merchantlens/merchantlens/internal/logging"
	"github.com/merchantlens/merchantlens/internal/models"
	"github.com/merchantlens/merchantlens/internal/services"
	"github.com/merchantlens/merchantlens/internal/utils"
)

// Analytics is the service surface the HTTP handlers need
type Analytics interface {
	DetectAnomalies(ctx context.Context, req *services.AnomalyRequest) (*models.AnomalyFeed, error)
	Forecast(ctx context.Context, req *services.ForecastRequest) (*models.ForecastFeed, error)
	Insights(ctx context.Context, req *services.InsightsRequest) (*models.InsightFeed, error)
}

// HealthCheck probes one dependency; a non-nil error marks it unhealthy
type HealthCheck func(ctx context.Context) error

// Handler contains all HTTP handlers
type Handler struct {
	logger    *logging.Logger
	analytics Analytics
	checks    map[string]HealthCheck
}

// New creates a new handler instance
func New(logger *logging.Logger, analytics Analytics) *Handler {
	return &Handler{
		logger:    logger,
		analytics: analytics,
		checks:    make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a dependency probe reported by /health
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// requestContext bounds one analytics call and carries the request-scoped logger fields
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if merchantID := c.Params("merchant_id"); merchantID != "" {
		ctx = logging.WithMerchantID(ctx, merchantID)
	}
	return context.WithTimeout(ctx, utils.DefaultRequestTimeout)
}

// statusFor maps service error codes to HTTP statuses
func statusFor(code string) int {
	switch code {
	case services.ErrCodeInvalidMetric, services.ErrCodeInvalidParameters:
		return fiber.StatusBadRequest
	case services.ErrCodeMerchantNotFound:
		return fiber.StatusNotFound
	case services.ErrCodeInsufficientData, services.ErrCodeInvalidData:
		return fiber.StatusUnprocessableEntity
	case services.ErrCodeQueryFailed:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes a ServiceError as an ErrorResponse. Other errors are
// left to the app's error handler.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		return err
	}

	status := statusFor(svcErr.Code)
	if status >= fiber.StatusInternalServerError {
		h.logger.WithContext(c.UserContext()).Error("Analytics request failed",
			"path", c.Path(),
			"code", svcErr.Code,
			"error", svcErr.Message)
	}

	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    svcErr.Code,
			Message: svcErr.Message,
			Details: svcErr.Details,
		},
	})
}
