// Package services sits between the HTTP handlers and the analytics core.
// It loads merchant data, runs the engines and shapes the result feeds.
package services

import (
	"context"
	"errors"

	"github.com/merchantlens/merchantlens/internal/analytics"
	"github.com/merchantlens/merchantlens/internal/analytics/forecast"
	"github.com/merchantlens/merchantlens/internal/store"
)

// Error codes returned in ServiceError.Code
const (
	ErrCodeInvalidMetric     = "INVALID_METRIC"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeInsufficientData  = "INSUFFICIENT_DATA"
	ErrCodeInvalidData       = "INVALID_DATA"
	ErrCodeQueryFailed       = "QUERY_FAILED"
	ErrCodeMerchantNotFound  = "MERCHANT_NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// storeError maps a store failure for merchantID
func storeError(err error, merchantID string) *ServiceError {
	if errors.Is(err, store.ErrMerchantNotFound) {
		return NewServiceErrorWithDetails(ErrCodeMerchantNotFound, "Merchant not found",
			map[string]interface{}{"merchant_id": merchantID})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewServiceErrorWithDetails(ErrCodeQueryFailed, "Request cancelled",
			map[string]interface{}{"error": err.Error()})
	}
	return NewServiceErrorWithDetails(ErrCodeQueryFailed, "Failed to query merchant data",
		map[string]interface{}{"error": err.Error()})
}

// analyticsError maps an error returned by one of the engines
func analyticsError(err error) *ServiceError {
	var insufficient *forecast.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		return NewServiceErrorWithDetails(ErrCodeInsufficientData, "Not enough history to forecast",
			map[string]interface{}{"have": insufficient.Have, "need": insufficient.Need})
	case errors.Is(err, analytics.ErrInsufficientData):
		return NewServiceError(ErrCodeInsufficientData, err.Error())
	case errors.Is(err, analytics.ErrInvalidParameters):
		return NewServiceError(ErrCodeInvalidParameters, err.Error())
	case errors.Is(err, analytics.ErrInvalidInput):
		return NewServiceError(ErrCodeInvalidData, err.Error())
	default:
		return NewServiceErrorWithDetails(ErrCodeInternal, "Analytics failed",
			map[string]interface{}{"error": err.Error()})
	}
}

// invalidParameter builds an INVALID_PARAMETERS error naming the parameter
func invalidParameter(name, message string) *ServiceError {
	return NewServiceErrorWithDetails(ErrCodeInvalidParameters, message,
		map[string]interface{}{"parameter": name})
}
