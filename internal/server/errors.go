package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	providerdomain "github.com/jeremyholland-coder/stageflow/internal/provider/domain"
	webhookdomain "github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

type apiError struct {
	status  int
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

func newValidationError(field, code, message string) *apiError {
	return &apiError{status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

func invalidRequestError() *apiError {
	return &apiError{status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

// AbortWithError maps domain errors onto the HTTP error envelope. Unmapped
// errors become an opaque 500 so internals never leak to callers.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.status, gin.H{"error": api})
		return
	}

	var forbidden *webhookdomain.URLForbiddenError
	if errors.As(err, &forbidden) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{
			"code":    "url_forbidden",
			"message": forbidden.Reason,
		}})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	switch {
	case errors.Is(err, ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, "unauthorized", "missing or invalid API key"
	case errors.Is(err, ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "access denied"
	case errors.Is(err, ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, ErrRateLimited):
		status, code, message = http.StatusTooManyRequests, "rate_limited", "too many requests"

	case errors.Is(err, providerdomain.ErrProviderNotFound):
		status, code, message = http.StatusNotFound, "provider_not_found", "unknown webhook provider"
	case errors.Is(err, providerdomain.ErrInvalidSignature):
		status, code, message = http.StatusBadRequest, "invalid_signature", "signature verification failed"
	case errors.Is(err, providerdomain.ErrInvalidPayload),
		errors.Is(err, providerdomain.ErrInvalidEvent),
		errors.Is(err, providerdomain.ErrInvalidProvider):
		status, code, message = http.StatusBadRequest, "invalid_payload", "payload could not be parsed"

	case errors.Is(err, webhookdomain.ErrWebhookNotFound):
		status, code, message = http.StatusNotFound, "webhook_not_found", "webhook not found"
	case errors.Is(err, webhookdomain.ErrEventRequired):
		status, code, message = http.StatusBadRequest, "event_required", "event is required"
	case errors.Is(err, webhookdomain.ErrEventTooLong):
		status, code, message = http.StatusBadRequest, "event_too_long", "event exceeds the maximum length"
	case errors.Is(err, webhookdomain.ErrPayloadTooLarge):
		status, code, message = http.StatusBadRequest, "payload_too_large", "payload exceeds the maximum size"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}
