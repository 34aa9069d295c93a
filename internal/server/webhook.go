package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	obscontext "github.com/jeremyholland-coder/stageflow/internal/observability/context"
	webhookdomain "github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
)

type triggerWebhookRequest struct {
	WebhookID string         `json:"webhook_id"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
}

// TriggerWebhook fires one synchronous delivery to a registered endpoint.
func (s *Server) TriggerWebhook(c *gin.Context) {
	orgID, ok := orgFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req triggerWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	webhookID, err := uuid.Parse(strings.TrimSpace(req.WebhookID))
	if err != nil {
		AbortWithError(c, newValidationError("webhook_id", "invalid_webhook_id", "webhook_id must be a UUID"))
		return
	}

	outcome, err := s.webhookSvc.Trigger(c.Request.Context(), orgID, webhookdomain.TriggerRequest{
		WebhookID: webhookID,
		Event:     strings.TrimSpace(req.Event),
		Data:      req.Data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     outcome.Success,
		"delivery_id": outcome.DeliveryID.String(),
		"status":      string(outcome.Status),
	})
}

// ListWebhookDeliveries returns the most recent delivery attempts for one
// endpoint owned by the caller's organization.
func (s *Server) ListWebhookDeliveries(c *gin.Context) {
	orgID, ok := orgFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	webhookID, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_webhook_id", "webhook id must be a UUID"))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	deliveries, err := s.webhookSvc.ListDeliveries(c.Request.Context(), orgID, webhookID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// TriggerRateLimit throttles trigger calls per organization.
func (s *Server) TriggerRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := orgFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !s.triggerRate.Allow(orgID.String()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func orgFromContext(c *gin.Context) (snowflake.ID, bool) {
	orgID := obscontext.OrgIDFromContext(c.Request.Context())
	if orgID == 0 {
		return 0, false
	}
	return snowflake.ID(orgID), true
}
