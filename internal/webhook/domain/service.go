package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// TriggerRequest asks for one synchronous delivery to a registered endpoint.
type TriggerRequest struct {
	WebhookID uuid.UUID
	Event     string
	Data      map[string]any
}

// DeliveryOutcome reports the finalized attempt. Success mirrors the stored
// delivery status; a refused or failed send is an outcome, not an error.
type DeliveryOutcome struct {
	DeliveryID     uuid.UUID
	Success        bool
	Status         DeliveryStatus
	ResponseStatus *int
}

type Service interface {
	Trigger(ctx context.Context, orgID snowflake.ID, req TriggerRequest) (*DeliveryOutcome, error)
	ListDeliveries(ctx context.Context, orgID snowflake.ID, webhookID uuid.UUID, limit int) ([]Delivery, error)
}

// ErrWebhookNotFound covers inactive endpoints too: callers cannot tell an
// unknown id from a deactivated one.
var (
	ErrWebhookNotFound = errors.New("webhook_not_found")
	ErrEventRequired   = errors.New("event_required")
	ErrEventTooLong    = errors.New("event_too_long")
	ErrPayloadTooLarge = errors.New("payload_too_large")
)

// URLForbiddenError carries the deny reason so the caller can say why the
// endpoint was refused without retrying.
type URLForbiddenError struct {
	Reason string
}

func (e *URLForbiddenError) Error() string {
	return fmt.Sprintf("url_forbidden: %s", e.Reason)
}
