package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the idempotency ledger row for one upstream provider event.
// The (provider, provider_event_id) uniqueness constraint is what makes the
// claim atomic: a concurrent duplicate delivery loses the insert, not a
// read-then-write race.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:uq_provider_events_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:uq_provider_events_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	// ProcessedAt is set only after all mutations commit. A claimed row
	// without it marks an interrupted run that is safe to replay.
	ProcessedAt *time.Time `json:"processed_at"`
}

func (EventRecord) TableName() string { return "provider_events" }

// EventType enumerates the recognized upstream event vocabulary.
type EventType string

const (
	EventSubscriptionCreated     EventType = "subscription.created"
	EventSubscriptionUpdated     EventType = "subscription.updated"
	EventSubscriptionDeleted     EventType = "subscription.deleted"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
)

// Event is the canonical parsed form of a provider event. Exactly one of the
// variant payloads is set for recognized types; unrecognized types carry
// neither and are accepted as no-ops.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            EventType

	Subscription *SubscriptionPayload
	Invoice      *InvoicePayload
}

// Recognized reports whether the event type is part of the closed set the
// processor acts on.
func (e *Event) Recognized() bool {
	switch e.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventInvoicePaymentFailed, EventInvoicePaymentSucceeded:
		return true
	}
	return false
}

// SubscriptionPayload carries the subscription object fields the processor
// consumes.
type SubscriptionPayload struct {
	ExternalSubscriptionID string
	ExternalCustomerID     string
	Status                 string
	PriceID                string
	PeriodStart            *time.Time
	PeriodEnd              *time.Time
}

// InvoicePayload carries the invoice fields the processor consumes. An
// invoice with no subscription reference is ignored.
type InvoicePayload struct {
	ExternalInvoiceID      string
	ExternalCustomerID     string
	ExternalSubscriptionID string
}
