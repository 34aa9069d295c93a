package events

// Internal billing events emitted when the inbound pipeline mutates
// subscription or organization state.
const (
	EventSubscriptionSynced   = "subscription_synced"
	EventSubscriptionCanceled = "subscription_canceled"
	EventSubscriptionPastDue  = "subscription_past_due"
	EventSubscriptionResumed  = "subscription_resumed"
)

// SubscriptionSyncPayload captures the minimal data downstream consumers
// need to react to a subscription change.
type SubscriptionSyncPayload struct {
	SubscriptionID         string `json:"subscription_id"`
	ExternalSubscriptionID string `json:"external_subscription_id"`
	Status                 string `json:"status"`
	PlanTier               string `json:"plan_tier,omitempty"`
	ProviderEventID        string `json:"provider_event_id"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p SubscriptionSyncPayload) ToMap() map[string]any {
	payload := map[string]any{
		"subscription_id":          p.SubscriptionID,
		"external_subscription_id": p.ExternalSubscriptionID,
		"status":                   p.Status,
		"provider_event_id":        p.ProviderEventID,
	}
	if p.PlanTier != "" {
		payload["plan_tier"] = p.PlanTier
	}
	return payload
}
