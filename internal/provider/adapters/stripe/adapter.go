// Package stripe adapts Stripe's webhook format: signature scheme
// "t=<unix>,v1=<hex hmac-sha256>" over "{timestamp}.{body}", and an event
// envelope of {id, type, data:{object}}.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/provider/domain"
	"github.com/jeremyholland-coder/stageflow/internal/signature"
)

const signatureHeader = "Stripe-Signature"

type Config struct {
	Secret    string
	Tolerance time.Duration
}

type Adapter struct {
	secret    string
	tolerance time.Duration
	clock     clock.Clock
}

func New(cfg Config, clk clock.Clock) *Adapter {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Adapter{secret: cfg.Secret, tolerance: cfg.Tolerance, clock: clk}
}

func (a *Adapter) Provider() string { return "stripe" }

// Verify checks the provider signature. Any defect (missing header, bad
// format, stale timestamp, digest mismatch) collapses to ErrInvalidSignature
// so the response leaks nothing about which check failed.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	header := strings.TrimSpace(headers.Get(signatureHeader))
	if header == "" || a.secret == "" {
		return domain.ErrInvalidSignature
	}
	if err := signature.Verify(a.secret, header, payload, a.clock.Now(), a.tolerance); err != nil {
		return domain.ErrInvalidSignature
	}
	return nil
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

// Parse maps the raw envelope onto the canonical event. Unrecognized types
// come back with no variant payload; the processor accepts them as no-ops.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(env.ID) == "" || strings.TrimSpace(env.Type) == "" {
		return nil, domain.ErrInvalidEvent
	}

	event := &domain.Event{
		Provider:        a.Provider(),
		ProviderEventID: env.ID,
		Type:            mapEventType(env.Type),
	}
	if !event.Recognized() {
		return event, nil
	}

	switch event.Type {
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var object subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &object); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		if strings.TrimSpace(object.ID) == "" {
			return nil, domain.ErrInvalidEvent
		}
		event.Subscription = &domain.SubscriptionPayload{
			ExternalSubscriptionID: object.ID,
			ExternalCustomerID:     object.Customer,
			Status:                 object.Status,
			PriceID:                firstPriceID(object),
			PeriodStart:            unixTime(object.CurrentPeriodStart),
			PeriodEnd:              unixTime(object.CurrentPeriodEnd),
		}
	case domain.EventInvoicePaymentFailed, domain.EventInvoicePaymentSucceeded:
		var object invoiceObject
		if err := json.Unmarshal(env.Data.Object, &object); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		event.Invoice = &domain.InvoicePayload{
			ExternalInvoiceID:      object.ID,
			ExternalCustomerID:     object.Customer,
			ExternalSubscriptionID: object.Subscription,
		}
	}
	return event, nil
}

func mapEventType(raw string) domain.EventType {
	switch raw {
	case "customer.subscription.created":
		return domain.EventSubscriptionCreated
	case "customer.subscription.updated":
		return domain.EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return domain.EventSubscriptionDeleted
	case "invoice.payment_failed":
		return domain.EventInvoicePaymentFailed
	case "invoice.payment_succeeded":
		return domain.EventInvoicePaymentSucceeded
	}
	return domain.EventType(raw)
}

func firstPriceID(object subscriptionObject) string {
	if len(object.Items.Data) == 0 {
		return ""
	}
	return object.Items.Data[0].Price.ID
}

func unixTime(seconds int64) *time.Time {
	if seconds == 0 {
		return nil
	}
	at := time.Unix(seconds, 0).UTC()
	return &at
}

var _ domain.Adapter = (*Adapter)(nil)
