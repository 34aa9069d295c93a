package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/events"
	"github.com/jeremyholland-coder/stageflow/internal/provider/adapters"
	"github.com/jeremyholland-coder/stageflow/internal/provider/domain"
	subscriptiondomain "github.com/jeremyholland-coder/stageflow/internal/subscription/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Adapters *adapters.Registry
	Outbox   *events.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	adapters *adapters.Registry
	outbox   *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("provider.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		adapters: p.Adapters,
		outbox:   p.Outbox,
	}
}

// Ingest verifies, claims, and applies one provider event. The claim row is
// written before any mutation; processed_at is set only after all mutations
// commit, so an interrupted run is replayed rather than silently dropped.
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*domain.Result, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, domain.ErrInvalidProvider
	}
	adapter, ok := s.adapters.Get(provider)
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return nil, domain.ErrInvalidPayload
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return nil, err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		return nil, err
	}
	if event == nil || strings.TrimSpace(event.ProviderEventID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	now := s.clock.Now()
	record := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       string(event.Type),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		stored, err := s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return &domain.Result{
				Duplicate:       true,
				ProviderEventID: event.ProviderEventID,
				EventType:       string(event.Type),
			}, nil
		}
		// Claimed but never completed: an earlier run was interrupted.
		// The mutation paths are idempotent upserts, so replay is safe.
		record = stored
		s.log.Warn("replaying interrupted provider event",
			zap.String("provider", provider),
			zap.String("provider_event_id", event.ProviderEventID),
		)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.processEvent(ctx, tx, event); err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, record.ID, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		ProviderEventID: event.ProviderEventID,
		EventType:       string(event.Type),
	}, nil
}

func (s *Service) processEvent(ctx context.Context, tx *gorm.DB, event *domain.Event) error {
	switch event.Type {
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated:
		return s.syncSubscription(ctx, tx, event)
	case domain.EventSubscriptionDeleted:
		return s.cancelSubscription(ctx, tx, event)
	case domain.EventInvoicePaymentFailed:
		return s.setSubscriptionStatusFromInvoice(ctx, tx, event, subscriptiondomain.SubscriptionStatusPastDue, events.EventSubscriptionPastDue)
	case domain.EventInvoicePaymentSucceeded:
		return s.setSubscriptionStatusFromInvoice(ctx, tx, event, subscriptiondomain.SubscriptionStatusActive, events.EventSubscriptionResumed)
	default:
		// Forward compatibility: new provider event types are accepted
		// without state change.
		s.log.Info("ignoring unrecognized provider event type",
			zap.String("provider", event.Provider),
			zap.String("event_type", string(event.Type)),
		)
		return nil
	}
}

func (s *Service) syncSubscription(ctx context.Context, tx *gorm.DB, event *domain.Event) error {
	payload := event.Subscription
	if payload == nil {
		return domain.ErrInvalidEvent
	}

	tier, ok := domain.TierForPrice(payload.PriceID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownPrice, payload.PriceID)
	}

	org, err := s.repo.FindOrganizationByCustomer(ctx, tx, payload.ExternalCustomerID)
	if err != nil {
		return err
	}
	if org == nil {
		return fmt.Errorf("%w: customer %q", domain.ErrOrganizationNotFound, payload.ExternalCustomerID)
	}

	now := s.clock.Now()
	status := normalizeStatus(payload.Status)
	subID, err := s.repo.UpsertSubscription(ctx, tx, &subscriptiondomain.Subscription{
		OrgID:                  org.ID,
		ExternalSubscriptionID: payload.ExternalSubscriptionID,
		ExternalCustomerID:     payload.ExternalCustomerID,
		Status:                 status,
		PlanTier:               tier,
		PeriodStart:            payload.PeriodStart,
		PeriodEnd:              payload.PeriodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		return err
	}

	// The organization update must propagate: the plan drives entitlements,
	// and a half-applied sync is worse than a provider retry.
	if err := s.repo.UpdateOrganizationPlan(ctx, tx, org.ID, tier, &subID, now); err != nil {
		return err
	}

	return s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID:     org.ID,
		Type:      events.EventSubscriptionSynced,
		DedupeKey: event.ProviderEventID,
		Payload: events.SubscriptionSyncPayload{
			SubscriptionID:         subID.String(),
			ExternalSubscriptionID: payload.ExternalSubscriptionID,
			Status:                 string(status),
			PlanTier:               tier,
			ProviderEventID:        event.ProviderEventID,
		}.ToMap(),
	})
}

func (s *Service) cancelSubscription(ctx context.Context, tx *gorm.DB, event *domain.Event) error {
	payload := event.Subscription
	if payload == nil {
		return domain.ErrInvalidEvent
	}

	sub, err := s.repo.FindSubscriptionByExternalID(ctx, tx, payload.ExternalSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		// Cancelling a subscription we never saw is not worth failing the
		// webhook over.
		s.log.Warn("cancellation for unknown subscription",
			zap.String("external_subscription_id", payload.ExternalSubscriptionID),
		)
		return nil
	}

	now := s.clock.Now()
	if _, err := s.repo.UpdateSubscriptionStatus(ctx, tx, payload.ExternalSubscriptionID, subscriptiondomain.SubscriptionStatusCanceled, now); err != nil {
		return err
	}
	if err := s.repo.UpdateOrganizationPlan(ctx, tx, sub.OrgID, subscriptiondomain.PlanFree, nil, now); err != nil {
		return err
	}

	return s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID:     sub.OrgID,
		Type:      events.EventSubscriptionCanceled,
		DedupeKey: event.ProviderEventID,
		Payload: events.SubscriptionSyncPayload{
			SubscriptionID:         sub.ID.String(),
			ExternalSubscriptionID: payload.ExternalSubscriptionID,
			Status:                 string(subscriptiondomain.SubscriptionStatusCanceled),
			ProviderEventID:        event.ProviderEventID,
		}.ToMap(),
	})
}

func (s *Service) setSubscriptionStatusFromInvoice(ctx context.Context, tx *gorm.DB, event *domain.Event, status subscriptiondomain.SubscriptionStatus, outboxType string) error {
	payload := event.Invoice
	if payload == nil || strings.TrimSpace(payload.ExternalSubscriptionID) == "" {
		// One-off invoices carry no subscription reference; nothing to do.
		return nil
	}

	sub, err := s.repo.FindSubscriptionByExternalID(ctx, tx, payload.ExternalSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.log.Warn("invoice event for unknown subscription",
			zap.String("external_subscription_id", payload.ExternalSubscriptionID),
			zap.String("event_type", string(event.Type)),
		)
		return nil
	}

	if _, err := s.repo.UpdateSubscriptionStatus(ctx, tx, payload.ExternalSubscriptionID, status, s.clock.Now()); err != nil {
		return err
	}

	return s.outbox.PublishTx(ctx, tx, events.Event{
		OrgID:     sub.OrgID,
		Type:      outboxType,
		DedupeKey: event.ProviderEventID,
		Payload: events.SubscriptionSyncPayload{
			SubscriptionID:         sub.ID.String(),
			ExternalSubscriptionID: payload.ExternalSubscriptionID,
			Status:                 string(status),
			ProviderEventID:        event.ProviderEventID,
		}.ToMap(),
	})
}

func normalizeStatus(raw string) subscriptiondomain.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "past_due", "unpaid":
		return subscriptiondomain.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return subscriptiondomain.SubscriptionStatusCanceled
	default:
		return subscriptiondomain.SubscriptionStatusActive
	}
}
