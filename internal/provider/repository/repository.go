package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/provider/domain"
	subscriptiondomain "github.com/jeremyholland-coder/stageflow/internal/subscription/domain"
)

type repository struct {
	genID *snowflake.Node
}

// Provide builds the gorm-backed provider repository.
func Provide(genID *snowflake.Node) domain.Repository {
	return &repository{genID: genID}
}

func (r *repository) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO provider_events (id, provider, provider_event_id, event_type, payload, received_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var record domain.EventRecord
	err := db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE provider_events SET processed_at = ? WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repository) FindOrganizationByCustomer(ctx context.Context, db *gorm.DB, externalCustomerID string) (*subscriptiondomain.Organization, error) {
	var org subscriptiondomain.Organization
	err := db.WithContext(ctx).
		Where("external_customer_id = ?", externalCustomerID).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindSubscriptionByExternalID(ctx context.Context, db *gorm.DB, externalSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("external_subscription_id = ?", externalSubscriptionID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpsertSubscription(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) (snowflake.ID, error) {
	if sub.ID == 0 {
		sub.ID = r.genID.Generate()
	}
	err := db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, org_id, external_subscription_id, external_customer_id, status, plan_tier, period_start, period_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_subscription_id) DO UPDATE SET
		   org_id = excluded.org_id,
		   external_customer_id = excluded.external_customer_id,
		   status = excluded.status,
		   plan_tier = excluded.plan_tier,
		   period_start = excluded.period_start,
		   period_end = excluded.period_end,
		   updated_at = excluded.updated_at`,
		sub.ID,
		sub.OrgID,
		sub.ExternalSubscriptionID,
		sub.ExternalCustomerID,
		sub.Status,
		sub.PlanTier,
		sub.PeriodStart,
		sub.PeriodEnd,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
	if err != nil {
		return 0, err
	}

	// The conflict arm keeps the original row id; read it back.
	stored, err := r.FindSubscriptionByExternalID(ctx, db, sub.ExternalSubscriptionID)
	if err != nil {
		return 0, err
	}
	if stored == nil {
		return 0, errors.New("subscription_not_found_after_upsert")
	}
	return stored.ID, nil
}

func (r *repository) UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, externalSubscriptionID string, status subscriptiondomain.SubscriptionStatus, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET status = ?, updated_at = ? WHERE external_subscription_id = ?`,
		status,
		now,
		externalSubscriptionID,
	)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateOrganizationPlan(ctx context.Context, db *gorm.DB, orgID snowflake.ID, plan string, subscriptionID *snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE organizations SET plan = ?, subscription_id = ?, updated_at = ? WHERE id = ?`,
		plan,
		subscriptionID,
		now,
		orgID,
	).Error
}
