package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	subscriptiondomain "github.com/jeremyholland-coder/stageflow/internal/subscription/domain"
)

type Repository interface {
	// InsertEvent claims the event atomically; it reports false when the
	// (provider, provider_event_id) pair already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	FindOrganizationByCustomer(ctx context.Context, db *gorm.DB, externalCustomerID string) (*subscriptiondomain.Organization, error)
	FindSubscriptionByExternalID(ctx context.Context, db *gorm.DB, externalSubscriptionID string) (*subscriptiondomain.Subscription, error)
	UpsertSubscription(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) (snowflake.ID, error)
	UpdateSubscriptionStatus(ctx context.Context, db *gorm.DB, externalSubscriptionID string, status subscriptiondomain.SubscriptionStatus, now time.Time) (int64, error)
	UpdateOrganizationPlan(ctx context.Context, db *gorm.DB, orgID snowflake.ID, plan string, subscriptionID *snowflake.ID, now time.Time) error
}
