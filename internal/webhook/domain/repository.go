package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	FindWebhook(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id uuid.UUID) (*WebhookConfig, error)
	ListActiveWebhooks(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]WebhookConfig, error)
	InsertDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	// FinalizeDelivery transitions a pending row to its terminal status. It
	// reports false when the row was already finalized.
	FinalizeDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) (bool, error)
	ListDeliveries(ctx context.Context, db *gorm.DB, webhookID uuid.UUID, limit int) ([]Delivery, error)
}
