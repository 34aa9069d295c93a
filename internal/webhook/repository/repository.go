package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) FindWebhook(ctx context.Context, db *gorm.DB, orgID snowflake.ID, id uuid.UUID) (*domain.WebhookConfig, error) {
	var config domain.WebhookConfig
	err := db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&config).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (r *repository) ListActiveWebhooks(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.WebhookConfig, error) {
	var configs []domain.WebhookConfig
	err := db.WithContext(ctx).
		Where("org_id = ? AND active = ?", orgID, true).
		Order("created_at ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repository) InsertDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FinalizeDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) (bool, error) {
	// The pending guard makes finalization idempotent under races: whoever
	// loses the update leaves the winner's terminal state untouched.
	result := db.WithContext(ctx).Exec(
		`UPDATE webhook_deliveries
		 SET status = ?, response_status = ?, response_body = ?, error = ?, delivered_at = ?
		 WHERE id = ? AND status = ?`,
		delivery.Status,
		delivery.ResponseStatus,
		delivery.ResponseBody,
		delivery.Error,
		delivery.DeliveredAt,
		delivery.ID,
		domain.DeliveryStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListDeliveries(ctx context.Context, db *gorm.DB, webhookID uuid.UUID, limit int) ([]domain.Delivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var deliveries []domain.Delivery
	err := db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}
