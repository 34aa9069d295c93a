// Package domain defines the outbound webhook endpoints and their delivery
// ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookConfig is a tenant-registered delivery endpoint. The secret signs
// every payload sent to it and is never serialized outward.
type WebhookConfig struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID     snowflake.ID `json:"org_id" gorm:"not null;index"`
	URL       string       `json:"url" gorm:"type:text;not null"`
	Secret    string       `json:"-" gorm:"type:text;not null"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (WebhookConfig) TableName() string { return "webhook_configs" }

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Delivery is one attempt row. It is inserted as pending before the outbound
// request and finalized exactly once to success or failed, so an operator can
// always see what left the building.
type Delivery struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	WebhookID      uuid.UUID      `json:"webhook_id" gorm:"type:uuid;not null;index"`
	Event          string         `json:"event" gorm:"type:text;not null"`
	Payload        datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	Status         DeliveryStatus `json:"status" gorm:"type:text;not null"`
	ResponseStatus *int           `json:"response_status"`
	ResponseBody   *string        `json:"response_body"`
	Error          *string        `json:"error"`
	DeliveredAt    *time.Time     `json:"delivered_at"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null"`
}

func (Delivery) TableName() string { return "webhook_deliveries" }
