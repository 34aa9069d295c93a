// Package domain contains the persistence models the inbound provider
// pipeline mutates: the mirrored subscription state and the owning
// organization's plan fields.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

const PlanFree = "free"

// Subscription mirrors an external provider subscription.
// A row never exists without a resolved owning organization.
type Subscription struct {
	ID                     snowflake.ID       `json:"id" gorm:"primaryKey"`
	OrgID                  snowflake.ID       `json:"org_id" gorm:"not null;index"`
	ExternalSubscriptionID string             `json:"external_subscription_id" gorm:"type:text;not null;uniqueIndex"`
	ExternalCustomerID     string             `json:"external_customer_id" gorm:"type:text;not null;index"`
	Status                 SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	PlanTier               string             `json:"plan_tier" gorm:"type:text;not null"`
	PeriodStart            *time.Time         `json:"period_start"`
	PeriodEnd              *time.Time         `json:"period_end"`
	CreatedAt              time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time          `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Organization is the partial view owned by the inbound pipeline: only
// plan and subscription_id are written here.
type Organization struct {
	ID                 snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name               string        `json:"name" gorm:"type:text;not null"`
	ExternalCustomerID *string       `json:"external_customer_id" gorm:"type:text;uniqueIndex"`
	Plan               string        `json:"plan" gorm:"type:text;not null;default:free"`
	SubscriptionID     *snowflake.ID `json:"subscription_id"`
	CreatedAt          time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time     `json:"updated_at" gorm:"not null"`
}

func (Organization) TableName() string { return "organizations" }
