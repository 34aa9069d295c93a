// Package domain holds the API key model used to authenticate internal
// callers of the webhook trigger surface. Key issuance is managed elsewhere;
// this process only reads and verifies.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey stores only a hash of the issued key.
type APIKey struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index"`
	KeyHash   string       `gorm:"type:text;not null;uniqueIndex"`
	IsActive  bool         `gorm:"not null;default:true"`
	ExpiresAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

func (APIKey) TableName() string { return "api_keys" }

// HashAPIKey returns the stored digest for a presented key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
