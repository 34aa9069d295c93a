package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is append-only. Audit rows are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, db *gorm.DB, entry *AuditLog) error
}
