package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/audit/domain"
)

type repository struct{}

// Provide builds the gorm-backed audit repository.
func Provide() domain.Repository {
	return repository{}
}

func (repository) Append(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}
