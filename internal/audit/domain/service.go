package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service records audit entries. Implementations must never fail a business
// operation because an audit write failed; callers decide whether to ignore
// the returned error.
type Service interface {
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error
}
