package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/audit/domain"
	obscontext "github.com/jeremyholland-coder/stageflow/internal/observability/context"
	"github.com/jeremyholland-coder/stageflow/internal/observability/logger"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// AuditLog writes one immutable entry. When actor fields are empty they are
// filled from the request context stamped by the auth middleware.
func (s *Service) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	actorType = strings.TrimSpace(actorType)
	if actorType == "" {
		ctxType, ctxID := obscontext.ActorFromContext(ctx)
		actorType = ctxType
		if actorID == nil && ctxID != "" {
			actorID = &ctxID
		}
	}
	if actorType == "" {
		actorType = string(domain.ActorTypeSystem)
	}
	if orgID == nil {
		if ctxOrg := obscontext.OrgIDFromContext(ctx); ctxOrg != 0 {
			id := snowflake.ID(ctxOrg)
			orgID = &id
		}
	}

	payload := datatypes.JSONMap{}
	for key, value := range logger.MaskJSON(metadata) {
		payload[key] = value
	}

	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     strings.TrimSpace(action),
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   payload,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Append(ctx, s.db, entry); err != nil {
		s.log.Warn("audit insert failed", zap.String("action", entry.Action), zap.Error(err))
		return err
	}
	return nil
}
