// Package relay drains the billing event outbox and broadcasts each event to
// the owning organization's active webhook endpoints.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/observability/metrics"
	webhookdomain "github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	WebhookRepo webhookdomain.Repository
	WebhookSvc  webhookdomain.Service
	Config      Config `optional:"true"`
}

type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	webhookRepo webhookdomain.Repository
	webhookSvc  webhookdomain.Service
	cfg         Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:          p.DB,
		log:         p.Log.Named("events.relay"),
		webhookRepo: p.WebhookRepo,
		webhookSvc:  p.WebhookSvc,
		cfg:         p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("outbox relay run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type outboxRow struct {
	ID        snowflake.ID      `gorm:"column:id"`
	OrgID     snowflake.ID      `gorm:"column:org_id"`
	EventType string            `gorm:"column:event_type"`
	Payload   datatypes.JSONMap `gorm:"column:payload"`
}

// RunOnce drains one batch. The relay runs as a single instance; each event
// is marked published after its broadcast attempt, and failed deliveries are
// visible in the delivery ledger rather than retried here.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.webhookRepo == nil || w.webhookSvc == nil {
		return 0, errors.New("relay_unavailable")
	}

	var rows []outboxRow
	if err := w.db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_type, payload
		 FROM billing_events
		 WHERE published = false
		 ORDER BY id
		 LIMIT ?`,
		w.cfg.BatchSize,
	).Scan(&rows).Error; err != nil {
		return 0, err
	}

	processed := 0
	for _, row := range rows {
		w.broadcast(ctx, row)
		if err := w.markPublished(ctx, row.ID); err != nil {
			return processed, err
		}
		processed++
	}

	var backlog int64
	if err := w.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM billing_events WHERE published = false`,
	).Scan(&backlog).Error; err == nil {
		metrics.Delivery().SetOutboxBacklog(int(backlog))
	}
	return processed, nil
}

func (w *Worker) broadcast(ctx context.Context, row outboxRow) {
	endpoints, err := w.webhookRepo.ListActiveWebhooks(ctx, w.db, row.OrgID)
	if err != nil {
		w.log.Warn("listing webhook endpoints failed",
			zap.Int64("org_id", int64(row.OrgID)),
			zap.Error(err),
		)
		return
	}

	for _, endpoint := range endpoints {
		outcome, err := w.webhookSvc.Trigger(ctx, row.OrgID, webhookdomain.TriggerRequest{
			WebhookID: endpoint.ID,
			Event:     row.EventType,
			Data:      map[string]any(row.Payload),
		})
		if err != nil {
			w.log.Warn("outbox broadcast refused",
				zap.String("webhook_id", endpoint.ID.String()),
				zap.String("event_type", row.EventType),
				zap.Error(err),
			)
			continue
		}
		if !outcome.Success {
			w.log.Info("outbox broadcast delivery failed",
				zap.String("webhook_id", endpoint.ID.String()),
				zap.String("delivery_id", outcome.DeliveryID.String()),
				zap.String("event_type", row.EventType),
			)
		}
	}
}

func (w *Worker) markPublished(ctx context.Context, id snowflake.ID) error {
	return w.db.WithContext(ctx).Exec(
		`UPDATE billing_events SET published = true WHERE id = ?`,
		id,
	).Error
}
