package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/cache"
	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/observability/logger"
	"github.com/jeremyholland-coder/stageflow/internal/observability/metrics"
	"github.com/jeremyholland-coder/stageflow/internal/signature"
	"github.com/jeremyholland-coder/stageflow/internal/ssrf"
	"github.com/jeremyholland-coder/stageflow/internal/webhook/domain"

	auditdomain "github.com/jeremyholland-coder/stageflow/internal/audit/domain"
)

// SignatureHeader carries the payload signature on outbound deliveries.
const SignatureHeader = "X-Stageflow-Signature"

const configCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Guard  ssrf.Guard
	Client *http.Client `name:"webhook_client"`
	Audit  auditdomain.Service
}

type Service struct {
	cfg     config.DeliveryConfig
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	guard   ssrf.Guard
	client  *http.Client
	audit   auditdomain.Service
	configs cache.Cache[uuid.UUID, *domain.WebhookConfig]
	metrics *metrics.DeliveryMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		cfg:     p.Config.Delivery,
		db:      p.DB,
		log:     p.Log.Named("webhook.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		guard:   p.Guard,
		client:  p.Client,
		audit:   p.Audit,
		configs: cache.NewTTLCache[uuid.UUID, *domain.WebhookConfig](),
		metrics: metrics.DeliveryWithConfig(metrics.Config{
			ServiceName: "stageflow",
			Environment: p.Config.Environment,
		}),
	}
}

// deliveryEnvelope is the exact body delivered to the endpoint. It is
// marshaled once; the same bytes are signed, sent, and stored.
type deliveryEnvelope struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	WebhookID string         `json:"webhook_id"`
	Timestamp int64          `json:"timestamp"`
}

// Trigger validates, records, and synchronously attempts one delivery. The
// URL is re-checked against the egress guard on every call so a DNS change
// after registration cannot reach internal networks.
func (s *Service) Trigger(ctx context.Context, orgID snowflake.ID, req domain.TriggerRequest) (*domain.DeliveryOutcome, error) {
	log := logger.FromContext(ctx)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	endpoint, err := s.findWebhook(ctx, orgID, req.WebhookID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil || !endpoint.Active {
		return nil, domain.ErrWebhookNotFound
	}

	// Refuse before writing anything: a forbidden URL never produces a
	// delivery row.
	if decision := s.guard.Validate(ctx, endpoint.URL); !decision.Allowed {
		s.metrics.ObserveRefusedURL()
		s.auditTrigger(ctx, orgID, endpoint.ID, "webhook.trigger.refused", map[string]any{
			"reason": decision.Reason,
			"event":  req.Event,
		})
		return nil, &domain.URLForbiddenError{Reason: decision.Reason}
	}

	now := s.clock.Now()
	envelope := deliveryEnvelope{
		Event:     req.Event,
		Data:      req.Data,
		WebhookID: endpoint.ID.String(),
		Timestamp: now.Unix(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	delivery := &domain.Delivery{
		ID:        uuid.New(),
		WebhookID: endpoint.ID,
		Event:     req.Event,
		Payload:   datatypes.JSON(body),
		Status:    domain.DeliveryStatusPending,
		CreatedAt: now,
	}
	if err := s.repo.InsertDelivery(ctx, s.db, delivery); err != nil {
		return nil, err
	}

	attemptStart := time.Now()
	s.attempt(ctx, endpoint, delivery, body, now)
	s.metrics.ObserveDelivery(string(delivery.Status), time.Since(attemptStart))

	if _, err := s.repo.FinalizeDelivery(ctx, s.db, delivery); err != nil {
		// The attempt already happened; surface the bookkeeping failure
		// rather than pretending the delivery never ran.
		return nil, err
	}

	log.Info("webhook delivery finished",
		zap.String("webhook_id", endpoint.ID.String()),
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("event", req.Event),
		zap.String("status", string(delivery.Status)),
	)
	s.auditTrigger(ctx, orgID, endpoint.ID, "webhook.trigger", map[string]any{
		"delivery_id": delivery.ID.String(),
		"event":       req.Event,
		"status":      string(delivery.Status),
	})

	return &domain.DeliveryOutcome{
		DeliveryID:     delivery.ID,
		Success:        delivery.Status == domain.DeliveryStatusSuccess,
		Status:         delivery.Status,
		ResponseStatus: delivery.ResponseStatus,
	}, nil
}

func (s *Service) ListDeliveries(ctx context.Context, orgID snowflake.ID, webhookID uuid.UUID, limit int) ([]domain.Delivery, error) {
	endpoint, err := s.findWebhook(ctx, orgID, webhookID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, domain.ErrWebhookNotFound
	}
	return s.repo.ListDeliveries(ctx, s.db, webhookID, limit)
}

func (s *Service) validateRequest(req domain.TriggerRequest) error {
	event := strings.TrimSpace(req.Event)
	if event == "" {
		return domain.ErrEventRequired
	}
	if len(event) > s.cfg.MaxEventLength {
		return domain.ErrEventTooLong
	}
	if req.Data != nil {
		encoded, err := json.Marshal(req.Data)
		if err != nil {
			return err
		}
		if len(encoded) > s.cfg.MaxPayloadBytes {
			return domain.ErrPayloadTooLarge
		}
	}
	return nil
}

func (s *Service) findWebhook(ctx context.Context, orgID snowflake.ID, id uuid.UUID) (*domain.WebhookConfig, error) {
	if cached, ok := s.configs.Get(id); ok {
		if cached.OrgID != orgID {
			return nil, nil
		}
		return cached, nil
	}
	endpoint, err := s.repo.FindWebhook(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if endpoint != nil {
		s.configs.Set(id, endpoint, configCacheTTL)
	}
	return endpoint, nil
}

// attempt performs the outbound request and fills the delivery's terminal
// fields in place. It never returns an error: every failure mode becomes a
// failed delivery row.
func (s *Service) attempt(ctx context.Context, endpoint *domain.WebhookConfig, delivery *domain.Delivery, body []byte, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		s.fail(delivery, nil, err.Error())
		return
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(SignatureHeader, signature.Header(now.Unix(), signature.Sign(endpoint.Secret, now.Unix(), body)))

	response, err := s.client.Do(request)
	if err != nil {
		s.fail(delivery, nil, err.Error())
		return
	}
	defer response.Body.Close()

	// Read one byte past the limit so truncation is detectable without
	// buffering an unbounded body.
	raw, _ := io.ReadAll(io.LimitReader(response.Body, int64(s.cfg.ResponseBodyLimit)+1))
	responseBody := string(raw)
	if len(responseBody) > s.cfg.ResponseBodyLimit {
		responseBody = responseBody[:s.cfg.ResponseBodyLimit]
	}

	status := response.StatusCode
	delivery.ResponseStatus = &status
	delivery.ResponseBody = &responseBody
	deliveredAt := s.clock.Now()
	delivery.DeliveredAt = &deliveredAt

	if status >= 200 && status < 400 {
		delivery.Status = domain.DeliveryStatusSuccess
	} else {
		delivery.Status = domain.DeliveryStatusFailed
	}
}

func (s *Service) fail(delivery *domain.Delivery, responseStatus *int, message string) {
	deliveredAt := s.clock.Now()
	delivery.Status = domain.DeliveryStatusFailed
	delivery.ResponseStatus = responseStatus
	delivery.Error = &message
	delivery.DeliveredAt = &deliveredAt
}

func (s *Service) auditTrigger(ctx context.Context, orgID snowflake.ID, webhookID uuid.UUID, action string, metadata map[string]any) {
	target := webhookID.String()
	if err := s.audit.AuditLog(ctx, &orgID, "", nil, action, "webhook", &target, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
