package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	webhookdomain "github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
	webhookrepository "github.com/jeremyholland-coder/stageflow/internal/webhook/repository"
)

type capturingWebhookService struct {
	requests []webhookdomain.TriggerRequest
	orgIDs   []snowflake.ID
}

func (s *capturingWebhookService) Trigger(ctx context.Context, orgID snowflake.ID, req webhookdomain.TriggerRequest) (*webhookdomain.DeliveryOutcome, error) {
	s.requests = append(s.requests, req)
	s.orgIDs = append(s.orgIDs, orgID)
	return &webhookdomain.DeliveryOutcome{
		DeliveryID: uuid.New(),
		Success:    true,
		Status:     webhookdomain.DeliveryStatusSuccess,
	}, nil
}

func (s *capturingWebhookService) ListDeliveries(ctx context.Context, orgID snowflake.ID, webhookID uuid.UUID, limit int) ([]webhookdomain.Delivery, error) {
	return nil, nil
}

func TestRunOnceBroadcastsAndMarksPublished(t *testing.T) {
	db := setupRelayDB(t)
	webhookID := insertEndpoint(t, db, 100, true)
	insertEndpoint(t, db, 100, false)
	insertOutboxRow(t, db, 1, 100, "subscription_synced", `{"status":"active"}`)

	svc := &capturingWebhookService{}
	worker := NewWorker(Params{
		DB:          db,
		Log:         zap.NewNop(),
		WebhookRepo: webhookrepository.Provide(),
		WebhookSvc:  svc,
	})

	processed, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d", processed)
	}

	// Only the active endpoint receives the broadcast.
	if len(svc.requests) != 1 {
		t.Fatalf("trigger calls = %d", len(svc.requests))
	}
	if svc.requests[0].WebhookID != webhookID {
		t.Fatalf("webhook id = %s", svc.requests[0].WebhookID)
	}
	if svc.requests[0].Event != "subscription_synced" {
		t.Fatalf("event = %q", svc.requests[0].Event)
	}
	if svc.orgIDs[0] != snowflake.ID(100) {
		t.Fatalf("org id = %d", svc.orgIDs[0])
	}

	var published bool
	if err := db.Raw(`SELECT published FROM billing_events WHERE id = 1`).Scan(&published).Error; err != nil {
		t.Fatalf("load published: %v", err)
	}
	if !published {
		t.Fatal("event not marked published")
	}

	// A drained outbox yields nothing on the next run.
	processed, err = worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second run processed = %d", processed)
	}
}

func TestRunOnceWithoutEndpointsStillPublishes(t *testing.T) {
	db := setupRelayDB(t)
	insertOutboxRow(t, db, 1, 200, "subscription_canceled", `{"status":"canceled"}`)

	svc := &capturingWebhookService{}
	worker := NewWorker(Params{
		DB:          db,
		Log:         zap.NewNop(),
		WebhookRepo: webhookrepository.Provide(),
		WebhookSvc:  svc,
	})

	processed, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d", processed)
	}
	if len(svc.requests) != 0 {
		t.Fatalf("trigger calls = %d", len(svc.requests))
	}
}

func setupRelayDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS billing_events (
			id BIGINT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (org_id, dedupe_key)
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_configs (
			id TEXT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func insertEndpoint(t *testing.T, db *gorm.DB, orgID int64, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	if err := db.Exec(
		`INSERT INTO webhook_configs (id, org_id, url, secret, active, created_at, updated_at)
		 VALUES (?, ?, 'https://example.com/hook', 'whsec', ?, ?, ?)`,
		id, orgID, active, now, now,
	).Error; err != nil {
		t.Fatalf("insert endpoint: %v", err)
	}
	return id
}

func insertOutboxRow(t *testing.T, db *gorm.DB, id, orgID int64, eventType, payload string) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO billing_events (id, org_id, event_type, payload, dedupe_key, published, created_at)
		 VALUES (?, ?, ?, ?, ?, false, CURRENT_TIMESTAMP)`,
		id, orgID, eventType, payload, fmt.Sprintf("dedupe_%d", id),
	).Error; err != nil {
		t.Fatalf("insert outbox row: %v", err)
	}
}
