package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/clock"
	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/signature"
	"github.com/jeremyholland-coder/stageflow/internal/ssrf"
	"github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
	"github.com/jeremyholland-coder/stageflow/internal/webhook/repository"
)

const (
	testOrgID  = snowflake.ID(100)
	testSecret = "whsec_endpoint"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type allowGuard struct{}

func (allowGuard) Validate(ctx context.Context, rawURL string) ssrf.Decision {
	return ssrf.Decision{Allowed: true}
}

type denyGuard struct{}

func (denyGuard) Validate(ctx context.Context, rawURL string) ssrf.Decision {
	return ssrf.Decision{Allowed: false, Reason: "loopback address"}
}

type nopAudit struct{}

func (nopAudit) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func TestTriggerDeliversSignedPayload(t *testing.T) {
	var gotHeader string
	var gotBody []byte
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(SignatureHeader)
		gotBody = readAll(t, r)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer endpoint.Close()

	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, endpoint.URL, true)

	outcome, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
		Data:      map[string]any{"deal_id": "d_1", "stage": "closed_won"},
	})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected successful delivery")
	}
	if outcome.Status != domain.DeliveryStatusSuccess {
		t.Fatalf("status = %q", outcome.Status)
	}
	if outcome.ResponseStatus == nil || *outcome.ResponseStatus != http.StatusOK {
		t.Fatalf("response status = %v", outcome.ResponseStatus)
	}

	if err := signature.Verify(testSecret, gotHeader, gotBody, testNow, 5*time.Minute); err != nil {
		t.Fatalf("delivered signature does not verify: %v", err)
	}
	if !strings.Contains(string(gotBody), `"event":"deal.stage_changed"`) {
		t.Fatalf("body = %s", gotBody)
	}

	delivery := loadDelivery(t, db, outcome.DeliveryID)
	if delivery.Status != domain.DeliveryStatusSuccess {
		t.Fatalf("stored status = %q", delivery.Status)
	}
	if delivery.ResponseBody == nil || *delivery.ResponseBody != `{"ok":true}` {
		t.Fatalf("stored response body = %v", delivery.ResponseBody)
	}
	if delivery.DeliveredAt == nil {
		t.Fatal("delivered_at not set")
	}
}

func TestTriggerRecordsEndpointFailure(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer endpoint.Close()

	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, endpoint.URL, true)

	outcome, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	if err != nil {
		t.Fatalf("a refused endpoint response is an outcome, not an error: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected failed delivery")
	}
	if outcome.ResponseStatus == nil || *outcome.ResponseStatus != http.StatusBadGateway {
		t.Fatalf("response status = %v", outcome.ResponseStatus)
	}

	delivery := loadDelivery(t, db, outcome.DeliveryID)
	if delivery.Status != domain.DeliveryStatusFailed {
		t.Fatalf("stored status = %q", delivery.Status)
	}
}

func TestTriggerRecordsNetworkError(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := endpoint.URL
	endpoint.Close()

	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, url, true)

	outcome, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected failed delivery")
	}
	if outcome.ResponseStatus != nil {
		t.Fatalf("response status = %v", *outcome.ResponseStatus)
	}

	delivery := loadDelivery(t, db, outcome.DeliveryID)
	if delivery.Error == nil || *delivery.Error == "" {
		t.Fatal("expected stored error message")
	}
}

func TestTriggerTruncatesResponseBody(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 5000))
	}))
	defer endpoint.Close()

	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, endpoint.URL, true)

	outcome, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	delivery := loadDelivery(t, db, outcome.DeliveryID)
	if delivery.ResponseBody == nil || len(*delivery.ResponseBody) != 1000 {
		t.Fatalf("response body length = %d", len(stringOrEmpty(delivery.ResponseBody)))
	}
}

func TestTriggerRefusesForbiddenURL(t *testing.T) {
	svc, db := setupTriggerService(t, denyGuard{})
	webhookID := insertWebhook(t, db, testOrgID, "http://127.0.0.1:9/hook", true)

	_, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	var forbidden *domain.URLForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected URLForbiddenError, got %v", err)
	}
	if forbidden.Reason != "loopback address" {
		t.Fatalf("reason = %q", forbidden.Reason)
	}

	// No delivery row may exist for a refused URL.
	var count int64
	if err := db.Model(&domain.Delivery{}).Count(&count).Error; err != nil {
		t.Fatalf("count deliveries: %v", err)
	}
	if count != 0 {
		t.Fatalf("deliveries = %d", count)
	}
}

func TestTriggerValidation(t *testing.T) {
	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, "https://example.com/hook", true)

	cases := []struct {
		name string
		req  domain.TriggerRequest
		want error
	}{
		{
			name: "empty event",
			req:  domain.TriggerRequest{WebhookID: webhookID, Event: "   "},
			want: domain.ErrEventRequired,
		},
		{
			name: "event too long",
			req:  domain.TriggerRequest{WebhookID: webhookID, Event: strings.Repeat("e", 101)},
			want: domain.ErrEventTooLong,
		},
		{
			name: "payload too large",
			req: domain.TriggerRequest{
				WebhookID: webhookID,
				Event:     "deal.stage_changed",
				Data:      map[string]any{"blob": strings.Repeat("x", 101*1024)},
			},
			want: domain.ErrPayloadTooLarge,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Trigger(context.Background(), testOrgID, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTriggerUnknownWebhook(t *testing.T) {
	svc, _ := setupTriggerService(t, allowGuard{})

	_, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: uuid.New(),
		Event:     "deal.stage_changed",
	})
	if !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestTriggerCrossOrgWebhookHidden(t *testing.T) {
	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, snowflake.ID(999), "https://example.com/hook", true)

	_, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	if !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestTriggerInactiveWebhookHidden(t *testing.T) {
	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, "https://example.com/hook", false)

	_, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
		WebhookID: webhookID,
		Event:     "deal.stage_changed",
	})
	if !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound for inactive endpoint, got %v", err)
	}
}

func TestListDeliveries(t *testing.T) {
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	svc, db := setupTriggerService(t, allowGuard{})
	webhookID := insertWebhook(t, db, testOrgID, endpoint.URL, true)

	for i := 0; i < 3; i++ {
		if _, err := svc.Trigger(context.Background(), testOrgID, domain.TriggerRequest{
			WebhookID: webhookID,
			Event:     fmt.Sprintf("deal.stage_changed.%d", i),
		}); err != nil {
			t.Fatalf("trigger %d: %v", i, err)
		}
	}

	deliveries, err := svc.ListDeliveries(context.Background(), testOrgID, webhookID, 2)
	if err != nil {
		t.Fatalf("list deliveries: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("deliveries = %d", len(deliveries))
	}

	if _, err := svc.ListDeliveries(context.Background(), snowflake.ID(999), webhookID, 10); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound for foreign org, got %v", err)
	}
}

func setupTriggerService(t *testing.T, guard ssrf.Guard) (domain.Service, *gorm.DB) {
	t.Helper()
	db := setupWebhookDB(t)
	cfg := config.Config{
		Delivery: config.DeliveryConfig{
			Timeout:           5 * time.Second,
			MaxEventLength:    100,
			MaxPayloadBytes:   100 * 1024,
			ResponseBodyLimit: 1000,
		},
	}
	svc := NewService(Params{
		Config: cfg,
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clock.FixedClock{At: testNow},
		Repo:   repository.Provide(),
		Guard:  guard,
		Client: &http.Client{Timeout: cfg.Delivery.Timeout},
		Audit:  nopAudit{},
	})
	return svc, db
}

func setupWebhookDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS webhook_configs (
			id TEXT PRIMARY KEY,
			org_id BIGINT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
			id TEXT PRIMARY KEY,
			webhook_id TEXT NOT NULL,
			event TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL,
			response_status INTEGER,
			response_body TEXT,
			error TEXT,
			delivered_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func insertWebhook(t *testing.T, db *gorm.DB, orgID snowflake.ID, url string, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := db.Exec(
		`INSERT INTO webhook_configs (id, org_id, url, secret, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, orgID, url, testSecret, active, testNow, testNow,
	).Error; err != nil {
		t.Fatalf("insert webhook: %v", err)
	}
	return id
}

func loadDelivery(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Delivery {
	t.Helper()
	var delivery domain.Delivery
	if err := db.First(&delivery, "id = ?", id).Error; err != nil {
		t.Fatalf("load delivery: %v", err)
	}
	return &delivery
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func readAll(t *testing.T, r *http.Request) []byte {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	return body
}
