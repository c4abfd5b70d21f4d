package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalshift/vitalshift-backend/internal/fees"
	"github.com/vitalshift/vitalshift-backend/internal/invoices"
	"github.com/vitalshift/vitalshift-backend/internal/ledger"
	"github.com/vitalshift/vitalshift-backend/internal/paymentintents"
	"github.com/vitalshift/vitalshift-backend/internal/payouts"
	"github.com/vitalshift/vitalshift-backend/internal/settlement"
	gatewaywebhook "github.com/vitalshift/vitalshift-backend/internal/webhooks/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/config"
	"github.com/vitalshift/vitalshift-backend/pkg/db/models"
	"github.com/vitalshift/vitalshift-backend/pkg/enums"
	"github.com/vitalshift/vitalshift-backend/pkg/gateway"
	"github.com/vitalshift/vitalshift-backend/pkg/logger"
	"github.com/vitalshift/vitalshift-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLedgerService struct{}

func (stubLedgerService) Record(ctx context.Context, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (stubLedgerService) RecordTx(ctx context.Context, tx *gorm.DB, input ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}

func (stubLedgerService) ListByStintID(ctx context.Context, stintID uuid.UUID) ([]models.LedgerEntry, error) {
	return []models.LedgerEntry{}, nil
}

func (stubLedgerService) HasEntry(ctx context.Context, stintID uuid.UUID, entryType enums.LedgerEntryType) (bool, error) {
	return false, nil
}

type stubStintService struct{}

func (stubStintService) GetByID(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	return &models.Stint{ID: id}, nil
}

func (stubStintService) Complete(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	return &models.Stint{ID: id}, nil
}

func (stubStintService) Dispute(ctx context.Context, id uuid.UUID) (*models.Stint, error) {
	return &models.Stint{ID: id}, nil
}

type stubPaymentService struct {
	expired int
}

func (s *stubPaymentService) Create(ctx context.Context, input paymentintents.CreateIntentInput) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{}, nil
}

func (s *stubPaymentService) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{ID: id}, nil
}

func (s *stubPaymentService) InitiateMpesa(ctx context.Context, id uuid.UUID, phone string) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{ID: id}, nil
}

func (s *stubPaymentService) InitiateCard(ctx context.Context, id uuid.UUID, email string) (*gateway.CheckoutLink, error) {
	return &gateway.CheckoutLink{}, nil
}

func (s *stubPaymentService) Verify(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return &models.PaymentIntent{ID: id}, nil
}

func (s *stubPaymentService) ApplyGatewayResult(ctx context.Context, result paymentintents.GatewayResult) error {
	return nil
}

func (s *stubPaymentService) ExpireStale(ctx context.Context) (int, error) {
	return s.expired, nil
}

type stubPayoutService struct{}

func (stubPayoutService) ScheduleTx(ctx context.Context, tx *gorm.DB, input payouts.ScheduleInput) (*models.Payout, error) {
	return &models.Payout{}, nil
}

func (stubPayoutService) GetByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return &models.Payout{ID: id}, nil
}

func (stubPayoutService) GetByStintID(ctx context.Context, stintID uuid.UUID) (*models.Payout, error) {
	return &models.Payout{StintID: stintID}, nil
}

func (stubPayoutService) DispatchDue(ctx context.Context) (payouts.DispatchStats, error) {
	return payouts.DispatchStats{Dispatched: 1}, nil
}

func (stubPayoutService) ApplyTransferResult(ctx context.Context, result payouts.TransferResult) error {
	return nil
}

func (stubPayoutService) AdminFail(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

type stubInvoiceService struct{}

func (stubInvoiceService) IssueTx(ctx context.Context, tx *gorm.DB, input invoices.IssueInput) (*models.Invoice, error) {
	return &models.Invoice{}, nil
}

func (stubInvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return &models.Invoice{ID: id}, nil
}

func (stubInvoiceService) ListByEmployer(ctx context.Context, employerID uuid.UUID, limit int) ([]models.Invoice, error) {
	return []models.Invoice{}, nil
}

func (stubInvoiceService) ListOverdue(ctx context.Context, limit int) ([]models.Invoice, error) {
	return []models.Invoice{}, nil
}

func (stubInvoiceService) MarkPaid(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return &models.Invoice{ID: id}, nil
}

type stubSettlementService struct{}

func (stubSettlementService) Run(ctx context.Context) (settlement.Result, error) {
	return settlement.Result{Scanned: 2, MarkedReady: 2, Processed: 2}, nil
}

type routerStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *routerStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *routerStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[string]string{}
	}
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *routerStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("vs:idempotency:%s:%s", scope, id)
}

func (s *routerStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Env: "test", Port: "0"},
		Cron: config.CronConfig{Secret: "cron-secret"},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	webhookService, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Intents: &stubPaymentService{},
		Payouts: stubPayoutService{},
		Logger:  logg,
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	webhookGuard, err := gatewaywebhook.NewIdempotencyGuard(&routerStore{}, time.Minute, "gateway-webhook")
	if err != nil {
		t.Fatalf("webhook guard: %v", err)
	}

	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		(*gateway.Client)(nil),
		fees.CurrentSchedule(),
		stubLedgerService{},
		stubStintService{},
		&stubPaymentService{expired: 3},
		stubPayoutService{},
		stubInvoiceService{},
		stubSettlementService{},
		webhookService,
		webhookGuard,
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestCronEndpointsRequireSecret(t *testing.T) {
	router := newTestRouter(t, testConfig())

	for _, path := range []string{"/cron/expire-payments", "/cron/process-payouts"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token got %d", path, resp.Code)
		}

		req = httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 with token got %d", path, resp.Code)
		}
	}
}

func TestCronExpirePaymentsReportsCount(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/cron/expire-payments", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var body struct {
		Data struct {
			Expired int `json:"expired"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Expired != 3 {
		t.Fatalf("expected 3 expired got %d", body.Data.Expired)
	}
}

func TestFeeQuote(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fees/quote?amount_cents=5000", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}

	var body struct {
		Data fees.Breakdown `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.TotalChargeCents != 5750 {
		t.Fatalf("expected total 5750 got %d", body.Data.TotalChargeCents)
	}
}

func TestPaymentRoutesRejectBadIDs(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/not-a-uuid", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestStintLedgerRoute(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stints/"+uuid.NewString()+"/ledger", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestGatewayWebhookRouteRejectsUnsignedPayloads(t *testing.T) {
	router := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestGatewayWebhookRouteSkipVerifyOutsideProd(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags.SkipWebhookVerify = true
	router := newTestRouter(t, cfg)

	body := `{"event_id":"evt_local","type":"charge.completed","reference":"REF-LOCAL"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with verification skipped got %d (%s)", resp.Code, resp.Body.String())
	}
}

func TestGatewayWebhookRouteSkipVerifyIgnoredInProd(t *testing.T) {
	cfg := testConfig()
	cfg.App.Env = config.AppEnvProd
	cfg.FeatureFlags.SkipWebhookVerify = true
	router := newTestRouter(t, cfg)

	body := `{"event_id":"evt_prod","type":"charge.completed","reference":"REF-PROD"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("prod must keep verification on, got %d", resp.Code)
	}
}
