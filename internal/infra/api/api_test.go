package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edupay-service/internal/domain"
	"edupay-service/internal/domain/model"
	"edupay-service/internal/infra/redis"
	"edupay-service/internal/usecase"

	"github.com/rs/zerolog"
)

// stubPaymentUC scripts the use case layer so handler behavior can be tested
// in isolation.
type stubPaymentUC struct {
	initiateErr error
	webhookErr  error
	payment     *model.Payment
}

var _ usecase.PaymentUseCase = (*stubPaymentUC)(nil)

func (s *stubPaymentUC) Fee() (int64, string) { return 5000, "XAF" }

func (s *stubPaymentUC) Initiate(ctx context.Context, req usecase.InitiateRequest) (*model.Payment, error) {
	if s.initiateErr != nil {
		return nil, s.initiateErr
	}
	return s.payment, nil
}

func (s *stubPaymentUC) CheckStatus(ctx context.Context, userID, transactionID string) (*model.Payment, error) {
	if s.payment == nil || s.payment.TransactionID != transactionID {
		return nil, domain.ErrNotFound
	}
	return s.payment, nil
}

func (s *stubPaymentUC) ProcessWebhook(ctx context.Context, rawBody []byte, signature string) (*usecase.WebhookResult, error) {
	if s.webhookErr != nil {
		return nil, s.webhookErr
	}
	return &usecase.WebhookResult{Success: true, Status: model.PaymentStatusSuccess}, nil
}

func (s *stubPaymentUC) SumByPeriod(ctx context.Context, period string) (int64, error) {
	return 12500, nil
}

type stubSubUC struct{}

var _ usecase.SubscriptionUseCase = (*stubSubUC)(nil)

func (stubSubUC) Plans() []model.Plan { return model.Catalog() }
func (stubSubUC) Subscribe(ctx context.Context, userID string, plan model.PlanType, courseID *string, phone string, amount int64) (*model.Subscription, *model.Payment, error) {
	return nil, nil, domain.ErrAmountMismatch
}
func (stubSubUC) MySubscriptions(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return nil, nil
}
func (stubSubUC) CheckAccess(ctx context.Context, userID, service string, courseID *string) (bool, error) {
	return service == "courses", nil
}
func (stubSubUC) Cancel(ctx context.Context, userID, subscriptionID string, isAdmin bool) (*model.Subscription, error) {
	return nil, domain.ErrNotFound
}
func (stubSubUC) ExpireDue(ctx context.Context) (int64, error) { return 3, nil }
func (stubSubUC) ListAll(ctx context.Context, limit, offset int) ([]*model.Subscription, error) {
	return nil, nil
}

type stubAccessUC struct{}

var _ usecase.AccessUseCase = (*stubAccessUC)(nil)

func (stubAccessUC) RecordAIUsage(ctx context.Context, userID, prompt string) (int, error) {
	return 7, nil
}

// fakeRedis satisfies the limiter's client surface with a plain counter.
type fakeRedis struct{ counts map[string]int64 }

var _ redis.RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis { return &fakeRedis{counts: make(map[string]int64)} }

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}
func (f *fakeRedis) Expire(ctx context.Context, key string, _ time.Duration) error { return nil }
func (f *fakeRedis) Del(ctx context.Context, keys ...string) error                 { return nil }
func (f *fakeRedis) Close() error                                                  { return nil }

func newTestServer(t *testing.T, payUC usecase.PaymentUseCase) (*httptest.Server, *AuthManager) {
	t.Helper()
	logger := zerolog.Nop()
	auth := NewAuthManager("test-jwt-secret", time.Hour)
	limiter := redis.NewRateLimiter(newFakeRedis())
	srv := NewServer(0, ServerDeps{
		Auth:          auth,
		Limiter:       limiter,
		Payments:      NewPaymentHandlers(payUC, &logger),
		Subs:          NewSubscriptionHandlers(stubSubUC{}, stubAccessUC{}, &logger),
		InitiateLimit: 2,
	}, &logger)
	ts := httptest.NewServer(srv.http.Handler)
	t.Cleanup(ts.Close)
	return ts, auth
}

func bearer(t *testing.T, auth *AuthManager, userID string, admin bool) string {
	t.Helper()
	tok, err := auth.Mint(userID, admin)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok
}

func doReq(t *testing.T, method, url, authHeader string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestFeeEndpointIsPublic(t *testing.T) {
	ts, _ := newTestServer(t, &stubPaymentUC{})
	resp := doReq(t, http.MethodGet, ts.URL+"/api/v1/payment/fee", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["amount"].(float64) != 5000 || body["currency"] != "XAF" {
		t.Errorf("body = %v", body)
	}
	if body["formattedAmount"] != "5 000 XAF" {
		t.Errorf("formattedAmount = %v, want %q", body["formattedAmount"], "5 000 XAF")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "0 XAF"},
		{500, "500 XAF"},
		{5000, "5 000 XAF"},
		{150000, "150 000 XAF"},
		{1234567, "1 234 567 XAF"},
		{-5000, "-5 000 XAF"},
	}
	for _, c := range cases {
		if got := formatAmount(c.amount, "XAF"); got != c.want {
			t.Errorf("formatAmount(%d) = %q, want %q", c.amount, got, c.want)
		}
	}
}

func TestInitiateRequiresAuth(t *testing.T) {
	ts, auth := newTestServer(t, &stubPaymentUC{payment: &model.Payment{
		TransactionID: "01TX", Status: model.PaymentStatusProcessing, Amount: 5000, Currency: "XAF",
		Purpose: model.PurposeRegistrationFee, InitiatedAt: time.Now(),
	}})

	body := []byte(`{"phoneNumber":"677123456"}`)
	resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/initiate", "", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/initiate", bearer(t, auth, "u1", false), body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("authenticated status = %d, want 202", resp.StatusCode)
	}
}

func TestInitiateRateLimit(t *testing.T) {
	ts, auth := newTestServer(t, &stubPaymentUC{payment: &model.Payment{
		TransactionID: "01TX", Status: model.PaymentStatusProcessing,
	}})
	hdr := bearer(t, auth, "u1", false)
	body := []byte(`{"phoneNumber":"677123456"}`)

	for i := 0; i < 2; i++ {
		resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/initiate", hdr, body)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("request %d status = %d, want 202", i+1, resp.StatusCode)
		}
	}
	resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/initiate", hdr, body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after limit", resp.StatusCode)
	}
}

func TestInitiateDuplicateConflict(t *testing.T) {
	ts, auth := newTestServer(t, &stubPaymentUC{
		initiateErr: &domain.DuplicatePendingPaymentError{TransactionID: "01EXISTING"},
	})
	resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/initiate", bearer(t, auth, "u1", false), []byte(`{"phoneNumber":"677123456"}`))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["transactionId"] != "01EXISTING" {
		t.Errorf("body = %v, want existing transaction id", body)
	}
}

func TestWebhookEndpoint(t *testing.T) {
	t.Run("processed webhook answers 200", func(t *testing.T) {
		ts, _ := newTestServer(t, &stubPaymentUC{})
		resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/webhook", "", []byte(`{"reference":"01TX","status":"successful"}`))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("invalid signature answers 200 with success false", func(t *testing.T) {
		ts, _ := newTestServer(t, &stubPaymentUC{webhookErr: domain.ErrInvalidSignature})
		resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/webhook", "", []byte(`{}`))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200 so the provider stops retrying", resp.StatusCode)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["received"] != true || body["success"] != false {
			t.Errorf("body = %v, want received=true success=false", body)
		}
	})

	t.Run("internal failure still answers 200", func(t *testing.T) {
		ts, _ := newTestServer(t, &stubPaymentUC{webhookErr: domain.ErrOperationFailed})
		resp := doReq(t, http.MethodPost, ts.URL+"/api/v1/payment/webhook", "", []byte(`{"reference":"01TX"}`))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, provider retries must not be triggered", resp.StatusCode)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["received"] != true || body["success"] != false {
			t.Errorf("body = %v, want received=true success=false", body)
		}
	})
}

func TestStatusEndpointBody(t *testing.T) {
	completed := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	ts, auth := newTestServer(t, &stubPaymentUC{payment: &model.Payment{
		TransactionID:   "01TX",
		Status:          model.PaymentStatusSuccess,
		Amount:          5000,
		Currency:        "XAF",
		Purpose:         model.PurposeRegistrationFee,
		PhoneNumber:     "237677123456",
		WebhookReceived: true,
		InitiatedAt:     completed.Add(-time.Minute),
		CompletedAt:     &completed,
	}})

	resp := doReq(t, http.MethodGet, ts.URL+"/api/v1/payment/status/01TX", bearer(t, auth, "u1", false), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["phoneNumber"] != "237677123456" {
		t.Errorf("phoneNumber = %v, want the normalized MSISDN", body["phoneNumber"])
	}
	if body["webhookReceived"] != true {
		t.Errorf("webhookReceived = %v, want true", body["webhookReceived"])
	}
	if body["status"] != "success" || body["transactionId"] != "01TX" {
		t.Errorf("body = %v", body)
	}
}

func TestAdminRoutes(t *testing.T) {
	ts, auth := newTestServer(t, &stubPaymentUC{})

	resp := doReq(t, http.MethodGet, ts.URL+"/api/v1/payment/admin/revenue?period=month", bearer(t, auth, "u1", false), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin status = %d, want 403", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, ts.URL+"/api/v1/payment/admin/revenue?period=month", bearer(t, auth, "admin", true), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, ts.URL+"/api/v1/subscriptions/admin/expire-check", bearer(t, auth, "admin", true), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expire-check status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["expired"].(float64) != 3 {
		t.Errorf("expired = %v, want 3", body["expired"])
	}
}

func TestCheckAccessEndpoint(t *testing.T) {
	ts, auth := newTestServer(t, &stubPaymentUC{})
	hdr := bearer(t, auth, "u1", false)

	resp := doReq(t, http.MethodGet, ts.URL+"/api/v1/subscriptions/check-access?service=courses", hdr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["allowed"] != true {
		t.Errorf("allowed = %v, want true", body["allowed"])
	}
}
