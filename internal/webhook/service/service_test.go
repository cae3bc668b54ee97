package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/observability"
	referraldomain "github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/gainsai/gains-backend/internal/webhook/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "whsec"

type MockReferralService struct {
	mock.Mock
}

func (m *MockReferralService) GetStats(ctx context.Context, code string) (*referraldomain.StatsResponse, error) {
	args := m.Called(ctx, code)
	resp, _ := args.Get(0).(*referraldomain.StatsResponse)
	return resp, args.Error(1)
}

func (m *MockReferralService) ListPurchases(ctx context.Context, req referraldomain.ListPurchasesRequest) (*referraldomain.ListPurchasesResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*referraldomain.ListPurchasesResponse)
	return resp, args.Error(1)
}

func (m *MockReferralService) Create(ctx context.Context, req referraldomain.CreateRequest) (*referraldomain.CreateResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*referraldomain.CreateResponse)
	return resp, args.Error(1)
}

func (m *MockReferralService) ApplyPurchase(ctx context.Context, p referraldomain.Purchase) (*referraldomain.PurchaseRecord, error) {
	args := m.Called(ctx, p)
	resp, _ := args.Get(0).(*referraldomain.PurchaseRecord)
	return resp, args.Error(1)
}

type fixture struct {
	svc      domain.Service
	referral *MockReferralService
	redis    *miniredis.Miniredis
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, webhookSecret string) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	referral := &MockReferralService{}
	metrics := observability.NewNopMetrics()
	svc := New(Params{
		Log: zap.NewNop(),
		Cfg: config.Config{Webhook: config.WebhookConfig{
			Secret:   webhookSecret,
			DedupTTL: 72 * time.Hour,
		}},
		Referral: referral,
		Dedup:    NewDeduplicator(client),
		Metrics:  metrics,
	})
	return fixture{svc: svc, referral: referral, redis: mr, metrics: metrics}
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

const purchaseEvent = `{
	"api_version": "1.0",
	"event": {
		"id": "evt-1",
		"type": "INITIAL_PURCHASE",
		"app_user_id": "user-9",
		"product_id": "gains_monthly",
		"price": 9.99,
		"subscriber_attributes": {
			"$referralCode": {"value": "summer10", "updated_at_ms": 1},
			"$email": {"value": "lifter@example.com"}
		}
	}
}`

func TestIngestProcessesPurchase(t *testing.T) {
	f := newFixture(t, secret)
	f.referral.On("ApplyPurchase", mock.Anything, mock.MatchedBy(func(p referraldomain.Purchase) bool {
		return p.Code == "summer10" &&
			p.UserID == "user-9" &&
			p.ProductID == "gains_monthly" &&
			p.Price.Equal(decimal.RequireFromString("9.99")) &&
			p.EventType == referraldomain.EventInitialPurchase &&
			p.EventID == "evt-1"
	})).Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil).Once()

	outcome, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), bearer(secret))
	require.NoError(t, err)
	assert.Equal(t, domain.Processed, outcome.Kind)
	assert.Equal(t, "SUMMER10", outcome.Code)
	assert.True(t, f.redis.Exists("revenuecat:event:evt-1"))
	assert.Equal(t, 72*time.Hour, f.redis.TTL("revenuecat:event:evt-1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues("processed")))
	f.referral.AssertExpectations(t)
}

func TestIngestStoresMaskedEvent(t *testing.T) {
	f := newFixture(t, "")
	var stored []byte
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(referraldomain.Purchase).RawEvent }).
		Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil)

	_, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.NoError(t, err)

	require.NotEmpty(t, stored)
	assert.NotContains(t, string(stored), "lifter@example.com")
	var obj map[string]any
	require.NoError(t, json.Unmarshal(stored, &obj))
	attrs := obj["event"].(map[string]any)["subscriber_attributes"].(map[string]any)
	assert.Equal(t, "***", attrs["$email"])
	assert.Contains(t, string(stored), `"price":9.99`)
}

func TestIngestRejectsBadSecret(t *testing.T) {
	f := newFixture(t, secret)

	for _, headers := range []http.Header{{}, bearer("wrong"), {"Authorization": []string{secret}}} {
		_, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), headers)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	}
	f.referral.AssertNotCalled(t, "ApplyPurchase", mock.Anything, mock.Anything)
	assert.False(t, f.redis.Exists("revenuecat:event:evt-1"))
}

func TestIngestWithoutSecretSkipsAuth(t *testing.T) {
	f := newFixture(t, "")
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil)

	outcome, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), bearer("anything"))
	require.NoError(t, err)
	assert.True(t, outcome.Processed())
}

func TestIngestAcknowledgesUnsupportedEvent(t *testing.T) {
	f := newFixture(t, "")
	payload := `{"event":{"id":"evt-2","type":"CANCELLATION","subscriber_attributes":{"$referralCode":{"value":"X1Y"}}}}`

	outcome, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.AcknowledgedOnly, outcome.Kind)
	assert.Equal(t, domain.ReasonUnsupportedEventType, outcome.Reason)
	f.referral.AssertNotCalled(t, "ApplyPurchase", mock.Anything, mock.Anything)
}

func TestIngestAcknowledgesMissingCode(t *testing.T) {
	f := newFixture(t, "")
	payload := `{"event":{"id":"evt-3","type":"RENEWAL","price":4.99,"subscriber_attributes":{}}}`

	outcome, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonMissingReferralCode, outcome.Reason)
	assert.False(t, f.redis.Exists("revenuecat:event:evt-3"))
	f.referral.AssertNotCalled(t, "ApplyPurchase", mock.Anything, mock.Anything)
}

func TestIngestMalformedPayload(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.Ingest(context.Background(), []byte(`{"event":`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestIngestDuplicateDelivery(t *testing.T) {
	f := newFixture(t, "")
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil).Once()

	first, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.NoError(t, err)
	assert.True(t, first.Processed())

	second, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonDuplicateDelivery, second.Reason)
	f.referral.AssertNumberOfCalls(t, "ApplyPurchase", 1)
}

func TestIngestReleasesClaimOnFailure(t *testing.T) {
	f := newFixture(t, "")
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Return(nil, errors.New("boom")).Once()
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil).Once()

	_, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.Error(t, err)
	assert.False(t, f.redis.Exists("revenuecat:event:evt-1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WebhookEvents.WithLabelValues("failed")))

	outcome, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.NoError(t, err)
	assert.True(t, outcome.Processed())
}

func TestIngestFailsOpenWhenRedisIsDown(t *testing.T) {
	f := newFixture(t, "")
	f.redis.Close()
	f.referral.On("ApplyPurchase", mock.Anything, mock.Anything).
		Return(&referraldomain.PurchaseRecord{Code: "SUMMER10"}, nil)

	outcome, err := f.svc.Ingest(context.Background(), []byte(purchaseEvent), http.Header{})
	require.NoError(t, err)
	assert.True(t, outcome.Processed())
}

func TestNopDeduplicatorClaimsEverything(t *testing.T) {
	d := NewDeduplicator(nil)
	for i := 0; i < 2; i++ {
		ok, err := d.Claim(context.Background(), "evt", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMaskPayload(t *testing.T) {
	raw := `{"event":{"subscriber_attributes":{"$email":{"value":"a@b.c"},"$ip":{"value":"1.2.3.4"},"$referralCode":{"value":"OK1"}},"price":1.10}}`
	masked := maskPayload([]byte(raw))

	var output map[string]any
	require.NoError(t, json.Unmarshal(masked, &output))
	attrs := output["event"].(map[string]any)["subscriber_attributes"].(map[string]any)
	assert.Equal(t, "***", attrs["$email"])
	assert.Equal(t, "***", attrs["$ip"])
	assert.Equal(t, map[string]any{"value": "OK1"}, attrs["$referralCode"])
	assert.Contains(t, string(masked), `"price":1.10`)

	assert.Nil(t, maskPayload([]byte("not json")))
}
