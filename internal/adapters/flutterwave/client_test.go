package flutterwave

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "FLWSECK_TEST-secret")
	cfg.Timeouts.GatewayAttempt = 200 * time.Millisecond
	cfg.Backoff = &resilience.FixedBackoff{Delay: time.Millisecond}
	return NewClient(cfg, srv.Client(), zap.NewNop()), srv
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "success",
		"message": "ok",
		"data":    data,
	}))
}

func TestClient_ImplementsPaymentGateway(t *testing.T) {
	assert.Implements(t, (*ports.PaymentGateway)(nil), NewClient(DefaultConfig("http://localhost", "k"), nil, zap.NewNop()))
}

func TestCreatePayment_SendsCheckoutRequest(t *testing.T) {
	var got map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer FLWSECK_TEST-secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(t, w, map[string]string{"link": "https://checkout.flutterwave.com/v3/hosted/pay/abc"})
	})

	result, err := client.CreatePayment(t.Context(), &ports.CreatePaymentRequest{
		Reference:   "IGA_1700000000123_3f2b9c1a",
		Amount:      decimal.RequireFromString("15000"),
		Currency:    "RWF",
		RedirectURL: "https://api.example.com/api/public/payments/callback",
		Title:       "Intro to Go",
		Customer:    ports.Customer{Email: "ada@example.com", Name: "Ada Lovelace"},
		Meta:        map[string]string{"course_id": "c-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/abc", result.Link)
	assert.Equal(t, "IGA_1700000000123_3f2b9c1a", got["tx_ref"])
	assert.Equal(t, "RWF", got["currency"])
	assert.Equal(t, PaymentOptions, got["payment_options"])
	assert.Equal(t, "ada@example.com", got["customer"].(map[string]interface{})["email"])
	assert.Equal(t, "Intro to Go", got["customizations"].(map[string]interface{})["title"])
}

func TestCreatePayment_MissingLinkIsGatewayError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, map[string]string{})
	})

	_, err := client.CreatePayment(t.Context(), &ports.CreatePaymentRequest{Reference: "r", Amount: decimal.NewFromInt(1)})
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
}

func TestVerifyTransaction_ParsesGatewayRecord(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transactions/4975363/verify", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","message":"Transaction fetched successfully","data":{
			"id":4975363,"tx_ref":"IGA_1_abc","status":"successful","amount":15000.00,
			"currency":"RWF","payment_type":"mobilemoneyrw"}}`))
	})

	result, err := client.VerifyTransaction(t.Context(), "4975363")

	require.NoError(t, err)
	assert.Equal(t, "4975363", result.TransactionID)
	assert.Equal(t, "IGA_1_abc", result.Reference)
	assert.Equal(t, "successful", result.Status)
	assert.True(t, decimal.NewFromInt(15000).Equal(result.Amount))
	assert.Equal(t, "mobilemoneyrw", result.PaymentType)
}

func TestVerifyTransaction_EmptyIDIsValidationError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})

	_, err := client.VerifyTransaction(t.Context(), "  ")
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidation))
}

func TestVerifyTransaction_RetriesServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeEnvelope(t, w, map[string]interface{}{"id": 1, "status": "successful", "amount": 10})
	})

	result, err := client.VerifyTransaction(t.Context(), "1")

	require.NoError(t, err)
	assert.Equal(t, "successful", result.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestVerifyTransaction_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
	})

	_, err := client.VerifyTransaction(t.Context(), "404")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, resilience.StateClosed, client.breaker.State())
}

func TestVerifyTransaction_TimeoutIsOutcomeUnknown(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client.config.MaxRetries = 0

	_, err := client.VerifyTransaction(t.Context(), "1")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayTimeout))
	assert.True(t, domain.IsOutcomeUnknown(err))
}

func TestVerifyTransaction_ErrorEnvelopeIsNotRetried(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":"error","message":"invalid"}`))
	})

	_, err := client.VerifyTransaction(t.Context(), "1")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRefund_SingleAttempt(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Refund(t.Context(), &ports.RefundRequest{TransactionID: "9", Amount: decimal.NewFromInt(10), Reason: "duplicate"})

	assert.True(t, domain.IsGatewayError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRefund_ReturnsGatewayStatus(t *testing.T) {
	var body map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/9/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeEnvelope(t, w, map[string]interface{}{"id": 75923, "status": "completed"})
	})

	result, err := client.Refund(t.Context(), &ports.RefundRequest{TransactionID: "9", Amount: decimal.NewFromInt(15000), Reason: "course cancelled"})

	require.NoError(t, err)
	assert.Equal(t, "75923", result.RefundID)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "course cancelled", body["comments"])
}

func TestRefund_GatewayRejectionIsRefundFailed(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok status with error envelope", http.StatusOK},
		{"client error with error envelope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":"error","message":"Refund not allowed for this transaction"}`))
			})

			_, err := client.Refund(t.Context(), &ports.RefundRequest{TransactionID: "9", Amount: decimal.NewFromInt(10), Reason: "duplicate"})

			require.Error(t, err)
			assert.Equal(t, domain.ErrorCodeRefundFailed, domain.GetErrorCode(err))
			assert.ErrorIs(t, err, domain.ErrRefundFailed)
			assert.False(t, domain.IsOutcomeUnknown(err))
			assert.Contains(t, err.Error(), "Refund not allowed")
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Equal(t, resilience.StateClosed, client.breaker.State())
		})
	}
}

func TestRefund_MalformedClientErrorStaysGatewayError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<html>bad request</html>`))
	})

	_, err := client.Refund(t.Context(), &ports.RefundRequest{TransactionID: "9", Amount: decimal.NewFromInt(10), Reason: "duplicate"})

	assert.Equal(t, domain.ErrorCodeGatewayError, domain.GetErrorCode(err))
}

func TestClient_CircuitOpensOnRepeatedServerErrors(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client.config.MaxRetries = 0

	for i := 0; i < int(client.config.CircuitBreaker.MaxFailures); i++ {
		_, _ = client.VerifyTransaction(t.Context(), "1")
	}
	require.Equal(t, resilience.StateOpen, client.breaker.State())

	before := atomic.LoadInt32(&calls)
	_, err := client.VerifyTransaction(t.Context(), "1")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeGatewayError))
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}
