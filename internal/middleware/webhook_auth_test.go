package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWebhookAuth_Wrap(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"matching hash", "whsec-123", "whsec-123", http.StatusOK},
		{"wrong hash", "whsec-123", "whsec-124", http.StatusUnauthorized},
		{"missing header", "whsec-123", "", http.StatusUnauthorized},
		{"unconfigured hash", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewWebhookAuth(tt.configured, zap.NewNop())
			handler := a.Wrap(func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/public/payments/webhook", nil)
			if tt.header != "" {
				req.Header.Set(WebhookHashHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequestInfo(t *testing.T) {
	var requestID, clientIP string
	handler := RequestInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = auth.RequestID(r.Context())
		clientIP = auth.ClientIP(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "203.0.113.7", clientIP)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments/1", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	req.RemoteAddr = "192.0.2.1:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-42", requestID)
	assert.Equal(t, "192.0.2.1", clientIP)
}
