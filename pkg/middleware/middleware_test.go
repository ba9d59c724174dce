package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRateLimiter_ForPrefix(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Shutdown()
	handler := rl.ForPrefix("/api/public/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	call := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("/api/public/payments/webhook", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, call("/api/public/payments/webhook", "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("/api/public/payments/webhook", "198.51.100.1"))

	// other clients and unprotected paths are unaffected
	assert.Equal(t, http.StatusOK, call("/api/public/payments/webhook", "198.51.100.2"))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, call("/api/v1/payments/1", "198.51.100.1"))
	}
}

func TestRateLimiter_CleanupEvictsIdle(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	defer rl.Shutdown()
	rl.Allow("203.0.113.1")

	rl.cleanup(time.Now().Add(rl.cleanupInterval + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.limiters)
}

func TestGzip(t *testing.T) {
	body := `{"payments":[]}`
	handler := Gzip("/metrics")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status/PENDING", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())
}

func TestRecoveryAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	handler := Logging(logger)(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/1", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered in HTTP handler").Len())
	requests := logs.FilterMessage("HTTP request").All()
	require.Len(t, requests, 1)
	assert.Equal(t, zapcore.ErrorLevel, requests[0].Level)
	assert.Equal(t, int64(http.StatusInternalServerError), requests[0].ContextMap()["status"])
}
