package security

import (
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var logger ports.Logger = NewZapLogger(zap.New(core))

	logger.Error("amount mismatch",
		ports.String("alert", "amount_mismatch"),
		ports.Int("attempt", 2),
		ports.Bool("retryable", false),
		ports.Duration("elapsed", time.Second),
		ports.Err(errors.New("boom")),
		ports.Any("amount", 12.5))
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "amount_mismatch", ctx["alert"])
	assert.Equal(t, int64(2), ctx["attempt"])
	assert.Equal(t, false, ctx["retryable"])
	assert.Equal(t, time.Second, ctx["elapsed"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, 12.5, ctx["amount"])
}
