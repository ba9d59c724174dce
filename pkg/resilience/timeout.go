package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy, outermost first:
//
//	HTTP handler (30s)
//	  payment operation (25s)
//	    single gateway attempt (10s)
//	    reference lock wait (5s)
//
// Each layer must finish before its parent gives up.
type TimeoutConfig struct {
	HTTPHandler    time.Duration
	Operation      time.Duration
	GatewayAttempt time.Duration
	LockWait       time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:    30 * time.Second,
		Operation:      25 * time.Second,
		GatewayAttempt: 10 * time.Second,
		LockWait:       5 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:    3 * time.Second,
		Operation:      2 * time.Second,
		GatewayAttempt: 500 * time.Millisecond,
		LockWait:       500 * time.Millisecond,
	}
}

// HandlerContext bounds a whole HTTP request
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// OperationContext bounds one orchestrator operation
func (tc *TimeoutConfig) OperationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Operation)
}

// GatewayAttemptContext bounds a single gateway round-trip
func (tc *TimeoutConfig) GatewayAttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.GatewayAttempt)
}

// LockContext bounds the wait for a reference lock
func (tc *TimeoutConfig) LockContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.LockWait)
}
