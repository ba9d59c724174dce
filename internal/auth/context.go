package auth

import (
	"context"

	"github.com/kevin07696/course-payments/internal/domain"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	requestIDKey contextKey = "request_id"
	clientIPKey  contextKey = "client_ip"
)

// WithIdentity stores the authenticated caller on ctx
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom returns the caller stored by WithIdentity
func IdentityFrom(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// RequireIdentity is IdentityFrom that fails with UNAUTHENTICATED
func RequireIdentity(ctx context.Context) (*domain.Identity, error) {
	identity, ok := IdentityFrom(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

// WithRequestInfo stores per-request metadata used in logs
func WithRequestInfo(ctx context.Context, requestID, clientIP string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// RequestID returns the request id or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ClientIP returns the caller address or ""
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
