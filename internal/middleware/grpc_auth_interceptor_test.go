package middleware

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var testSecret = strings.Repeat("s3cr3t-", 8)

func setupTestInterceptor(t *testing.T) (*GRPCAuthInterceptor, *auth.JWTManager) {
	t.Helper()
	manager, err := auth.NewJWTManager(testSecret, "course-platform", time.Hour)
	require.NoError(t, err)
	return NewGRPCAuthInterceptor(manager, zap.NewNop(), "/grpc.health.v1.Health/"), manager
}

func capturingHandler(captured **domain.Identity) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		if identity, ok := auth.IdentityFrom(ctx); ok {
			*captured = identity
		}
		return "ok", nil
	}
}

func TestUnaryServerInterceptor_Success(t *testing.T) {
	interceptor, manager := setupTestInterceptor(t)
	token, err := manager.GenerateToken(domain.Identity{
		ID: "learner-1", Email: "ada@example.com", Name: "Ada", Role: domain.RoleStudent,
	})
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	var identity *domain.Identity

	resp, err := interceptor.UnaryServerInterceptor()(ctx, nil,
		&grpc.UnaryServerInfo{FullMethod: "/payments.v1.PaymentService/GetPayment"}, capturingHandler(&identity))

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.NotNil(t, identity)
	assert.Equal(t, "learner-1", identity.ID)
	assert.Equal(t, domain.RoleStudent, identity.Role)
}

func TestUnaryServerInterceptor_Rejections(t *testing.T) {
	interceptor, _ := setupTestInterceptor(t)
	info := &grpc.UnaryServerInfo{FullMethod: "/payments.v1.PaymentService/GetPayment"}

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"no authorization", metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-other", "1"))},
		{"not bearer", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc"))},
		{"garbage token", metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer not.a.jwt"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			_, err := interceptor.UnaryServerInterceptor()(tt.ctx, nil, info,
				func(ctx context.Context, req interface{}) (interface{}, error) {
					called = true
					return nil, nil
				})

			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.False(t, called)
		})
	}
}

func TestUnaryServerInterceptor_PublicMethodsSkipAuth(t *testing.T) {
	interceptor, _ := setupTestInterceptor(t)
	var identity *domain.Identity

	resp, err := interceptor.UnaryServerInterceptor()(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, capturingHandler(&identity))

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Nil(t, identity)
}
