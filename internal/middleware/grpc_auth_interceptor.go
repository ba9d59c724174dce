package middleware

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

// GRPCAuthInterceptor authenticates gRPC calls with the same bearer tokens
// as the HTTP API
type GRPCAuthInterceptor struct {
	resolver       ports.IdentityResolver
	logger         *zap.Logger
	publicPrefixes []string
}

// NewGRPCAuthInterceptor creates an interceptor. Methods whose full name
// starts with one of publicPrefixes skip authentication.
func NewGRPCAuthInterceptor(resolver ports.IdentityResolver, logger *zap.Logger, publicPrefixes ...string) *GRPCAuthInterceptor {
	return &GRPCAuthInterceptor{
		resolver:       resolver,
		logger:         logger,
		publicPrefixes: publicPrefixes,
	}
}

// UnaryServerInterceptor returns a gRPC unary server interceptor for auth
func (i *GRPCAuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if i.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		if !strings.HasPrefix(authHeaders[0], "Bearer ") {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization format: expected 'Bearer <token>'")
		}

		identity, err := i.resolver.Resolve(ctx, authHeaders[0])
		if err != nil {
			i.logger.Warn("token verification failed",
				zap.Error(err),
				zap.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		i.logger.Debug("token authenticated",
			zap.String("subject", identity.ID),
			zap.String("role", string(identity.Role)),
			zap.String("method", info.FullMethod))

		return handler(auth.WithIdentity(ctx, identity), req)
	}
}

func (i *GRPCAuthInterceptor) isPublic(method string) bool {
	for _, prefix := range i.publicPrefixes {
		if strings.HasPrefix(method, prefix) {
			return true
		}
	}
	return false
}
