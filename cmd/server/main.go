package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kevin07696/course-payments/internal/auth"
	"github.com/kevin07696/course-payments/internal/bootstrap"
	"github.com/kevin07696/course-payments/internal/config"
	paymentHandler "github.com/kevin07696/course-payments/internal/handlers/payment"
	"github.com/kevin07696/course-payments/internal/middleware"
	pkgmiddleware "github.com/kevin07696/course-payments/pkg/middleware"
	"github.com/kevin07696/course-payments/pkg/observability"
	"github.com/kevin07696/course-payments/pkg/shutdown"
)

const healthPrefix = "/grpc.health.v1.Health/"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg.Logger.Level, cfg.Server.IsDevelopment())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting course payment service",
		zap.String("environment", cfg.Server.Environment),
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
	)

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	shutdownMgr := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	// Registered first so stores close after every server has drained
	shutdownMgr.Register("resources", func(context.Context) error {
		cancelBackground()
		return app.Close()
	})

	app.Database.StartPoolMonitoring(ctx, 30*time.Second)

	jwt, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to initialize token verifier", zap.Error(err))
	}

	fatal := make(chan error, 3)

	healthChecker := observability.NewHealthChecker(2 * time.Second)
	for name, check := range app.HealthChecks() {
		healthChecker.Register(name, check)
	}
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownMgr.RegisterHTTPServer("metrics-server", metricsServer)

	grpcServer, healthServer := newGRPCServer(jwt, logger)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		logger.Fatal("Failed to listen for gRPC", zap.Error(err))
	}
	go func() {
		logger.Info("gRPC server listening", zap.String("address", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			fatal <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	shutdownMgr.Register("grpc-server", func(ctx context.Context) error {
		healthServer.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			grpcServer.Stop()
			return ctx.Err()
		}
	})

	rateLimiter := pkgmiddleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	shutdownMgr.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	inFlight := shutdown.NewInFlightTracker("http", logger)
	httpHandler, err := newHTTPHandler(cfg, app, jwt, rateLimiter, inFlight, logger)
	if err != nil {
		logger.Fatal("Failed to register HTTP routes", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      app.Timeouts.HTTPHandler + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal <- fmt.Errorf("http server: %w", err)
		}
	}()
	// The tracker drains after the listener closes, then the server returns
	shutdownMgr.Register("http-in-flight", inFlight.Shutdown)
	shutdownMgr.RegisterHTTPServer("http-server", httpServer)

	shutdownMgr.WaitForShutdown(fatal)
	logger.Info("Course payment service stopped")
}

func newGRPCServer(jwt *auth.JWTManager, logger *zap.Logger) (*grpc.Server, *health.Server) {
	authInterceptor := middleware.NewGRPCAuthInterceptor(jwt, logger, healthPrefix)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			observability.UnaryServerInterceptor(),
			loggingInterceptor(logger),
			authInterceptor.UnaryServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}

// newHTTPHandler mounts the payment routes and wraps them outermost first:
// request info, recovery, logging, in-flight tracking, security headers,
// compression, public rate limiting, metrics
func newHTTPHandler(
	cfg *config.Config,
	app *bootstrap.App,
	jwt *auth.JWTManager,
	rateLimiter *pkgmiddleware.RateLimiter,
	inFlight *shutdown.InFlightTracker,
	logger *zap.Logger,
) (http.Handler, error) {
	mux := runtime.NewServeMux()

	handler := paymentHandler.NewHandler(
		app.Service,
		jwt,
		middleware.NewWebhookAuth(cfg.Gateway.WebhookHash, logger),
		paymentHandler.Config{
			FrontendURL: cfg.Server.FrontendURL,
			Timeouts:    app.Timeouts,
		},
		logger.Named("http"),
	)
	if err := handler.Register(mux); err != nil {
		return nil, err
	}

	var h http.Handler = observability.InstrumentHandler("payments", mux)
	h = rateLimiter.ForPrefix("/api/public/", h)
	h = pkgmiddleware.Gzip(paymentHandler.PublicPrefix)(h)
	h = middleware.NewSecurityHeaders(cfg.Server.IsDevelopment()).Middleware(h)
	h = inFlight.Middleware(h)
	h = pkgmiddleware.Logging(logger)(h)
	h = pkgmiddleware.Recovery(logger)(h)
	h = middleware.RequestInfo(h)
	return h, nil
}
