// Package bootstrap assembles the payment orchestrator and its adapters
// from configuration. Both the server and the admin CLI start here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/course-payments/internal/adapters/database"
	"github.com/kevin07696/course-payments/internal/adapters/flutterwave"
	"github.com/kevin07696/course-payments/internal/adapters/kafka"
	"github.com/kevin07696/course-payments/internal/adapters/locking"
	"github.com/kevin07696/course-payments/internal/adapters/postgres"
	"github.com/kevin07696/course-payments/internal/adapters/secrets"
	"github.com/kevin07696/course-payments/internal/config"
	"github.com/kevin07696/course-payments/internal/domain/ports"
	"github.com/kevin07696/course-payments/internal/services/payment"
	"github.com/kevin07696/course-payments/pkg/resilience"
	"github.com/kevin07696/course-payments/pkg/security"
)

// App holds the assembled orchestrator and everything that must be closed
// when the process exits
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Database *database.PostgreSQLAdapter
	Service  *payment.Service
	Timeouts *resilience.TimeoutConfig

	redis   *redis.Client
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// NewLogger builds a JSON production logger, or a console development
// logger when development is set
func NewLogger(level string, development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// TimeoutsFor derives the timeout hierarchy from configuration
func TimeoutsFor(cfg *config.Config) *resilience.TimeoutConfig {
	timeouts := resilience.DefaultTimeoutConfig()
	if cfg.Gateway.Timeout > 0 {
		timeouts.GatewayAttempt = cfg.Gateway.Timeout
	}
	return timeouts
}

// New resolves secrets, connects to the stores and builds the orchestrator.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Timeouts: TimeoutsFor(cfg)}
	if err := app.assemble(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	logger.Info("Payment service assembled",
		zap.Bool("redis_locks", cfg.Redis.Enabled),
		zap.Bool("kafka_events", cfg.Kafka.Enabled),
		zap.String("secret_manager", cfg.Secrets.Manager),
	)
	return app, nil
}

func (a *App) assemble(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	store, err := secrets.NewStore(ctx, cfg.Secrets, logger)
	if err != nil {
		return fmt.Errorf("init secret manager: %w", err)
	}
	if err := secrets.ResolveGatewaySecrets(ctx, store, &cfg.Gateway, logger); err != nil {
		return err
	}

	dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	a.Database, err = database.NewPostgreSQLAdapter(ctx, dbCfg, logger)
	if err != nil {
		return err
	}
	a.onClose("database", func() error {
		a.Database.Close()
		return nil
	})

	locker, err := a.newLocker(ctx)
	if err != nil {
		return err
	}

	events, err := a.newPublisher()
	if err != nil {
		return err
	}

	gwCfg := flutterwave.DefaultConfig(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey)
	gwCfg.Timeouts = a.Timeouts
	gwCfg.MaxRetries = cfg.Gateway.MaxRetries

	db := postgres.NewDBExecutor(a.Database.Pool())
	catalog := postgres.NewCatalog(db)

	a.Service = payment.NewService(payment.Dependencies{
		DB:          db,
		Payments:    postgres.NewPaymentRepository(db),
		Enrollments: postgres.NewEnrollmentRepository(db),
		Gateway:     flutterwave.NewClient(gwCfg, nil, logger.Named("gateway")),
		Courses:     catalog,
		Learners:    catalog,
		Locker:      locker,
		Events:      events,
		Logger:      security.NewZapLogger(logger.Named("payments")),
	}, payment.Config{
		Timeouts:        a.Timeouts,
		ReferencePrefix: cfg.Gateway.ReferencePrefix,
		DefaultCurrency: cfg.Gateway.DefaultCurrency,
		PublicBaseURL:   cfg.Server.PublicBaseURL,
	})

	return nil
}

func (a *App) newLocker(ctx context.Context) (ports.ReferenceLocker, error) {
	if !a.Config.Redis.Enabled {
		a.Logger.Warn("Redis disabled, payment locks only serialize within this process")
		return locking.NewKeyedMutex(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	a.onClose("redis", a.redis.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	lockCfg := locking.DefaultRedisLockerConfig()
	if a.Config.Redis.LockTTL > 0 {
		lockCfg.TTL = a.Config.Redis.LockTTL
	}
	return locking.NewRedisLocker(a.redis, lockCfg, a.Logger.Named("locks")), nil
}

func (a *App) newPublisher() (ports.EventPublisher, error) {
	if !a.Config.Kafka.Enabled {
		return kafka.NewNoopPublisher(a.Logger), nil
	}

	producer, err := kafka.NewSyncProducer(kafka.ProducerConfig{
		ClientID: a.Config.Kafka.ClientID,
		Brokers:  a.Config.Kafka.Brokers,
		Timeout:  5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	publisher := kafka.NewPublisher(producer, a.Config.Kafka.Topic, a.Logger.Named("events"))
	a.onClose("kafka", publisher.Close)
	return publisher, nil
}

// HealthChecks returns the dependency checks for the readiness endpoint
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"database": a.Database.HealthCheck,
	}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Close releases every opened resource in reverse order
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
