// Command admin runs operator tasks against the payment orchestrator:
// manual reconciliation, refunds, status corrections and reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kevin07696/course-payments/internal/bootstrap"
	"github.com/kevin07696/course-payments/internal/config"
	"github.com/kevin07696/course-payments/internal/domain/ports"
)

func main() {
	if err := newRootCommand(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

// connect assembles the orchestrator from the environment
func connect(ctx context.Context) (ports.PaymentService, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := bootstrap.NewLogger(cfg.Logger.Level, cfg.Server.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	return app.Service, func() {
		_ = app.Close()
		_ = logger.Sync()
	}, nil
}
