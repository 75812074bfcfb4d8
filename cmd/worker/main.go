package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-trade/meridian/internal/app"
	"github.com/meridian-trade/meridian/internal/approvals"
	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/platform/cache"
	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/workflow"
	"github.com/meridian-trade/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := cache.New(cfg.RedisAddr)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	rateStore := fx.NewRepository(pool)
	rateSource := fx.NewHTTPSource(cfg.RateSourceURL, cfg.RateHTTPTimeout)
	converter := fx.NewConverter(rateStore, rateSource, redisClient, logger)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	machine := workflow.NewMachine(workflow.DefaultConfig(), workflow.NewPgRepository(pool), metrics)
	ledger := approvals.NewLedger(approvals.NewPgRepository(pool))
	resolver := vars.NewResolver(converter, logger)
	quotesService := quotes.NewService(quotes.NewPgRepository(pool), resolver, machine, ledger, metrics, auditLogger, logger)

	rateRefresher := jobs.NewRateRefresher(rateSource, rateStore, logger)
	recalculator := jobs.NewRecalculator(quotesService, logger)

	refreshSpec, err := cronSpec(cfg.RateRefreshTime)
	if err != nil {
		logger.Error("parse rate refresh time", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRateRefresh, Handler: rateRefresher.Handle},
			{Type: jobs.TaskTypeQuoteRecalc, Handler: recalculator.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: refreshSpec, Task: jobs.NewRateRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// cronSpec converts a daily HH:MM wall-clock setting into a cron expression.
func cronSpec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", fmt.Errorf("worker: refresh time %q: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
