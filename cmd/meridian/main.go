package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-trade/meridian/cmd/meridian/cli"
	"github.com/meridian-trade/meridian/internal/app"
	"github.com/meridian-trade/meridian/internal/approvals"
	"github.com/meridian-trade/meridian/internal/fx"
	"github.com/meridian-trade/meridian/internal/masterdata"
	"github.com/meridian-trade/meridian/internal/observability"
	"github.com/meridian-trade/meridian/internal/platform/cache"
	"github.com/meridian-trade/meridian/internal/platform/db"
	"github.com/meridian-trade/meridian/internal/quotes"
	"github.com/meridian-trade/meridian/internal/quotes/vars"
	"github.com/meridian-trade/meridian/internal/rbac"
	"github.com/meridian-trade/meridian/internal/reconcile"
	"github.com/meridian-trade/meridian/internal/shared"
	"github.com/meridian-trade/meridian/internal/specs"
	"github.com/meridian-trade/meridian/internal/workflow"
	"github.com/meridian-trade/meridian/jobs"
)

func main() {
	if len(os.Args) > 1 {
		os.Exit(runCommand(os.Args[1], os.Args[2:]))
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := cache.New(cfg.RedisAddr)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	rateStore := fx.NewRepository(pool)
	rateSource := fx.NewHTTPSource(cfg.RateSourceURL, cfg.RateHTTPTimeout)
	converter := fx.NewConverter(rateStore, rateSource, redisClient, logger)

	machine := workflow.NewMachine(workflow.DefaultConfig(), workflow.NewPgRepository(pool), metrics)
	ledger := approvals.NewLedger(approvals.NewPgRepository(pool))
	resolver := vars.NewResolver(converter, logger)

	quotesService := quotes.NewService(quotes.NewPgRepository(pool), resolver, machine, ledger, metrics, auditLogger, logger)
	quotesHandler := quotes.NewHandler(logger, quotesService, rbacMiddleware)

	specsService := specs.NewService(specs.NewPgRepository(pool), quotesService, auditLogger, logger)
	specsHandler := specs.NewHandler(logger, specsService, rbacMiddleware)

	masterdataService := masterdata.NewService(masterdata.NewRepository(pool))
	masterdataHandler := masterdata.NewHandler(logger, masterdataService, rbacMiddleware)

	reconcileHandler := reconcile.NewHandler(logger, quotesService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		QuotesHandler:     quotesHandler,
		SpecsHandler:      specsHandler,
		MasterDataHandler: masterdataHandler,
		ReconcileHandler:  reconcileHandler,
		JobsHandler:       jobsHandler,
		Pool:              pool,
		RBACMiddleware:    rbacMiddleware,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand dispatches the operational subcommands; everything else starts
// the HTTP server.
func runCommand(name string, args []string) int {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 1
	}

	switch name {
	case "fx-backfill":
		return runFXBackfill(ctx, cfg, args)
	case "fx-validate":
		return runFXValidate(ctx, cfg, args)
	case "jobs":
		return runJobs(ctx, cfg, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (available: fx-backfill, fx-validate, jobs)\n", name)
		return 2
	}
}

func fxCLI(ctx context.Context, cfg *app.Config) (*cli.FXOpsCLI, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	ops, err := cli.NewFXOpsCLI(fx.NewRepository(pool))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return ops, pool.Close, nil
}

func runFXBackfill(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("fx-backfill", flag.ContinueOnError)
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	mode := fs.String("mode", "dry", "dry or apply")
	source := fs.String("source", "", "CSV file with date,currency,rate rows")
	jsonOut := fs.Bool("json", false, "emit JSON summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ops, closePool, err := fxCLI(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closePool()

	return ops.BackfillCommand(ctx, cli.FXBackfillOptions{
		From:       *from,
		To:         *to,
		Mode:       cli.FXBackfillMode(*mode),
		Source:     *source,
		JSONOutput: *jsonOut,
	})
}

func runFXValidate(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("fx-validate", flag.ContinueOnError)
	from := fs.String("from", "", "start date (YYYY-MM-DD)")
	to := fs.String("to", "", "end date (YYYY-MM-DD)")
	jsonOut := fs.Bool("json", false, "emit JSON summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ops, closePool, err := fxCLI(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closePool()

	return ops.ValidateCommand(ctx, cli.FXValidateOptions{
		From:       *from,
		To:         *to,
		JSONOutput: *jsonOut,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: meridian jobs trigger <name> [arg] | meridian jobs inspect")
		return 2
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: meridian jobs trigger <name> [arg]")
			return 2
		}
		arg := ""
		if len(args) > 2 {
			arg = args[2]
		}
		info, err := jobsCLI.Trigger(ctx, args[1], arg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return 0
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d retry=%d\n", stats.Queue, stats.Pending, stats.Active, stats.Retry)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown jobs subcommand %q\n", args[0])
		return 2
	}
}
