package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/standing-orders/internal/adapter/audit/immudb"
	grpcadapter "github.com/simaogato/standing-orders/internal/adapter/grpc"
	"github.com/simaogato/standing-orders/internal/adapter/httpops"
	"github.com/simaogato/standing-orders/internal/adapter/repository/sqlstore"
	"github.com/simaogato/standing-orders/internal/config"
	"github.com/simaogato/standing-orders/internal/metrics"
	"github.com/simaogato/standing-orders/internal/usecase/executor"
	"github.com/simaogato/standing-orders/internal/usecase/notifier"
	"github.com/simaogato/standing-orders/internal/usecase/scheduler"
	"github.com/simaogato/standing-orders/internal/usecase/seeder"
	"github.com/simaogato/standing-orders/pkg/logging"
)

const (
	defaultAPIToken = "dev-token"
	connectAttempts = 10
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	// 1. Setup Database
	db, err := connect(sqlstore.Dialect(cfg.DBDriver), cfg.DSN(), logger)
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(logger); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Repositories
	accountRepo := sqlstore.NewAccountRepository(db)
	orderRepo := sqlstore.NewOrderRepository(db)
	ledgerRepo := sqlstore.NewLedgerRepository(db)
	notificationRepo := sqlstore.NewNotificationRepository(db)

	// Initialize System Seeder and run it
	ctx := context.Background()
	if err := seeder.NewSystemSeeder(accountRepo).Seed(ctx); err != nil {
		logger.Error("failed to seed system accounts", "error", err)
		os.Exit(1)
	}
	logger.Info("system accounts seeded")

	// 3. Initialize Services (Use Cases)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	transferExecutor := executor.NewTransferExecutor(db, seeder.SYS_EXTERNAL_CLEARING, cfg.MirrorCredits, logger)
	if cfg.ImmudbAddress != "" {
		mirror, err := immudb.NewMirror(ctx, immudb.Options{
			Address:  cfg.ImmudbAddress,
			Port:     cfg.ImmudbPort,
			Username: cfg.ImmudbUser,
			Password: cfg.ImmudbPassword,
			Database: cfg.ImmudbDatabase,
		})
		if err != nil {
			logger.Error("failed to open audit mirror", "address", cfg.ImmudbAddress, "error", err)
			os.Exit(1)
		}
		defer mirror.Close(context.Background())
		transferExecutor.Audit = mirror
		logger.Info("audit mirror enabled", "address", cfg.ImmudbAddress, "database", cfg.ImmudbDatabase)
	}

	directory := notifier.NewAccountDirectory(accountRepo, notifier.DefaultDirectoryExpiration)
	notificationService := notifier.NewNotificationService(notificationRepo, directory, logger)
	notificationService.Metrics = collector

	scheduleService := scheduler.NewScheduleService(orderRepo, accountRepo, transferExecutor, notificationService, logger)
	scheduleService.Metrics = collector
	scheduleService.Workers = cfg.RunWorkers
	scheduleService.Location = loc

	trigger := scheduler.NewTrigger(scheduleService, loc, logger)
	trigger.Timeout = cfg.RunTimeout
	if err := trigger.Schedule(cfg.ScheduleCron, cfg.ReminderCron); err != nil {
		logger.Error("failed to schedule periodic run", "error", err)
		os.Exit(1)
	}
	trigger.Start()

	// 4. Start gRPC Server
	apiToken := cfg.APIToken
	if apiToken == "" {
		logger.Warn("API_TOKEN not set, using development token")
		apiToken = defaultAPIToken
	}

	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(apiToken),
			grpcadapter.RateLimitInterceptor(
				grpcadapter.PerMinute(cfg.TriggerRatePerMin),
				grpcadapter.FullMethod(grpcadapter.MethodExecuteDueNow),
			),
		),
	)

	grpcAdapter := grpcadapter.NewServer(scheduleService, notificationService, ledgerRepo)
	grpcadapter.RegisterStandingOrderServiceServer(grpcServer, grpcAdapter)

	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server stopped with error", "error", err)
		}
	}()

	// 5. Start ops HTTP server
	opsServer := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           httpops.NewRouter(db, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("ops server listening", "addr", cfg.OpsAddr)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server stopped with error", "error", err)
		}
	}()

	// Graceful shutdown
	waitForShutdown(logger, grpcServer, opsServer, trigger)
}

// connect opens the store, retrying while a freshly started database comes up
func connect(dialect sqlstore.Dialect, dsn string, logger *slog.Logger) (*sqlstore.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := sqlstore.NewDB(dialect, dsn)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				return db, nil
			}
			db.Close()
		}

		lastErr = err
		logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	return nil, lastErr
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers.
// Runs in flight are allowed to finish; their claims keep a restarted process from repeating them.
func waitForShutdown(logger *slog.Logger, grpcServer *grpclib.Server, opsServer *http.Server, trigger *scheduler.Trigger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutting down gracefully", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-trigger.Stop().Done():
		logger.Info("scheduler stopped")
	case <-ctx.Done():
		logger.Warn("scheduler did not stop in time")
	}

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	if err := opsServer.Shutdown(ctx); err != nil {
		logger.Error("ops server shutdown failed", "error", err)
	}
}
