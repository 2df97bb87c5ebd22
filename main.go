package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	appsaga "github.com/minicommerce/fulfillment/internal/application/saga"
	"github.com/minicommerce/fulfillment/internal/domain/inventory"
	"github.com/minicommerce/fulfillment/internal/domain/notification"
	"github.com/minicommerce/fulfillment/internal/domain/order"
	domsaga "github.com/minicommerce/fulfillment/internal/domain/saga"
	"github.com/minicommerce/fulfillment/internal/infrastructure/blob"
	"github.com/minicommerce/fulfillment/internal/infrastructure/config"
	"github.com/minicommerce/fulfillment/internal/infrastructure/id"
	kafkainfra "github.com/minicommerce/fulfillment/internal/infrastructure/kafka"
	"github.com/minicommerce/fulfillment/internal/infrastructure/memory"
	infraobs "github.com/minicommerce/fulfillment/internal/infrastructure/observability"
	"github.com/minicommerce/fulfillment/internal/infrastructure/observability/oteltrace"
	"github.com/minicommerce/fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/minicommerce/fulfillment/internal/infrastructure/observability/zaplogger"
	"github.com/minicommerce/fulfillment/internal/infrastructure/postgres"
	"github.com/minicommerce/fulfillment/internal/observability"
	httppresentation "github.com/minicommerce/fulfillment/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	defer func() {
		if s, ok := baseLogger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}()

	reg := prometrics.New("", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MSagaRuns: reg.Counter(
			string(observability.MSagaRuns),
			"Total number of fulfillment saga runs by outcome.",
			"outcome",
		),
		observability.MSagaStepAttempts: reg.Counter(
			string(observability.MSagaStepAttempts),
			"Total number of saga step attempts by step and outcome.",
			"step", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MExternalRequests: reg.Counter(
			string(observability.MExternalRequests),
			"Total number of calls to external systems by target and outcome.",
			"target", "outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MSagaDuration: reg.Histogram(
			string(observability.MSagaDuration),
			"Duration of a full saga run in seconds.",
			prometheus.DefBuckets,
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route",
		),
	}

	tel := infraobs.New(
		oteltrace.New(cfg.ServiceName),
		baseLogger,
		counters,
		histograms,
	)

	systemLogger := baseLogger.With(observability.F("component", "main"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator, cleanup, err := buildCoordinator(ctx, cfg, tel)
	if err != nil {
		systemLogger.Error("startup_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	// Re-drive sagas left non-terminal by a previous crash before accepting
	// new traffic.
	if err := coordinator.Resume(ctx); err != nil {
		systemLogger.Error("resume_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	handler := httppresentation.NewHandler(coordinator, baseLogger, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store_driver", cfg.StoreDriver),
			observability.F("dispatcher_driver", cfg.DispatcherDriver),
			observability.F("archiver_driver", cfg.ArchiverDriver),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				observability.F("error", err.Error()),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			observability.F("error", err.Error()),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

func buildCoordinator(ctx context.Context, cfg *config.Config, tel observability.Observability) (*appsaga.Coordinator, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		ledger inventory.Ledger
		orders order.Store
		sagas  domsaga.Store
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		cleanups = append(cleanups, pool.Close)
		if err := postgres.Apply(ctx, pool); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		pgLedger := postgres.NewLedger(pool)
		for _, productID := range cfg.SeedProducts {
			if err := pgLedger.EnsureStock(ctx, productID, cfg.InitialStock); err != nil {
				cleanup()
				return nil, func() {}, err
			}
		}
		ledger = pgLedger
		orders = postgres.NewOrderStore(pool)
		sagas = postgres.NewSagaStore(pool)
	default:
		memLedger := memory.NewLedger()
		for _, productID := range cfg.SeedProducts {
			memLedger.SetStock(productID, cfg.InitialStock)
		}
		ledger = memLedger
		orders = memory.NewOrderStore()
		sagas = memory.NewSagaStore()
	}

	var notifier notification.Dispatcher
	switch cfg.DispatcherDriver {
	case config.DispatcherKafka:
		d := kafkainfra.NewDispatcher(cfg.KafkaBroker, cfg.NotifyTopic, tel.Logger(), tel.Metrics())
		cleanups = append(cleanups, func() { _ = d.Close() })
		notifier = d
	default:
		notifier = memory.NewDispatcher(tel.Logger())
	}

	var archiver appsaga.Archiver
	switch cfg.ArchiverDriver {
	case config.ArchiverFS:
		fs, err := blob.NewFSArchiver(cfg.ReceiptsDir)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		archiver = fs
	default:
		archiver = memory.NewArchiver()
	}

	coordinator := appsaga.New(
		ledger,
		orders,
		sagas,
		notifier,
		archiver,
		id.NewUUIDGenerator(),
		appsaga.Config{
			UnitPrice:            cfg.UnitPrice,
			DefaultPaymentMethod: cfg.DefaultPaymentMethod,
			StepTimeout:          cfg.StepTimeout,
			MaxAttempts:          cfg.RetryMaxAttempts,
			SoftMaxAttempts:      cfg.SoftRetryMaxAttempts,
			RetryInitialInterval: cfg.RetryInitialInterval,
			RetryMaxInterval:     cfg.RetryMaxInterval,
		},
		tel,
	)
	return coordinator, cleanup, nil
}
