package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/admin"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/checkout"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/application/reconcile"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/config"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/catalog"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/inventory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/domain/order"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/ledger"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/memory"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/pending"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/postgres"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/telegram"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/webhook"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/infrastructure/yookassa"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/logging"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/metrics"
	"github.com/skvortsovvaleriy207/botForEKOAmulet/internal/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot_stopped_with_error", zap.Error(err))
	}
	logger.Info("bot_stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	cat := catalog.New([]catalog.Product{
		{ID: catalog.ProductAmulet, Name: cfg.ProductName, Price: cfg.ProductPrice, Kind: catalog.KindPhysical, TracksStock: true},
		{ID: catalog.ProductCertKid, Name: cfg.CertKidName, Price: cfg.CertKidPrice, Kind: catalog.KindCertificate},
		{ID: catalog.ProductCertSpecial, Name: cfg.CertSpecialName, Price: cfg.CertSpecialPrice, Kind: catalog.KindCertificate},
	})

	// The store is selected once at startup: postgres when a DSN is
	// configured and reachable, the in-process fallback otherwise.
	var (
		store   order.Store
		backend ledger.Backend
	)
	if cfg.PostgresDSN != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres_unavailable_using_fallback", zap.Error(err))
			store = memory.NewStore()
		} else {
			defer pool.Close()
			pg := postgres.NewStore(pool, catalog.ProductAmulet)
			if err := pg.EnsureSchema(ctx, cfg.ProductName, cfg.ProductPrice, cfg.InitialStock); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			store = pg
			backend = pg
			logger.Info("postgres_store_selected")
		}
	} else {
		store = memory.NewStore()
		logger.Info("memory_store_selected")
	}

	led := ledger.New(backend, cfg.InitialStock, logger)
	m.StockLevel.Set(float64(led.GetStock(ctx)))

	pend := pending.NewStore(cfg.PendingFile, logger)
	if err := pend.Load(); err != nil {
		logger.Warn("pending_recovery_failed", zap.Error(err))
	}

	gateway := yookassa.NewClient(cfg.YookassaShopID, cfg.YookassaSecretKey, cfg.ReturnURL, cfg.ExternalTimeout, logger)

	api, err := telegram.NewAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram auth: %w", err)
	}
	notifier := telegram.NewNotifier(api, cfg.AdminChatID)

	retrier := retry.New(retry.DefaultConfig(), logger, func(context.Context, string, error) {
		m.RetriesExhausted.Inc()
	})
	thresholds := inventory.Thresholds{Low: cfg.LowStockLevel, Critical: cfg.CriticalStock}

	wf := checkout.New(checkout.Params{
		Catalog:    cat,
		Ledger:     led,
		Store:      store,
		Pending:    pend,
		Gateway:    gateway,
		Retrier:    retrier,
		Notifier:   notifier,
		Validator:  checkout.NewValidator(cfg.AddressKeywords),
		Thresholds: thresholds,
		Metrics:    m,
		Logger:     logger,
	})
	rec := reconcile.New(reconcile.Params{
		Catalog:  cat,
		Ledger:   led,
		Store:    store,
		Pending:  pend,
		Gateway:  gateway,
		Retrier:  retrier,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logger,
	})
	adminSvc := admin.New(admin.Params{
		Ledger:     led,
		Store:      store,
		Retrier:    retrier,
		Notifier:   notifier,
		Thresholds: thresholds,
		Metrics:    m,
		Logger:     logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           webhook.NewServer(rec, cfg.WebhookSecret, m, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	router := telegram.NewRouter(api, wf, adminSvc, cfg.AdminChatID, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_server_started", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		errCh <- router.Run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	return runErr
}
