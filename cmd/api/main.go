package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/pos"
	"github.com/georgemunganga/printa-pos/internal/modules/report"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/shift"
	"github.com/georgemunganga/printa-pos/internal/platform/config"
	"github.com/georgemunganga/printa-pos/internal/platform/database"
	"github.com/georgemunganga/printa-pos/internal/platform/events"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.MigrationsPath); err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}
	logger.Info("database connected and migrated")

	// Redis backs the catalog cache and the shift lock. Without it both degrade
	// to direct database access.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without cache and lock")
			rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
	} else {
		logger.Warn("KAFKA_BROKERS not set, domain events are dropped")
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(logging.Middleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	authService := auth.NewService(cfg.JWTSecret)

	// ── Phase 1: Catalog ────────────────────────────────────
	var catalogRepo catalog.Repository = catalog.NewPostgresRepository(db)
	if rdb != nil {
		catalogRepo = catalog.NewCachedRepository(catalogRepo, rdb, cfg.CatalogCacheTTL, logger)
	}
	catalogService := catalog.NewService(catalogRepo, logger)

	// ── Phase 2: Payments ───────────────────────────────────
	paymentGateways := payment.GatewayRegistry{
		payment.MethodCash: payment.NewTillGateway(payment.MethodCash),
		payment.MethodCard: payment.NewTillGateway(payment.MethodCard),
	}
	if cfg.WalletBaseURL != "" {
		paymentGateways[payment.MethodAsyncWallet] = payment.NewWalletGateway(cfg.WalletBaseURL, cfg.WalletAPIKey, nil)
	} else {
		logger.Warn("WALLET_BASE_URL not set, wallet payments are disabled")
	}
	paymentService := payment.NewService(payment.NewPostgresRepository(db), paymentGateways, logger)
	poller := payment.NewPoller(paymentService, cfg.PollInterval, logger)

	// ── Phase 3: Sales & Shifts ─────────────────────────────
	saleService := sale.NewService(sale.NewPostgresRepository(db), paymentService, publisher, catalogService, logger)

	var locker shift.Locker
	if rdb != nil {
		locker = shift.NewRedisLocker(rdb, 10*time.Second, logger)
	}
	shiftService := shift.NewService(shift.NewPostgresRepository(db), saleService, locker, publisher, logger)

	// ── Phase 4: Till ───────────────────────────────────────
	// poll loops outlive requests; they end with the server
	pollCtx, cancelPolls := context.WithCancel(context.Background())
	defer cancelPolls()
	posService := pos.NewService(pollCtx, pos.NewSessions(catalogService), catalogService, paymentService, poller, saleService, logger)

	// ── Phase 5: Reports ────────────────────────────────────
	reportService := report.NewService(shiftService, saleService, catalogService, cfg.StoreTimezone, cfg.LowStockLimit, logger)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(authService))
		catalog.NewHandler(catalogService).RegisterRoutes(r)
		payment.NewHandler(paymentService).RegisterRoutes(r)
		sale.NewHandler(saleService, cfg.StoreTimezone).RegisterRoutes(r)
		shift.NewHandler(shiftService).RegisterRoutes(r)
		pos.NewHandler(posService).RegisterRoutes(r)
		report.NewHandler(reportService).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Port).Info("POS API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	cancelPolls()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
