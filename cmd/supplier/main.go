package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/case-supplier/case-supplier/internal/app"
	"github.com/case-supplier/case-supplier/internal/delivery"
	"github.com/case-supplier/case-supplier/internal/engine"
	"github.com/case-supplier/case-supplier/internal/equipment"
	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/market"
	"github.com/case-supplier/case-supplier/internal/orders"
	"github.com/case-supplier/case-supplier/internal/platform/cache"
	"github.com/case-supplier/case-supplier/internal/platform/db"
	"github.com/case-supplier/case-supplier/internal/procure"
	"github.com/case-supplier/case-supplier/internal/production"
	"github.com/case-supplier/case-supplier/internal/simclock"
	"github.com/case-supplier/case-supplier/internal/simulation"
	"github.com/case-supplier/case-supplier/internal/stock"
	"github.com/case-supplier/case-supplier/jobs"
)

// marketAPI is the full market surface the server wires: procurement quotes
// and orders plus the simulation lifecycle calls.
type marketAPI interface {
	procure.Market
	simulation.Market
}

func main() {
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	equipmentRepo := equipment.NewRepository(pool)
	stockSvc := stock.NewService(stock.NewRepository(pool))
	accountStore := finance.NewAccountStore(pool)

	var (
		bank     finance.Bank
		mkt      marketAPI
		shipping procure.Shipping
	)
	if cfg.UseMockClients {
		logger.Info("using in-process mock clients")
		bank = finance.NewMockBank()
		mkt = market.NewMock()
		shipping = logistics.NewMock()
	} else {
		bank = finance.NewHTTPBank(cfg.BankAPIURL, cfg.ClientTimeout, accountStore, logger)
		mkt = market.NewClient(cfg.MarketAPIURL, cfg.ClientTimeout, redisClient, cfg.MarketQuoteTTL, logger)
		shipping = logistics.NewClient(cfg.LogisticsAPIURL, cfg.CompanyName, cfg.ClientTimeout)
	}

	clock := simclock.New(cfg.SimTickInterval, logger)

	dedup := db.NewIdempotencyStore(pool)
	ordersRepo := orders.NewRepository(pool)
	ordersSvc := orders.NewService(ordersRepo, stockSvc, bank, equipmentRepo, clock, dedup, logger)

	queueClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, logger)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	procureRepo := procure.NewRepository(pool)
	purchaser := procure.NewOrchestrator(mkt, shipping, bank, procureRepo, stockSvc, equipmentRepo, queueClient, clock, logger)

	decisionEngine := engine.New(bank, accountStore, stockSvc, purchaser, cfg.PaymentNotificationURL, engine.DefaultThresholds(), logger)
	producer := production.NewSimulator(stockSvc, equipmentRepo, logger)
	expiry := orders.NewExpiryJob(ordersSvc, logger)

	clock.Register(decisionEngine)
	clock.Register(producer)
	clock.Register(expiry)
	clock.Register(db.NewJanitorJob(dedup, db.KeyRetention))

	inspector := jobs.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	controller := simulation.NewController(clock, inspector, simulation.NewRepository(pool), mkt, equipmentRepo, logger)
	controller.ResumeIfActive(ctx)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		OrderHandler:      orders.NewHandler(ordersSvc, accountStore, logger),
		LogisticsHandler:  delivery.NewHandler(procureRepo, stockSvc, ordersSvc, equipmentRepo, logger),
		SimulationHandler: simulation.NewHandler(controller, logger),
		StockHandler:      stock.NewHandler(stockSvc, ordersSvc, logger),
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
	clock.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
