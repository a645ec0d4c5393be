package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/case-supplier/case-supplier/internal/app"
	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/platform/db"
	"github.com/case-supplier/case-supplier/internal/procure"
	"github.com/case-supplier/case-supplier/jobs"
)

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

	accountStore := finance.NewAccountStore(pool)

	var (
		bank    jobs.Payer
		shipper jobs.PickupBooker
	)
	if cfg.UseMockClients {
		logger.Info("using in-process mock clients")
		bank = finance.NewMockBank()
		shipper = logistics.NewMock()
	} else {
		bank = finance.NewHTTPBank(cfg.BankAPIURL, cfg.ClientTimeout, accountStore, logger)
		shipper = logistics.NewClient(cfg.LogisticsAPIURL, cfg.CompanyName, cfg.ClientTimeout)
	}

	fulfillment := jobs.NewPickupFulfillment(shipper, bank, procure.NewRepository(pool), logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Pickup:    fulfillment,
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
