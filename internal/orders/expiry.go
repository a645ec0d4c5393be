package orders

import (
	"context"
	"log/slog"
)

// ExpiryJob runs once per simulated day and cancels stale unpaid orders.
type ExpiryJob struct {
	svc    *Service
	logger *slog.Logger
}

func NewExpiryJob(svc *Service, logger *slog.Logger) *ExpiryJob {
	return &ExpiryJob{svc: svc, logger: logger}
}

func (j *ExpiryJob) Name() string { return "cancel_unpaid_orders" }

func (j *ExpiryJob) Run(ctx context.Context) error {
	expired, err := j.svc.ExpireUnpaid(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		j.logger.Info("expired unpaid orders", slog.Int("count", expired))
	}
	return nil
}
