package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/case-supplier/case-supplier/internal/logistics"
)

// Worker wraps the Asynq server processing the pickup queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Pickup    *PickupFulfillment
}

// NewWorker constructs a Worker. Pickups are processed one at a time so a
// stalled logistics provider cannot fan out into parallel duplicate
// bookings.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Pickup == nil {
		return nil, errors.New("jobs: pickup handler required")
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			QueuePickup: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePickupRequest, cfg.Pickup.Handle)

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("jobs: worker not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits pickup tasks to the queue.
type Client struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewClient(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Client {
	return &Client{client: asynq.NewClient(redisOpts), logger: logger}
}

// EnqueuePickup schedules fulfilment of one supplier pickup.
func (c *Client) EnqueuePickup(ctx context.Context, orderReference, originCompany string, items []logistics.Item) error {
	payload := PickupPayload{
		OriginalExternalOrderID: orderReference,
		OriginCompany:           originCompany,
	}
	for _, it := range items {
		payload.Items = append(payload.Items, PickupItem{ItemName: it.Name, Quantity: it.Quantity})
	}

	task, err := NewPickupTask(payload)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	c.logger.Info("pickup enqueued",
		slog.String("order_reference", orderReference),
		slog.String("task_id", info.ID))
	return nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Inspector exposes queue maintenance used when a simulation restarts.
type Inspector struct {
	inspector *asynq.Inspector
}

func NewInspector(redisOpts asynq.RedisClientOpt) *Inspector {
	return &Inspector{inspector: asynq.NewInspector(redisOpts)}
}

// PurgePickupQueue drops every queued pickup task. Run at simulation start
// so payments are never attempted for purchases of a previous run.
func (i *Inspector) PurgePickupQueue(ctx context.Context) error {
	for _, drain := range []func(string) (int, error){
		i.inspector.DeleteAllPendingTasks,
		i.inspector.DeleteAllScheduledTasks,
		i.inspector.DeleteAllRetryTasks,
		i.inspector.DeleteAllArchivedTasks,
	} {
		if _, err := drain(QueuePickup); err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close releases inspector resources.
func (i *Inspector) Close() error {
	return i.inspector.Close()
}
