package simulation

import (
	"context"
	"log/slog"

	"github.com/case-supplier/case-supplier/internal/market"
	"github.com/case-supplier/case-supplier/internal/simclock"
)

// QueuePurger drops leftover pickup tasks from a previous run.
type QueuePurger interface {
	PurgePickupQueue(ctx context.Context) error
}

// StateStore wipes all run-scoped database state.
type StateStore interface {
	Reset(ctx context.Context) error
}

// Market is the supplier market surface the controller needs: the recipe
// sync at start and the active simulation date for resume.
type Market interface {
	SimulationDate(ctx context.Context) string
	SyncEquipment(ctx context.Context, equip market.EquipmentWriter) error
}

// Controller starts, stops and resumes simulation runs.
type Controller struct {
	clock  *simclock.Clock
	queue  QueuePurger
	store  StateStore
	market Market
	equip  market.EquipmentWriter
	logger *slog.Logger
}

func NewController(clock *simclock.Clock, queue QueuePurger, store StateStore, mkt Market, equip market.EquipmentWriter, logger *slog.Logger) *Controller {
	return &Controller{
		clock:  clock,
		queue:  queue,
		store:  store,
		market: mkt,
		equip:  equip,
		logger: logger,
	}
}

// Start begins a fresh run: queued pickups from the previous run are purged
// before anything else so their payments can never fire, state is wiped,
// the clock rewinds to the epoch and the machine recipe is synced from the
// market. The first decision cycle runs immediately, then the daily ticker
// takes over.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Info("simulation starting")

	if err := c.queue.PurgePickupQueue(ctx); err != nil {
		return err
	}
	if err := c.store.Reset(ctx); err != nil {
		return err
	}
	c.clock.Reset()

	if err := c.market.SyncEquipment(ctx, c.equip); err != nil {
		c.logger.Warn("failed to sync machine recipe from market", slog.Any("error", err))
	}

	c.clock.RunJobs(ctx)
	c.clock.Start(ctx)

	c.logger.Info("simulation started", slog.String("date", c.clock.Date()))
	return nil
}

// End stops the run and rewinds the clock.
func (c *Controller) End(ctx context.Context) error {
	c.clock.Reset()
	c.logger.Info("simulation stopped")
	return nil
}

// ResumeIfActive asks the market whether a simulation is in flight and, if
// so, fast-forwards the clock to its date and rejoins the tick loop. Called
// once on boot; a market outage is treated as no active run.
func (c *Controller) ResumeIfActive(ctx context.Context) {
	date := c.market.SimulationDate(ctx)
	if date == market.NoActiveSimulation {
		c.logger.Info("no active simulation")
		return
	}

	if err := c.market.SyncEquipment(ctx, c.equip); err != nil {
		c.logger.Warn("failed to sync machine recipe from market", slog.Any("error", err))
	}

	if err := c.clock.Resume(ctx, date); err != nil {
		c.logger.Error("failed to resume simulation", slog.String("date", date), slog.Any("error", err))
		return
	}
	c.logger.Info("resumed active simulation", slog.String("date", date))
}
