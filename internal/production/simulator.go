// Package production simulates the factory floor: each simulated day the
// machines convert raw materials into finished cases.
package production

import (
	"context"
	"log/slog"

	"github.com/case-supplier/case-supplier/internal/equipment"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// Inventory is the stock surface the simulator reads and mutates.
type Inventory interface {
	Get(ctx context.Context, t stock.ItemType) (stock.Item, error)
	Produce(ctx context.Context, in stock.ProductionInput) error
}

// RecipeSource provides the active machine recipe.
type RecipeSource interface {
	Get(ctx context.Context) (equipment.Parameters, error)
}

// Simulator runs one production pass per simulated day. Output is limited by
// machine capacity and by whole batches of raw material; partial batches are
// never started.
type Simulator struct {
	inventory Inventory
	recipe    RecipeSource
	logger    *slog.Logger
}

func NewSimulator(inventory Inventory, recipe RecipeSource, logger *slog.Logger) *Simulator {
	return &Simulator{inventory: inventory, recipe: recipe, logger: logger}
}

func (s *Simulator) Name() string { return "simulate_production" }

// Run produces as many whole batches as machines and on-hand materials
// allow. With no machines or not enough material for one batch it is a
// no-op.
func (s *Simulator) Run(ctx context.Context) error {
	machines, err := s.inventory.Get(ctx, stock.TypeMachine)
	if err != nil {
		return err
	}
	if machines.TotalUnits <= 0 {
		s.logger.Debug("skipping production: no machines")
		return nil
	}

	params, err := s.recipe.Get(ctx)
	if err != nil {
		return err
	}

	plastic, err := s.inventory.Get(ctx, stock.TypePlastic)
	if err != nil {
		return err
	}
	aluminium, err := s.inventory.Get(ctx, stock.TypeAluminium)
	if err != nil {
		return err
	}

	batches := plannedBatches(machines.TotalUnits, plastic.TotalUnits, aluminium.TotalUnits, params)
	if batches <= 0 {
		s.logger.Debug("skipping production: not enough materials for one batch")
		return nil
	}

	in := stock.ProductionInput{
		Batches:        batches,
		PlasticRatio:   params.PlasticRatio,
		AluminiumRatio: params.AluminiumRatio,
		ProductionRate: params.ProductionRate,
	}
	if err := s.inventory.Produce(ctx, in); err != nil {
		return err
	}

	s.logger.Info("production complete",
		slog.Int64("batches", batches),
		slog.Int64("cases", in.CaseUnits()),
		slog.Int64("plastic_used", in.PlasticUnits()),
		slog.Int64("aluminium_used", in.AluminiumUnits()))
	return nil
}

// plannedBatches is the minimum of what the machines can run in a day and
// what each raw material can feed, in whole batches.
func plannedBatches(machineCount, plasticUnits, aluminiumUnits int64, params equipment.Parameters) int64 {
	if params.ProductionRate <= 0 || params.PlasticRatio <= 0 || params.AluminiumRatio <= 0 {
		return 0
	}
	dailyCapacity := machineCount * params.ProductionRate
	fromMachines := dailyCapacity / params.ProductionRate
	fromPlastic := int64(float64(plasticUnits) / params.PlasticRatio)
	fromAluminium := int64(float64(aluminiumUnits) / params.AluminiumRatio)

	batches := fromMachines
	if fromPlastic < batches {
		batches = fromPlastic
	}
	if fromAluminium < batches {
		batches = fromAluminium
	}
	return batches
}
