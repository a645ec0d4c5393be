package stock

import (
	"context"
	"fmt"
	"math"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, t ItemType) (Item, error)
	CaseAvailability(ctx context.Context) (CaseAvailability, error)
}

// Service is the stock ledger: every stock counter mutation in the system
// goes through one of its transactional operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the current counters for one stock type.
func (s *Service) Get(ctx context.Context, t ItemType) (Item, error) {
	if !ValidType(t) {
		return Item{}, ErrUnknownType
	}
	return s.repo.Get(ctx, t)
}

// Increase adds units to total stock.
func (s *Service) Increase(ctx context.Context, t ItemType, units int64) error {
	return s.adjust(ctx, t, units, func(item *Item) error {
		item.TotalUnits += units
		return nil
	})
}

// Decrease removes units from total stock, failing without mutation when the
// counter would go negative.
func (s *Service) Decrease(ctx context.Context, t ItemType, units int64) error {
	return s.adjust(ctx, t, units, func(item *Item) error {
		if item.TotalUnits < units {
			return fmt.Errorf("%w: %s has %d units, need %d", ErrInsufficientStock, t, item.TotalUnits, units)
		}
		item.TotalUnits -= units
		return nil
	})
}

// DecreaseFlexible removes up to units from total stock, clamping to what is
// on hand. It fails only when nothing is available at all.
func (s *Service) DecreaseFlexible(ctx context.Context, t ItemType, units int64) (int64, error) {
	var applied int64
	err := s.adjust(ctx, t, units, func(item *Item) error {
		if item.TotalUnits == 0 {
			return fmt.Errorf("%w: no %s available", ErrInsufficientStock, t)
		}
		applied = min(units, item.TotalUnits)
		item.TotalUnits -= applied
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// IncreaseOrdered records units purchased from a supplier but still in
// transit.
func (s *Service) IncreaseOrdered(ctx context.Context, t ItemType, units int64) error {
	return s.adjust(ctx, t, units, func(item *Item) error {
		item.OrderedUnits += units
		return nil
	})
}

// DecreaseOrdered removes in-transit units, flooring at zero.
func (s *Service) DecreaseOrdered(ctx context.Context, t ItemType, units int64) error {
	return s.adjust(ctx, t, units, func(item *Item) error {
		item.OrderedUnits = max(item.OrderedUnits-units, 0)
		return nil
	})
}

// Deliver atomically shifts delivered units from the ordered counter into
// total stock. The ordered counter floors at zero: over-delivery relative to
// what was recorded as ordered is accepted, not rejected.
func (s *Service) Deliver(ctx context.Context, t ItemType, deliveredUnits int64) error {
	return s.adjust(ctx, t, deliveredUnits, func(item *Item) error {
		item.OrderedUnits = max(item.OrderedUnits-deliveredUnits, 0)
		item.TotalUnits += deliveredUnits
		return nil
	})
}

// AvailableCases derives reservation-aware case availability in a single
// consistent read.
func (s *Service) AvailableCases(ctx context.Context) (CaseAvailability, error) {
	return s.repo.CaseAvailability(ctx)
}

// MaterialCounts reports on-hand plus in-transit units for every
// procurement target.
func (s *Service) MaterialCounts(ctx context.Context) (MaterialCounts, error) {
	var counts MaterialCounts
	for _, t := range []ItemType{TypePlastic, TypeAluminium, TypeMachine} {
		item, err := s.repo.Get(ctx, t)
		if err != nil {
			return MaterialCounts{}, err
		}
		switch t {
		case TypePlastic:
			counts.Plastic = item.TotalUnits + item.OrderedUnits
		case TypeAluminium:
			counts.Aluminium = item.TotalUnits + item.OrderedUnits
		case TypeMachine:
			counts.Machine = item.TotalUnits + item.OrderedUnits
		}
	}
	return counts, nil
}

// ProductionInput describes one production run's material consumption and
// case output.
type ProductionInput struct {
	Batches        int64
	PlasticRatio   float64
	AluminiumRatio float64
	ProductionRate int64
}

// PlasticUnits returns total plastic consumed by the run.
func (in ProductionInput) PlasticUnits() int64 {
	return int64(math.Round(float64(in.Batches) * in.PlasticRatio))
}

// AluminiumUnits returns total aluminium consumed by the run.
func (in ProductionInput) AluminiumUnits() int64 {
	return int64(math.Round(float64(in.Batches) * in.AluminiumRatio))
}

// CaseUnits returns total cases produced by the run.
func (in ProductionInput) CaseUnits() int64 {
	return in.Batches * in.ProductionRate
}

// Produce consumes raw materials and adds finished cases in one atomic
// transaction, so a failure mid-run cannot leave materials consumed without
// cases produced. Rows are locked in a fixed order.
func (s *Service) Produce(ctx context.Context, in ProductionInput) error {
	if in.Batches <= 0 {
		return ErrInvalidQuantity
	}
	plasticUsed := in.PlasticUnits()
	aluminiumUsed := in.AluminiumUnits()
	cases := in.CaseUnits()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, step := range []struct {
			t     ItemType
			delta int64
		}{
			{TypePlastic, -plasticUsed},
			{TypeAluminium, -aluminiumUsed},
			{TypeCase, cases},
		} {
			item, err := tx.GetForUpdate(ctx, step.t)
			if err != nil {
				return err
			}
			next := item.TotalUnits + step.delta
			if next < 0 {
				return fmt.Errorf("%w: %s has %d units, need %d", ErrInsufficientStock, step.t, item.TotalUnits, -step.delta)
			}
			if err := tx.SetUnits(ctx, step.t, next, item.OrderedUnits); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) adjust(ctx context.Context, t ItemType, units int64, mutate func(*Item) error) error {
	if !ValidType(t) {
		return ErrUnknownType
	}
	if units <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetForUpdate(ctx, t)
		if err != nil {
			return err
		}
		if err := mutate(&item); err != nil {
			return err
		}
		return tx.SetUnits(ctx, t, item.TotalUnits, item.OrderedUnits)
	})
}
