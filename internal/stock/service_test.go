package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items map[ItemType]Item
	avail CaseAvailability
}

type memoryTx struct {
	repo    *memoryRepo
	staged  map[ItemType]Item
	applied bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[ItemType]Item{
		TypePlastic:   {Type: TypePlastic},
		TypeAluminium: {Type: TypeAluminium},
		TypeMachine:   {Type: TypeMachine},
		TypeCase:      {Type: TypeCase},
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, staged: make(map[ItemType]Item)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for t, item := range tx.staged {
		r.items[t] = item
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, t ItemType) (Item, error) {
	item, ok := r.items[t]
	if !ok {
		return Item{}, ErrUnknownType
	}
	return item, nil
}

func (r *memoryRepo) CaseAvailability(ctx context.Context) (CaseAvailability, error) {
	return r.avail, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, t ItemType) (Item, error) {
	if staged, ok := tx.staged[t]; ok {
		return staged, nil
	}
	return tx.repo.Get(ctx, t)
}

func (tx *memoryTx) SetUnits(ctx context.Context, t ItemType, total, ordered int64) error {
	tx.staged[t] = Item{Type: t, TotalUnits: total, OrderedUnits: ordered}
	return nil
}

func TestDecreaseRejectsOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[TypePlastic] = Item{Type: TypePlastic, TotalUnits: 100}
	svc := NewService(repo)
	ctx := context.Background()

	require.ErrorIs(t, svc.Decrease(ctx, TypePlastic, 101), ErrInsufficientStock)

	// Stock must be unchanged after a rejected decrement.
	item, err := svc.Get(ctx, TypePlastic)
	require.NoError(t, err)
	require.EqualValues(t, 100, item.TotalUnits)

	require.NoError(t, svc.Decrease(ctx, TypePlastic, 100))
	item, _ = svc.Get(ctx, TypePlastic)
	require.EqualValues(t, 0, item.TotalUnits)
}

func TestDecreaseFlexibleClampsToAvailable(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[TypeCase] = Item{Type: TypeCase, TotalUnits: 30}
	svc := NewService(repo)
	ctx := context.Background()

	applied, err := svc.DecreaseFlexible(ctx, TypeCase, 50)
	require.NoError(t, err)
	require.EqualValues(t, 30, applied)

	_, err = svc.DecreaseFlexible(ctx, TypeCase, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestDeliverShiftsOrderedIntoTotalFlooredAtZero(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[TypeMachine] = Item{Type: TypeMachine, TotalUnits: 2, OrderedUnits: 3}
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Deliver(ctx, TypeMachine, 5))
	item, _ := svc.Get(ctx, TypeMachine)
	require.EqualValues(t, 7, item.TotalUnits)
	require.EqualValues(t, 0, item.OrderedUnits)
}

func TestAdjustValidatesTypeAndQuantity(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	require.ErrorIs(t, svc.Increase(ctx, ItemType("gold"), 5), ErrUnknownType)
	require.ErrorIs(t, svc.Increase(ctx, TypePlastic, 0), ErrInvalidQuantity)
	require.ErrorIs(t, svc.IncreaseOrdered(ctx, TypePlastic, -10), ErrInvalidQuantity)
}

func TestProduceIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.items[TypePlastic] = Item{Type: TypePlastic, TotalUnits: 40}
	repo.items[TypeAluminium] = Item{Type: TypeAluminium, TotalUnits: 30} // short of the 70 needed
	repo.items[TypeCase] = Item{Type: TypeCase, TotalUnits: 0}
	svc := NewService(repo)
	ctx := context.Background()

	in := ProductionInput{Batches: 10, PlasticRatio: 4, AluminiumRatio: 7, ProductionRate: 200}
	require.ErrorIs(t, svc.Produce(ctx, in), ErrInsufficientStock)

	// Nothing may have been consumed or produced.
	plastic, _ := svc.Get(ctx, TypePlastic)
	cases, _ := svc.Get(ctx, TypeCase)
	require.EqualValues(t, 40, plastic.TotalUnits)
	require.EqualValues(t, 0, cases.TotalUnits)

	repo.items[TypeAluminium] = Item{Type: TypeAluminium, TotalUnits: 70}
	require.NoError(t, svc.Produce(ctx, in))
	plastic, _ = svc.Get(ctx, TypePlastic)
	aluminium, _ := svc.Get(ctx, TypeAluminium)
	cases, _ = svc.Get(ctx, TypeCase)
	require.EqualValues(t, 0, plastic.TotalUnits)
	require.EqualValues(t, 0, aluminium.TotalUnits)
	require.EqualValues(t, 2000, cases.TotalUnits)
}
