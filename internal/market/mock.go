package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/case-supplier/case-supplier/internal/equipment"
)

// Mock is an in-process market used when USE_MOCK_CLIENTS is on. It serves
// fixed quotes and hands out sequential order references.
type Mock struct {
	mu        sync.Mutex
	materials map[string]MaterialQuote
	machine   MachineQuote
	nextRef   atomic.Int64
	simDate   string
}

func NewMock() *Mock {
	m := &Mock{
		materials: map[string]MaterialQuote{
			"plastic":   {Name: "plastic", PricePerKg: 45, QuantityAvailable: 10000},
			"aluminium": {Name: "aluminium", PricePerKg: 85, QuantityAvailable: 8000},
		},
		machine: MachineQuote{
			Name:           CaseMachineName,
			Quantity:       10,
			Price:          8500,
			Weight:         2000,
			MaterialRatio:  "4:7",
			ProductionRate: 200,
		},
		simDate: NoActiveSimulation,
	}
	m.nextRef.Store(1000)
	return m
}

// SetSimulationDate controls what SimulationDate reports, for resume tests.
func (m *Mock) SetSimulationDate(date string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simDate = date
}

func (m *Mock) RawMaterials(ctx context.Context) ([]MaterialQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MaterialQuote, 0, len(m.materials))
	for _, q := range m.materials {
		out = append(out, q)
	}
	return out, nil
}

func (m *Mock) RawMaterial(ctx context.Context, name string) (MaterialQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.materials[strings.ToLower(name)]
	if !ok {
		return MaterialQuote{}, fmt.Errorf("%w: material %q", ErrNotListed, name)
	}
	return q, nil
}

func (m *Mock) Machines(ctx context.Context) ([]MachineQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return []MachineQuote{m.machine}, nil
}

func (m *Mock) CaseMachine(ctx context.Context) (MachineQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine, nil
}

func (m *Mock) PlaceMaterialOrder(ctx context.Context, name string, weightQuantity int64) (MaterialOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.materials[strings.ToLower(name)]
	if !ok {
		return MaterialOrder{}, fmt.Errorf("%w: material %q", ErrNotListed, name)
	}
	if weightQuantity > q.QuantityAvailable {
		weightQuantity = q.QuantityAvailable
	}
	q.QuantityAvailable -= weightQuantity
	m.materials[strings.ToLower(name)] = q
	return MaterialOrder{
		Reference:      fmt.Sprintf("%d", m.nextRef.Add(1)),
		MaterialName:   q.Name,
		WeightQuantity: weightQuantity,
		Price:          q.PricePerKg * float64(weightQuantity),
		BankAccount:    "mock-market-account",
	}, nil
}

func (m *Mock) PlaceMachineOrder(ctx context.Context, quantity int64) (MachineOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if quantity > m.machine.Quantity {
		quantity = m.machine.Quantity
	}
	if quantity <= 0 {
		return MachineOrder{}, fmt.Errorf("%w: machine %q sold out", ErrNotListed, CaseMachineName)
	}
	m.machine.Quantity -= quantity
	return MachineOrder{
		Reference:   fmt.Sprintf("%d", m.nextRef.Add(1)),
		Quantity:    quantity,
		TotalPrice:  m.machine.Price * float64(quantity),
		UnitWeight:  m.machine.Weight,
		TotalWeight: m.machine.Weight * float64(quantity),
		BankAccount: "mock-market-account",
	}, nil
}

func (m *Mock) SimulationDate(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.simDate
}

func (m *Mock) SyncEquipment(ctx context.Context, equip EquipmentWriter) error {
	quote, err := m.CaseMachine(ctx)
	if err != nil {
		return err
	}
	plastic, aluminium, err := ParseRatio(quote.MaterialRatio)
	if err != nil {
		return err
	}
	return equip.Replace(ctx, equipment.Parameters{
		PlasticRatio:   plastic,
		AluminiumRatio: aluminium,
		ProductionRate: quote.ProductionRate,
	})
}
