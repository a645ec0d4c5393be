package procure

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/market"
	"github.com/case-supplier/case-supplier/internal/stock"
)

type fakeMarket struct {
	material       market.MaterialQuote
	machine        market.MachineQuote
	placedMaterial []market.MaterialOrder
	placedMachine  []market.MachineOrder
}

func (f *fakeMarket) RawMaterial(context.Context, string) (market.MaterialQuote, error) {
	return f.material, nil
}

func (f *fakeMarket) CaseMachine(context.Context) (market.MachineQuote, error) {
	return f.machine, nil
}

func (f *fakeMarket) PlaceMaterialOrder(_ context.Context, name string, weightQuantity int64) (market.MaterialOrder, error) {
	order := market.MaterialOrder{
		Reference:      "m-1",
		MaterialName:   name,
		WeightQuantity: weightQuantity,
		Price:          f.material.PricePerKg * float64(weightQuantity),
	}
	f.placedMaterial = append(f.placedMaterial, order)
	return order, nil
}

func (f *fakeMarket) PlaceMachineOrder(_ context.Context, quantity int64) (market.MachineOrder, error) {
	order := market.MachineOrder{
		Reference:   "mc-1",
		Quantity:    quantity,
		TotalPrice:  f.machine.Price * float64(quantity),
		UnitWeight:  f.machine.Weight,
		TotalWeight: f.machine.Weight * float64(quantity),
	}
	f.placedMachine = append(f.placedMachine, order)
	return order, nil
}

type fakeShipping struct {
	cost float64
}

func (f *fakeShipping) EstimatePickup(context.Context, string, []logistics.Item) (float64, error) {
	return f.cost, nil
}

type paidTransfer struct {
	account string
	bank    string
	amount  float64
	memo    string
}

type fakeBank struct {
	balance  float64
	declined bool
	payments []paidTransfer
}

func (f *fakeBank) Balance(context.Context) (float64, error) { return f.balance, nil }

func (f *fakeBank) MakePayment(_ context.Context, toAccount, toBank string, amount float64, memo string) (finance.Payment, error) {
	f.payments = append(f.payments, paidTransfer{account: toAccount, bank: toBank, amount: amount, memo: memo})
	if f.declined {
		return finance.Payment{Success: false, Status: "insufficient funds"}, nil
	}
	return finance.Payment{Success: true, Status: "success", TransactionNumber: "t-1"}, nil
}

type fakeOrderStore struct {
	created []ExternalOrder
}

func (f *fakeOrderStore) CreateWithItems(_ context.Context, o ExternalOrder) (ExternalOrder, error) {
	o.ID = int64(len(f.created) + 1)
	f.created = append(f.created, o)
	return o, nil
}

type fakeInbound struct {
	ordered map[stock.ItemType]int64
}

func (f *fakeInbound) IncreaseOrdered(_ context.Context, t stock.ItemType, units int64) error {
	if f.ordered == nil {
		f.ordered = make(map[stock.ItemType]int64)
	}
	f.ordered[t] += units
	return nil
}

type fakeWeights struct {
	weight float64
}

func (f *fakeWeights) SetMachineWeight(_ context.Context, weight float64) error {
	f.weight = weight
	return nil
}

type enqueued struct {
	reference string
	origin    string
	items     []logistics.Item
}

type fakeQueue struct {
	pickups []enqueued
}

func (f *fakeQueue) EnqueuePickup(_ context.Context, orderReference, originCompany string, items []logistics.Item) error {
	f.pickups = append(f.pickups, enqueued{reference: orderReference, origin: originCompany, items: items})
	return nil
}

type fixedClock struct{}

func (fixedClock) Date() string { return "2050-02-10" }

type orchestratorFixture struct {
	market   *fakeMarket
	shipping *fakeShipping
	bank     *fakeBank
	orders   *fakeOrderStore
	inbound  *fakeInbound
	weights  *fakeWeights
	queue    *fakeQueue
	orch     *Orchestrator
}

func newFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		market: &fakeMarket{
			material: market.MaterialQuote{Name: "plastic", PricePerKg: 45, QuantityAvailable: 10000},
			machine:  market.MachineQuote{Name: market.CaseMachineName, Quantity: 10, Price: 8500, Weight: 2000, MaterialRatio: "4:7", ProductionRate: 200},
		},
		shipping: &fakeShipping{cost: 500},
		bank:     &fakeBank{balance: 500000},
		orders:   &fakeOrderStore{},
		inbound:  &fakeInbound{},
		weights:  &fakeWeights{},
		queue:    &fakeQueue{},
	}
	f.orch = NewOrchestrator(f.market, f.shipping, f.bank, f.orders, f.inbound, f.weights, f.queue, fixedClock{}, slog.Default())
	return f
}

func TestBuyRawMaterial(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.orch.BuyRawMaterial(context.Background(), stock.TypePlastic, 1000))

	require.Len(t, f.bank.payments, 1)
	require.Equal(t, finance.SupplierSettlementAccount, f.bank.payments[0].account)
	require.Equal(t, finance.BankSupplier, f.bank.payments[0].bank)
	require.Equal(t, 45000.0, f.bank.payments[0].amount)
	require.Equal(t, "m-1", f.bank.payments[0].memo)

	require.Len(t, f.orders.created, 1)
	created := f.orders.created[0]
	require.Equal(t, KindMaterial, created.Kind)
	require.Equal(t, "m-1", created.Reference)
	require.Equal(t, "2050-02-10", created.OrderedAt)
	require.Len(t, created.Items, 1)
	require.Equal(t, stock.TypePlastic, created.Items[0].StockType)
	require.Equal(t, int64(1000), created.Items[0].OrderedUnits)
	require.Equal(t, 45.0, created.Items[0].PerUnitCost)

	require.Equal(t, int64(1000), f.inbound.ordered[stock.TypePlastic])

	require.Len(t, f.queue.pickups, 1)
	require.Equal(t, "m-1", f.queue.pickups[0].reference)
	require.Equal(t, finance.BankSupplier, f.queue.pickups[0].origin)
	require.Equal(t, []logistics.Item{{Name: "plastic", Quantity: 1000}}, f.queue.pickups[0].items)
}

func TestBuyRawMaterialClampsToWholeLots(t *testing.T) {
	f := newFixture()
	f.market.material.QuantityAvailable = 1700

	require.NoError(t, f.orch.BuyRawMaterial(context.Background(), stock.TypePlastic, 2000))
	require.Len(t, f.market.placedMaterial, 1)
	require.Equal(t, int64(1000), f.market.placedMaterial[0].WeightQuantity)
}

func TestBuyRawMaterialNothingSellable(t *testing.T) {
	f := newFixture()
	f.market.material.QuantityAvailable = 900

	err := f.orch.BuyRawMaterial(context.Background(), stock.TypePlastic, 1000)
	require.ErrorIs(t, err, ErrNothingToBuy)
	require.Empty(t, f.market.placedMaterial)
	require.Empty(t, f.bank.payments)
}

func TestBuyRawMaterialInsufficientFunds(t *testing.T) {
	f := newFixture()
	f.bank.balance = 10000

	err := f.orch.BuyRawMaterial(context.Background(), stock.TypePlastic, 1000)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, f.market.placedMaterial)
	require.Empty(t, f.orders.created)
	require.Empty(t, f.queue.pickups)
}

func TestBuyRawMaterialPaymentDeclined(t *testing.T) {
	f := newFixture()
	f.bank.declined = true

	err := f.orch.BuyRawMaterial(context.Background(), stock.TypePlastic, 1000)
	require.ErrorIs(t, err, ErrPaymentFailed)
	require.Empty(t, f.orders.created)
	require.Empty(t, f.queue.pickups)
	require.Empty(t, f.inbound.ordered)
}

func TestBuyMachines(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.orch.BuyMachines(context.Background(), 2))

	require.Equal(t, 2000.0, f.weights.weight)

	require.Len(t, f.bank.payments, 1)
	require.Equal(t, 17000.0, f.bank.payments[0].amount)

	require.Len(t, f.orders.created, 1)
	created := f.orders.created[0]
	require.Equal(t, KindMachine, created.Kind)
	require.Equal(t, stock.TypeMachine, created.Items[0].StockType)
	require.Equal(t, int64(2), created.Items[0].OrderedUnits)
	require.Equal(t, 8500.0, created.Items[0].PerUnitCost)

	require.Equal(t, int64(2), f.inbound.ordered[stock.TypeMachine])

	require.Len(t, f.queue.pickups, 1)
	require.Equal(t, []logistics.Item{{Name: market.CaseMachineName, Quantity: 4000}}, f.queue.pickups[0].items)
}

func TestBuyMachinesClampsToMarketStock(t *testing.T) {
	f := newFixture()
	f.market.machine.Quantity = 1

	require.NoError(t, f.orch.BuyMachines(context.Background(), 5))
	require.Len(t, f.market.placedMachine, 1)
	require.Equal(t, int64(1), f.market.placedMachine[0].Quantity)
}

func TestBuyMachinesSoldOut(t *testing.T) {
	f := newFixture()
	f.market.machine.Quantity = 0

	err := f.orch.BuyMachines(context.Background(), 1)
	require.ErrorIs(t, err, ErrNothingToBuy)
	require.Empty(t, f.bank.payments)
}
