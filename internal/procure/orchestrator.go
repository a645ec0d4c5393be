package procure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/market"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// Market is the supplier market surface procurement needs.
type Market interface {
	RawMaterial(ctx context.Context, name string) (market.MaterialQuote, error)
	CaseMachine(ctx context.Context) (market.MachineQuote, error)
	PlaceMaterialOrder(ctx context.Context, name string, weightQuantity int64) (market.MaterialOrder, error)
	PlaceMachineOrder(ctx context.Context, quantity int64) (market.MachineOrder, error)
}

// Shipping estimates collection costs before committing to a purchase.
type Shipping interface {
	EstimatePickup(ctx context.Context, originCompany string, items []logistics.Item) (float64, error)
}

// Bank is the slice of the bank used to gate and settle purchases.
type Bank interface {
	Balance(ctx context.Context) (float64, error)
	MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (finance.Payment, error)
}

// OrderStore records committed external orders.
type OrderStore interface {
	CreateWithItems(ctx context.Context, o ExternalOrder) (ExternalOrder, error)
}

// InboundStock tracks units bought but not yet received.
type InboundStock interface {
	IncreaseOrdered(ctx context.Context, t stock.ItemType, units int64) error
}

// MachineWeightStore persists the per-unit shipping weight of machines so
// inbound machine deliveries can be converted from kilograms back to units.
type MachineWeightStore interface {
	SetMachineWeight(ctx context.Context, weight float64) error
}

// PickupEnqueuer hands the pickup request to the fulfilment queue. Actual
// booking and payment happen asynchronously with redelivery on failure.
type PickupEnqueuer interface {
	EnqueuePickup(ctx context.Context, orderReference, originCompany string, items []logistics.Item) error
}

// SimClock stamps orders with the simulated date.
type SimClock interface {
	Date() string
}

// Orchestrator drives the full purchase protocol: quote, affordability
// check, market order, supplier settlement, ledger record and pickup
// enqueue.
type Orchestrator struct {
	market    Market
	shipping  Shipping
	bank      Bank
	orders    OrderStore
	stock     InboundStock
	equipment MachineWeightStore
	queue     PickupEnqueuer
	clock     SimClock
	logger    *slog.Logger
}

func NewOrchestrator(
	mkt Market,
	shipping Shipping,
	bank Bank,
	orders OrderStore,
	inbound InboundStock,
	equipment MachineWeightStore,
	queue PickupEnqueuer,
	clock SimClock,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		market:    mkt,
		shipping:  shipping,
		bank:      bank,
		orders:    orders,
		stock:     inbound,
		equipment: equipment,
		queue:     queue,
		clock:     clock,
		logger:    logger,
	}
}

// BuyRawMaterial purchases quantity kilograms of the named material. When
// the market cannot fill the request the quantity is clamped down to whole
// thousand-kilogram lots.
func (o *Orchestrator) BuyRawMaterial(ctx context.Context, materialType stock.ItemType, quantity int64) error {
	name := string(materialType)

	quote, err := o.market.RawMaterial(ctx, name)
	if err != nil {
		return err
	}
	if quote.QuantityAvailable < quantity {
		quantity = quote.QuantityAvailable / MaterialLotSize * MaterialLotSize
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: %s", ErrNothingToBuy, name)
	}

	materialCost := quote.PricePerKg * float64(quantity)
	items := []logistics.Item{{Name: name, Quantity: quantity}}

	shippingCost, err := o.shipping.EstimatePickup(ctx, finance.BankSupplier, items)
	if err != nil {
		return err
	}

	balance, err := o.bank.Balance(ctx)
	if err != nil {
		return err
	}
	totalCost := materialCost + shippingCost
	if totalCost > balance {
		return fmt.Errorf("%w: %s needs %.2f, balance %.2f", ErrInsufficientFunds, name, totalCost, balance)
	}

	order, err := o.market.PlaceMaterialOrder(ctx, name, quantity)
	if err != nil {
		return err
	}

	payment, err := o.bank.MakePayment(ctx, finance.SupplierSettlementAccount, finance.BankSupplier, order.Price, order.Reference)
	if err != nil {
		return err
	}
	if !payment.Success {
		return fmt.Errorf("%w: order %s status %s", ErrPaymentFailed, order.Reference, payment.Status)
	}

	if _, err := o.orders.CreateWithItems(ctx, ExternalOrder{
		Reference: order.Reference,
		TotalCost: order.Price,
		Kind:      KindMaterial,
		OrderedAt: o.clock.Date(),
		Items: []ExternalOrderItem{{
			StockType:    materialType,
			OrderedUnits: order.WeightQuantity,
			PerUnitCost:  order.Price / float64(order.WeightQuantity),
		}},
	}); err != nil {
		return err
	}
	if err := o.stock.IncreaseOrdered(ctx, materialType, order.WeightQuantity); err != nil {
		return err
	}

	if err := o.queue.EnqueuePickup(ctx, order.Reference, finance.BankSupplier, []logistics.Item{
		{Name: name, Quantity: order.WeightQuantity},
	}); err != nil {
		return err
	}

	o.logger.Info("raw material purchased",
		slog.String("material", name),
		slog.Int64("quantity", order.WeightQuantity),
		slog.Float64("cost", order.Price),
		slog.String("order_reference", order.Reference))
	return nil
}

// BuyMachines purchases case machines. The quantity is clamped to what the
// market has; the machine's unit weight is persisted so deliveries measured
// in kilograms can later be converted back to machine counts.
func (o *Orchestrator) BuyMachines(ctx context.Context, quantity int64) error {
	quote, err := o.market.CaseMachine(ctx)
	if err != nil {
		return err
	}
	if quote.Quantity < quantity {
		quantity = quote.Quantity
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: %s", ErrNothingToBuy, market.CaseMachineName)
	}

	machineCost := quote.Price * float64(quantity)
	items := []logistics.Item{{Name: market.CaseMachineName, Quantity: quantity}}

	shippingCost, err := o.shipping.EstimatePickup(ctx, finance.BankSupplier, items)
	if err != nil {
		return err
	}

	balance, err := o.bank.Balance(ctx)
	if err != nil {
		return err
	}
	totalCost := machineCost + shippingCost
	if totalCost > balance {
		return fmt.Errorf("%w: machines need %.2f, balance %.2f", ErrInsufficientFunds, totalCost, balance)
	}

	order, err := o.market.PlaceMachineOrder(ctx, quantity)
	if err != nil {
		return err
	}
	if err := o.equipment.SetMachineWeight(ctx, order.UnitWeight); err != nil {
		return err
	}

	payment, err := o.bank.MakePayment(ctx, finance.SupplierSettlementAccount, finance.BankSupplier, order.TotalPrice, order.Reference)
	if err != nil {
		return err
	}
	if !payment.Success {
		return fmt.Errorf("%w: order %s status %s", ErrPaymentFailed, order.Reference, payment.Status)
	}

	if _, err := o.orders.CreateWithItems(ctx, ExternalOrder{
		Reference: order.Reference,
		TotalCost: order.TotalPrice,
		Kind:      KindMachine,
		OrderedAt: o.clock.Date(),
		Items: []ExternalOrderItem{{
			StockType:    stock.TypeMachine,
			OrderedUnits: order.Quantity,
			PerUnitCost:  order.TotalPrice / float64(order.Quantity),
		}},
	}); err != nil {
		return err
	}
	if err := o.stock.IncreaseOrdered(ctx, stock.TypeMachine, order.Quantity); err != nil {
		return err
	}

	// Machines travel by weight: the pickup line carries total kilograms,
	// not unit counts.
	if err := o.queue.EnqueuePickup(ctx, order.Reference, finance.BankSupplier, []logistics.Item{
		{Name: market.CaseMachineName, Quantity: int64(order.TotalWeight)},
	}); err != nil {
		return err
	}

	o.logger.Info("machines purchased",
		slog.Int64("quantity", order.Quantity),
		slog.Float64("cost", order.TotalPrice),
		slog.String("order_reference", order.Reference))
	return nil
}
