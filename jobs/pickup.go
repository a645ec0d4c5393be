package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/logistics"
)

// PickupBooker books collections with the logistics provider.
type PickupBooker interface {
	RequestPickup(ctx context.Context, orderReference, originCompany string, items []logistics.Item) (logistics.PickupRequest, error)
}

// Payer settles the logistics invoice.
type Payer interface {
	MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (finance.Payment, error)
}

// ShipmentStore stamps the shipment reference onto the external order so the
// eventual delivery can be matched back.
type ShipmentStore interface {
	SetShipmentReference(ctx context.Context, orderReference, shipmentReference string) error
}

// PickupFulfillment processes pickup:request tasks. Any step failing leaves
// the task on the queue for redelivery; only a malformed payload is dropped.
type PickupFulfillment struct {
	logistics PickupBooker
	bank      Payer
	orders    ShipmentStore
	logger    *slog.Logger
}

func NewPickupFulfillment(booker PickupBooker, bank Payer, orders ShipmentStore, logger *slog.Logger) *PickupFulfillment {
	return &PickupFulfillment{logistics: booker, bank: bank, orders: orders, logger: logger}
}

// Handle books the pickup, pays the logistics provider and records the
// shipment reference.
func (p *PickupFulfillment) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PickupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		p.logger.Error("malformed pickup payload", slog.Any("error", err))
		return fmt.Errorf("jobs: malformed pickup payload: %v: %w", err, asynq.SkipRetry)
	}

	items := make([]logistics.Item, 0, len(payload.Items))
	for _, it := range payload.Items {
		items = append(items, logistics.Item{Name: it.ItemName, Quantity: it.Quantity})
	}

	pickup, err := p.logistics.RequestPickup(ctx, payload.OriginalExternalOrderID, payload.OriginCompany, items)
	if err != nil {
		return fmt.Errorf("jobs: request pickup for order %s: %w", payload.OriginalExternalOrderID, err)
	}

	payment, err := p.bank.MakePayment(ctx, pickup.AccountNumber, finance.BankCommercial, pickup.Cost, pickup.PaymentReference)
	if err != nil {
		return fmt.Errorf("jobs: pay pickup %s: %w", pickup.ID, err)
	}
	if !payment.Success {
		return fmt.Errorf("jobs: pickup payment declined: order %s status %s", payload.OriginalExternalOrderID, payment.Status)
	}

	if err := p.orders.SetShipmentReference(ctx, payload.OriginalExternalOrderID, pickup.PaymentReference); err != nil {
		return fmt.Errorf("jobs: record shipment reference for order %s: %w", payload.OriginalExternalOrderID, err)
	}

	p.logger.Info("pickup fulfilled",
		slog.String("order_reference", payload.OriginalExternalOrderID),
		slog.String("pickup_id", pickup.ID),
		slog.Float64("cost", pickup.Cost))
	return nil
}
