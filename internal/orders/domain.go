// Package orders manages the lifecycle of customer case orders: creation
// against available stock, payment reconciliation via bank webhooks, pickup
// confirmation and expiry of orders that never get paid.
package orders

import "errors"

// Status names match the order_statuses reference table.
type Status string

const (
	StatusPaymentPending Status = "payment_pending"
	StatusPickupPending  Status = "pickup_pending"
	StatusComplete       Status = "order_complete"
	StatusCancelled      Status = "order_cancelled"
)

// OrderUnitMultiple is the only accepted granularity for case orders.
const OrderUnitMultiple = 1000

// PaymentExpiryDays is how many simulated days an order may sit unpaid
// before the expiry job cancels it.
const PaymentExpiryDays = 7

// CancellationRefundRate is the fraction of the paid amount returned when an
// order is cancelled.
const CancellationRefundRate = 0.8

// Order is one customer case order.
type Order struct {
	ID                int64
	Status            Status
	Quantity          int64
	QuantityDelivered int64
	TotalPrice        float64
	AmountPaid        float64
	// AccountNumber is the customer account payments arrived from, used as
	// the refund destination. Empty until the first payment lands.
	AccountNumber string
	// OrderedAt is the simulated date the order was placed, YYYY-MM-DD.
	OrderedAt string
}

// Paid reports whether the order has been settled in full.
func (o Order) Paid() bool {
	return o.AmountPaid >= o.TotalPrice
}

var (
	ErrNotFound          = errors.New("orders: order not found")
	ErrInvalidQuantity   = errors.New("orders: quantity must be a positive multiple of 1000")
	ErrInsufficientStock = errors.New("orders: insufficient available stock")
	ErrNotCancellable    = errors.New("orders: order can no longer be cancelled")
	ErrPickupNotPending  = errors.New("orders: payment has not been received for order")
	ErrPickupExceeds     = errors.New("orders: pickup quantity exceeds order remainder")
)
