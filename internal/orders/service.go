package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/case-supplier/case-supplier/internal/equipment"
	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// PriceMarkup is the multiplier applied over material cost when pricing a
// case.
const PriceMarkup = 4

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	ListPaymentPending(ctx context.Context) ([]Order, error)
	CasePrice(ctx context.Context, plasticPerCase, aluminiumPerCase, markup float64) (float64, error)
}

// CaseStock is the slice of the stock service used when cases leave the
// warehouse.
type CaseStock interface {
	Decrease(ctx context.Context, t stock.ItemType, units int64) error
	Increase(ctx context.Context, t stock.ItemType, units int64) error
}

// Refunder sends money back to customers.
type Refunder interface {
	MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (finance.Payment, error)
}

// EquipmentSource provides the active production recipe for pricing.
type EquipmentSource interface {
	Get(ctx context.Context) (equipment.Parameters, error)
}

// SimClock is the clock surface the service needs: the current simulated
// date for stamping orders and the age of a past date for expiry.
type SimClock interface {
	Date() string
	DaysSince(date string) (int, error)
}

// Deduper guards against replayed payment notifications. CheckAndInsert
// reports false when the key was already processed; Delete releases a key
// whose processing failed so the bank's redelivery can retry it.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, module string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// PaymentOutcome classifies what ApplyPayment did with a notification.
type PaymentOutcome string

const (
	PaymentDuplicate         PaymentOutcome = "duplicate"
	PaymentRefundedCancelled PaymentOutcome = "refunded_cancelled"
	PaymentPartial           PaymentOutcome = "partial"
	PaymentComplete          PaymentOutcome = "complete"
)

// Service implements the case order lifecycle.
type Service struct {
	repo   RepositoryPort
	stock  CaseStock
	bank   Refunder
	equip  EquipmentSource
	clock  SimClock
	dedup  Deduper
	logger *slog.Logger
}

func NewService(repo RepositoryPort, caseStock CaseStock, bank Refunder, equip EquipmentSource, clock SimClock, dedup Deduper, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		stock:  caseStock,
		bank:   bank,
		equip:  equip,
		clock:  clock,
		dedup:  dedup,
		logger: logger,
	}
}

// PricePerCase computes the current selling price of one case, rounded to
// the nearest whole amount.
func (s *Service) PricePerCase(ctx context.Context) (float64, error) {
	params, err := s.equip.Get(ctx)
	if err != nil {
		return 0, err
	}
	price, err := s.repo.CasePrice(ctx, params.PlasticPerCase(), params.AluminiumPerCase(), PriceMarkup)
	if err != nil {
		return 0, err
	}
	return math.Round(price), nil
}

// Create places a new order if enough unreserved case stock exists. The
// availability check and the insert share one transaction so two concurrent
// orders cannot both reserve the same cases.
func (s *Service) Create(ctx context.Context, quantity int64) (Order, error) {
	if quantity <= 0 || quantity%OrderUnitMultiple != 0 {
		return Order{}, ErrInvalidQuantity
	}

	pricePerCase, err := s.PricePerCase(ctx)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		Status:     StatusPaymentPending,
		Quantity:   quantity,
		TotalPrice: pricePerCase * float64(quantity),
		OrderedAt:  s.clock.Date(),
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		available, err := tx.CaseAvailability(ctx)
		if err != nil {
			return err
		}
		if quantity > available {
			return ErrInsufficientStock
		}
		order, err = tx.Insert(ctx, order)
		return err
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.Info("case order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("quantity", quantity),
		slog.Float64("total_price", order.TotalPrice))
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// ApplyPayment records a successful bank transfer against an order. Payments
// toward a cancelled order are refunded at the cancellation rate. When the
// cumulative amount covers the price the order advances to pickup_pending.
// Replayed notifications are detected by transaction number.
func (s *Service) ApplyPayment(ctx context.Context, orderID int64, from string, amount float64, transactionNumber string) (PaymentOutcome, error) {
	var inserted bool
	if transactionNumber != "" && s.dedup != nil {
		var err error
		inserted, err = s.dedup.CheckAndInsert(ctx, transactionNumber, "payments")
		if err != nil {
			return "", err
		}
		if !inserted {
			return PaymentDuplicate, nil
		}
	}

	var outcome PaymentOutcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == StatusCancelled {
			outcome = PaymentRefundedCancelled
			return nil
		}

		if err := tx.AddPayment(ctx, orderID, amount, from); err != nil {
			return err
		}
		if order.AmountPaid+amount >= order.TotalPrice {
			if err := tx.UpdateStatus(ctx, orderID, StatusPickupPending); err != nil {
				return err
			}
			outcome = PaymentComplete
			return nil
		}
		outcome = PaymentPartial
		return nil
	})
	if err != nil {
		if inserted {
			if delErr := s.dedup.Delete(ctx, transactionNumber); delErr != nil {
				s.logger.Error("failed to release payment idempotency key",
					slog.String("transaction_number", transactionNumber), slog.Any("error", delErr))
			}
		}
		return "", err
	}

	if outcome == PaymentRefundedCancelled {
		memo := fmt.Sprintf("Order already cancelled, refunding 80%% of order ID: %d", orderID)
		if _, err := s.bank.MakePayment(ctx, from, finance.BankCommercial, amount*CancellationRefundRate, memo); err != nil {
			s.logger.Error("refund on cancelled order failed",
				slog.Int64("order_id", orderID), slog.Any("error", err))
		}
	}
	return outcome, nil
}

// RecordPickup confirms collection of quantity cases for a paid order. Cases
// leave the warehouse ledger first; the order transition compensates the
// ledger if it fails afterwards. The order completes once the full quantity
// has been collected.
func (s *Service) RecordPickup(ctx context.Context, orderID, quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != StatusPickupPending {
		return ErrPickupNotPending
	}
	if order.QuantityDelivered+quantity > order.Quantity {
		return ErrPickupExceeds
	}

	if err := s.stock.Decrease(ctx, stock.TypeCase, quantity); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPickupPending {
			return ErrPickupNotPending
		}
		if order.QuantityDelivered+quantity > order.Quantity {
			return ErrPickupExceeds
		}
		if err := tx.AddDelivered(ctx, orderID, quantity); err != nil {
			return err
		}
		if order.QuantityDelivered+quantity >= order.Quantity {
			return tx.UpdateStatus(ctx, orderID, StatusComplete)
		}
		return nil
	})
	if err != nil {
		if restoreErr := s.stock.Increase(ctx, stock.TypeCase, quantity); restoreErr != nil {
			s.logger.Error("failed to restore case stock after aborted pickup",
				slog.Int64("order_id", orderID), slog.Any("error", restoreErr))
		}
		return err
	}

	s.logger.Info("pickup recorded",
		slog.Int64("order_id", orderID), slog.Int64("quantity", quantity))
	return nil
}

// Cancel cancels an order that has not been paid in full. Any amount already
// received is refunded at the cancellation rate; a refund transfer failure
// is logged but does not undo the cancellation.
func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	var refundAmount float64
	var refundAccount string

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPaymentPending {
			return ErrNotCancellable
		}
		if err := tx.UpdateStatus(ctx, orderID, StatusCancelled); err != nil {
			return err
		}
		if order.AmountPaid > 0 && order.AccountNumber != "" {
			refundAmount = order.AmountPaid * CancellationRefundRate
			refundAccount = order.AccountNumber
		}
		return nil
	})
	if err != nil {
		return err
	}

	if refundAmount > 0 {
		memo := fmt.Sprintf("Order cancelled, refunding 80%% of order ID: %d", orderID)
		if _, err := s.bank.MakePayment(ctx, refundAccount, finance.BankCommercial, refundAmount, memo); err != nil {
			s.logger.Error("cancellation refund failed",
				slog.Int64("order_id", orderID), slog.Any("error", err))
		}
	}

	s.logger.Info("case order cancelled", slog.Int64("order_id", orderID))
	return nil
}

// ExpireUnpaid cancels every payment_pending order older than
// PaymentExpiryDays simulated days. It returns how many orders it expired.
func (s *Service) ExpireUnpaid(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPaymentPending(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range pending {
		age, err := s.clock.DaysSince(order.OrderedAt)
		if err != nil {
			s.logger.Warn("unparseable order date",
				slog.Int64("order_id", order.ID), slog.String("ordered_at", order.OrderedAt))
			continue
		}
		if age <= PaymentExpiryDays {
			continue
		}
		if err := s.Cancel(ctx, order.ID); err != nil {
			if errors.Is(err, ErrNotCancellable) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}
