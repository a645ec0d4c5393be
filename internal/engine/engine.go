// Package engine holds the periodic decision engine: once per simulated day
// it inspects cash and inventory and decides what to borrow and what to buy.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/procure"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// Thresholds tune the buying policy.
type Thresholds struct {
	// PlasticMin and AluminiumMin are the on-hand-plus-ordered floors below
	// which demand-driven restocking kicks in.
	PlasticMin   int64
	AluminiumMin int64
	// MachineMin is the machine count below which another machine is bought
	// regardless of demand.
	MachineMin int64
	// DemandThreshold is the reserved/available ratio above which demand
	// counts as high.
	DemandThreshold float64
	// ExcessCashThreshold triggers opportunistic buying of everything.
	ExcessCashThreshold float64
	// LowCashThreshold triggers a top-up loan instead of any purchasing.
	LowCashThreshold float64

	BootstrapLoanAmount float64
	TopUpLoanAmount     float64
	MaterialBuyQuantity int64
	MachineBuyQuantity  int64
}

// DefaultThresholds returns the production policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlasticMin:          1000,
		AluminiumMin:        1000,
		MachineMin:          10,
		DemandThreshold:     0.5,
		ExcessCashThreshold: 200000,
		LowCashThreshold:    2000,
		BootstrapLoanAmount: 500000,
		TopUpLoanAmount:     100000,
		MaterialBuyQuantity: 1000,
		MachineBuyQuantity:  1,
	}
}

// Bank is the slice of the bank the engine drives.
type Bank interface {
	MyAccount(ctx context.Context) (finance.Account, error)
	OpenAccount(ctx context.Context, notificationURL string) (string, error)
	Balance(ctx context.Context) (float64, error)
	OutstandingLoans(ctx context.Context) (finance.LoanSummary, error)
	TakeLoan(ctx context.Context, amount float64) (finance.LoanResult, error)
}

// AccountStore persists the opened account locally.
type AccountStore interface {
	Replace(ctx context.Context, account finance.Account) error
}

// Inventory is the stock surface the engine reasons about.
type Inventory interface {
	MaterialCounts(ctx context.Context) (stock.MaterialCounts, error)
	AvailableCases(ctx context.Context) (stock.CaseAvailability, error)
}

// Purchaser executes the buy decisions.
type Purchaser interface {
	BuyRawMaterial(ctx context.Context, materialType stock.ItemType, quantity int64) error
	BuyMachines(ctx context.Context, quantity int64) error
}

// state is the snapshot a single engine run decides on.
type state struct {
	balance   float64
	loans     finance.LoanSummary
	materials stock.MaterialCounts
	cases     stock.CaseAvailability
}

func (s state) demandRatio() float64 {
	if s.cases.AvailableUnits <= 0 {
		return 0
	}
	return float64(s.cases.ReservedUnits) / float64(s.cases.AvailableUnits)
}

// Engine is the simulated day tick job making financing and procurement
// decisions.
type Engine struct {
	bank            Bank
	accounts        AccountStore
	inventory       Inventory
	purchaser       Purchaser
	notificationURL string
	thresholds      Thresholds
	logger          *slog.Logger
}

func New(bank Bank, accounts AccountStore, inventory Inventory, purchaser Purchaser, notificationURL string, thresholds Thresholds, logger *slog.Logger) *Engine {
	return &Engine{
		bank:            bank,
		accounts:        accounts,
		inventory:       inventory,
		purchaser:       purchaser,
		notificationURL: notificationURL,
		thresholds:      thresholds,
		logger:          logger,
	}
}

func (e *Engine) Name() string { return "decision_engine" }

// Run executes one decision cycle. Individual purchase failures are logged
// and do not stop the other decisions.
func (e *Engine) Run(ctx context.Context) error {
	if _, err := e.bank.MyAccount(ctx); err != nil {
		if errors.Is(err, finance.ErrNoAccount) {
			return e.bootstrap(ctx)
		}
		return err
	}

	st, err := e.observe(ctx)
	if err != nil {
		return err
	}

	if st.balance < e.thresholds.LowCashThreshold {
		loan, err := e.bank.TakeLoan(ctx, e.thresholds.TopUpLoanAmount)
		if err != nil {
			e.logger.Warn("top-up loan failed", slog.Any("error", err))
			return nil
		}
		e.logger.Info("took top-up loan",
			slog.String("loan_number", loan.Number), slog.Float64("amount", loan.Amount))
		return nil
	}

	e.decideMaterial(ctx, st, stock.TypePlastic, st.materials.Plastic, e.thresholds.PlasticMin)
	e.decideMaterial(ctx, st, stock.TypeAluminium, st.materials.Aluminium, e.thresholds.AluminiumMin)
	e.decideMachine(ctx, st)
	return nil
}

// bootstrap opens the bank account, registers the payment webhook and takes
// the starting loan. Purchasing starts on the next cycle.
func (e *Engine) bootstrap(ctx context.Context) error {
	number, err := e.bank.OpenAccount(ctx, e.notificationURL)
	if err != nil {
		return err
	}
	if err := e.accounts.Replace(ctx, finance.Account{Number: number}); err != nil {
		return err
	}
	e.logger.Info("opened bank account", slog.String("account_number", number))

	loan, err := e.bank.TakeLoan(ctx, e.thresholds.BootstrapLoanAmount)
	if err != nil {
		e.logger.Warn("bootstrap loan failed", slog.Any("error", err))
		return nil
	}
	e.logger.Info("took bootstrap loan",
		slog.String("loan_number", loan.Number), slog.Float64("amount", loan.Amount))
	return nil
}

func (e *Engine) observe(ctx context.Context) (state, error) {
	var st state

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.balance, err = e.bank.Balance(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.loans, err = e.bank.OutstandingLoans(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.materials, err = e.inventory.MaterialCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		st.cases, err = e.inventory.AvailableCases(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return state{}, err
	}

	e.logger.Info("engine state",
		slog.Float64("balance", st.balance),
		slog.Float64("loans_due", st.loans.TotalDue),
		slog.Int64("plastic", st.materials.Plastic),
		slog.Int64("aluminium", st.materials.Aluminium),
		slog.Int64("machines", st.materials.Machine),
		slog.Int64("cases_available", st.cases.AvailableUnits),
		slog.Int64("cases_reserved", st.cases.ReservedUnits))
	return st, nil
}

// shouldBuyMaterial restocks when inventory is low while demand is high, or
// whenever cash is abundant.
func (e *Engine) shouldBuyMaterial(st state, onHand, minimum int64) bool {
	lowWithDemand := onHand < minimum && st.demandRatio() > e.thresholds.DemandThreshold
	return lowWithDemand || st.balance > e.thresholds.ExcessCashThreshold
}

func (e *Engine) decideMaterial(ctx context.Context, st state, t stock.ItemType, onHand, minimum int64) {
	if !e.shouldBuyMaterial(st, onHand, minimum) {
		e.logger.Debug("material stock sufficient", slog.String("material", string(t)))
		return
	}
	if err := e.purchaser.BuyRawMaterial(ctx, t, e.thresholds.MaterialBuyQuantity); err != nil {
		if errors.Is(err, procure.ErrInsufficientFunds) || errors.Is(err, procure.ErrNothingToBuy) {
			e.logger.Info("skipped material purchase",
				slog.String("material", string(t)), slog.Any("reason", err))
			return
		}
		e.logger.Warn("material purchase failed",
			slog.String("material", string(t)), slog.Any("error", err))
	}
}

func (e *Engine) decideMachine(ctx context.Context, st state) {
	if st.materials.Machine >= e.thresholds.MachineMin && st.balance <= e.thresholds.ExcessCashThreshold {
		e.logger.Debug("machine count sufficient")
		return
	}
	if err := e.purchaser.BuyMachines(ctx, e.thresholds.MachineBuyQuantity); err != nil {
		if errors.Is(err, procure.ErrInsufficientFunds) || errors.Is(err, procure.ErrNothingToBuy) {
			e.logger.Info("skipped machine purchase", slog.Any("reason", err))
			return
		}
		e.logger.Warn("machine purchase failed", slog.Any("error", err))
	}
}
