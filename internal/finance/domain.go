// Package finance wraps the external commercial bank: account lifecycle,
// loans and payment transfers. Callers must treat the bank as possibly
// unavailable; every operation degrades to a wrapped ErrBankUnavailable
// instead of panicking.
package finance

import "errors"

// Bank names and well-known accounts on the inter-company clearing network.
const (
	BankCommercial = "commercial-bank"
	BankSupplier   = "thoh"

	// SupplierSettlementAccount is the supplier market's fixed settlement
	// account for procurement payments.
	SupplierSettlementAccount = "000000000000"
)

// Account is the company's bank account.
type Account struct {
	Number  string
	Balance float64
}

// Loan describes one outstanding loan.
type Loan struct {
	Number string
	Due    float64
}

// LoanSummary aggregates the outstanding loan book.
type LoanSummary struct {
	TotalDue float64
	Loans    []Loan
}

// LoanResult reports the outcome of a loan application.
type LoanResult struct {
	Approved bool
	Number   string
	Amount   float64
}

// Payment is the bank's receipt for a transfer.
type Payment struct {
	TransactionNumber string
	Status            string
	Success           bool
}

// Transaction is a historical transfer record.
type Transaction struct {
	Number      string
	From        string
	To          string
	Amount      float64
	Description string
	Status      string
	Timestamp   int64
}

var (
	// ErrBankUnavailable wraps any transport or service failure talking to
	// the bank. Callers skip the current action and let the next tick or
	// queue redelivery retry.
	ErrBankUnavailable = errors.New("finance: bank unavailable")
	// ErrNoAccount indicates no bank account has been opened yet.
	ErrNoAccount = errors.New("finance: no bank account")
	// ErrLoanRejected indicates the bank declined the loan, including the
	// retry at its counter-offer amount.
	ErrLoanRejected = errors.New("finance: loan rejected")
)
