package finance

import (
	"context"
	"fmt"
	"sync"
)

// MockBank is the in-process bank used when USE_MOCK_CLIENTS is set, so the
// simulation can run without the commercial bank service. It applies the
// same lending cap behaviour as the real bank: oversized loan requests are
// granted at the remaining cap.
type MockBank struct {
	mu      sync.Mutex
	opened  bool
	account Account
	loans   []Loan
	loanCap float64
	loanSeq int
	txSeq   int
}

// NewMockBank constructs a MockBank with a fixed lending cap.
func NewMockBank() *MockBank {
	return &MockBank{loanCap: 500000}
}

// OpenAccount creates the single mock account.
func (m *MockBank) OpenAccount(ctx context.Context, notificationURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		m.opened = true
		m.account = Account{Number: "ACC001000"}
	}
	return m.account.Number, nil
}

// MyAccount returns the mock account.
func (m *MockBank) MyAccount(ctx context.Context) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return Account{}, ErrNoAccount
	}
	return m.account, nil
}

// Balance returns the mock balance.
func (m *MockBank) Balance(ctx context.Context) (float64, error) {
	account, err := m.MyAccount(ctx)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// SetNotificationURL is a no-op for the mock.
func (m *MockBank) SetNotificationURL(ctx context.Context, url string) error { return nil }

// CheckFrozen always reports an active account.
func (m *MockBank) CheckFrozen(ctx context.Context) (bool, error) { return false, nil }

// OutstandingLoans lists granted mock loans.
func (m *MockBank) OutstandingLoans(ctx context.Context) (LoanSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := LoanSummary{Loans: append([]Loan(nil), m.loans...)}
	for _, l := range m.loans {
		summary.TotalDue += l.Due
	}
	return summary, nil
}

// TakeLoan grants up to the remaining lending cap.
func (m *MockBank) TakeLoan(ctx context.Context, amount float64) (LoanResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return LoanResult{}, ErrNoAccount
	}
	var due float64
	for _, l := range m.loans {
		due += l.Due
	}
	remaining := m.loanCap - due
	if remaining <= 0 {
		return LoanResult{}, ErrLoanRejected
	}
	granted := min(amount, remaining)
	m.loanSeq++
	loan := Loan{Number: fmt.Sprintf("LOAN%06d", m.loanSeq), Due: granted}
	m.loans = append(m.loans, loan)
	m.account.Balance += granted
	return LoanResult{Approved: true, Number: loan.Number, Amount: granted}, nil
}

// RepayLoan reduces one loan's due amount.
func (m *MockBank) RepayLoan(ctx context.Context, loanNumber string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.loans {
		if m.loans[i].Number == loanNumber {
			m.loans[i].Due = max(m.loans[i].Due-amount, 0)
			m.account.Balance -= amount
			return nil
		}
	}
	return fmt.Errorf("%w: unknown loan %s", ErrLoanRejected, loanNumber)
}

// MakePayment debits the mock balance.
func (m *MockBank) MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		return Payment{}, ErrNoAccount
	}
	m.txSeq++
	m.account.Balance -= amount
	return Payment{
		TransactionNumber: fmt.Sprintf("TXN%08d", m.txSeq),
		Status:            "success",
		Success:           true,
	}, nil
}

// Transaction is not tracked by the mock.
func (m *MockBank) Transaction(ctx context.Context, number string) (Transaction, error) {
	return Transaction{Number: number, Status: "success"}, nil
}
