package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// AccountCache is the local mirror of the bank ledger, refreshed
// opportunistically on every successful account read.
type AccountCache interface {
	Get(ctx context.Context) (Account, error)
	Replace(ctx context.Context, account Account) error
}

// Bank is the capability set the orchestration core needs from a bank.
type Bank interface {
	OpenAccount(ctx context.Context, notificationURL string) (string, error)
	MyAccount(ctx context.Context) (Account, error)
	Balance(ctx context.Context) (float64, error)
	SetNotificationURL(ctx context.Context, url string) error
	CheckFrozen(ctx context.Context) (bool, error)
	OutstandingLoans(ctx context.Context) (LoanSummary, error)
	TakeLoan(ctx context.Context, amount float64) (LoanResult, error)
	RepayLoan(ctx context.Context, loanNumber string, amount float64) error
	MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (Payment, error)
	Transaction(ctx context.Context, number string) (Transaction, error)
}

// HTTPBank talks to the commercial bank API.
type HTTPBank struct {
	baseURL    string
	httpClient *http.Client
	cache      AccountCache
	logger     *slog.Logger
}

// NewHTTPBank constructs a bank client with a bounded request timeout.
func NewHTTPBank(baseURL string, timeout time.Duration, cache AccountCache, logger *slog.Logger) *HTTPBank {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPBank{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		logger:     logger,
	}
}

type accountWire struct {
	AccountNumber string      `json:"account_number"`
	NetBalance    json.Number `json:"net_balance"`
}

// OpenAccount creates the company account and registers the payment
// notification callback.
func (b *HTTPBank) OpenAccount(ctx context.Context, notificationURL string) (string, error) {
	var out accountWire
	err := b.do(ctx, http.MethodPost, "/account", map[string]string{"callbackURL": notificationURL}, &out)
	if err != nil {
		return "", err
	}
	if out.AccountNumber == "" {
		return "", fmt.Errorf("%w: bank returned empty account number", ErrBankUnavailable)
	}
	return out.AccountNumber, nil
}

// MyAccount fetches the account and refreshes the local cache. When the bank
// is down it falls back to the cached row.
func (b *HTTPBank) MyAccount(ctx context.Context) (Account, error) {
	var out accountWire
	if err := b.do(ctx, http.MethodGet, "/account/me", nil, &out); err != nil {
		if b.cache != nil {
			if cached, cacheErr := b.cache.Get(ctx); cacheErr == nil {
				return cached, nil
			}
		}
		return Account{}, err
	}
	if out.AccountNumber == "" {
		return Account{}, ErrNoAccount
	}
	account := Account{Number: out.AccountNumber, Balance: numberToFloat(out.NetBalance)}
	b.refreshCache(ctx, account)
	return account, nil
}

// Balance returns the current balance, preferring the live bank value and
// degrading to the local mirror when the bank is unreachable.
func (b *HTTPBank) Balance(ctx context.Context) (float64, error) {
	account, err := b.MyAccount(ctx)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// SetNotificationUrl registers the payment webhook.
func (b *HTTPBank) SetNotificationURL(ctx context.Context, url string) error {
	var out struct {
		Success bool `json:"success"`
	}
	if err := b.do(ctx, http.MethodPost, "/account/me/notify", map[string]string{"notification_url": url}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: notification url not accepted", ErrBankUnavailable)
	}
	return nil
}

// CheckFrozen reports whether the account has been frozen by the bank.
func (b *HTTPBank) CheckFrozen(ctx context.Context) (bool, error) {
	var out struct {
		Frozen bool `json:"frozen"`
	}
	if err := b.do(ctx, http.MethodGet, "/account/me/frozen", nil, &out); err != nil {
		return false, err
	}
	return out.Frozen, nil
}

// OutstandingLoans lists the open loan book.
func (b *HTTPBank) OutstandingLoans(ctx context.Context) (LoanSummary, error) {
	var out struct {
		TotalDue json.Number `json:"total_due"`
		Loans    []struct {
			LoanNumber string      `json:"loan_number"`
			Due        json.Number `json:"due"`
		} `json:"loans"`
	}
	if err := b.do(ctx, http.MethodGet, "/account/me/loans", nil, &out); err != nil {
		return LoanSummary{}, err
	}
	summary := LoanSummary{TotalDue: numberToFloat(out.TotalDue)}
	for _, l := range out.Loans {
		summary.Loans = append(summary.Loans, Loan{Number: l.LoanNumber, Due: numberToFloat(l.Due)})
	}
	return summary, nil
}

// TakeLoan applies for a loan. On a partial approval, where the bank rejects
// the amount but counters with the maximum it will grant, the application is
// retried once at the counter-offer before reporting failure.
func (b *HTTPBank) TakeLoan(ctx context.Context, amount float64) (LoanResult, error) {
	result, counter, err := b.applyForLoan(ctx, amount)
	if err != nil {
		return LoanResult{}, err
	}
	if result.Approved {
		return result, nil
	}
	if counter <= 0 {
		return LoanResult{}, ErrLoanRejected
	}
	b.logger.Info("loan partially approved, retrying at counter-offer",
		slog.Float64("requested", amount), slog.Float64("offered", counter))
	result, _, err = b.applyForLoan(ctx, counter)
	if err != nil {
		return LoanResult{}, err
	}
	if !result.Approved {
		return LoanResult{}, ErrLoanRejected
	}
	return result, nil
}

func (b *HTTPBank) applyForLoan(ctx context.Context, amount float64) (LoanResult, float64, error) {
	var out struct {
		Success         bool        `json:"success"`
		LoanNumber      string      `json:"loan_number"`
		AmountRemaining json.Number `json:"amount_remaining"`
	}
	if err := b.do(ctx, http.MethodPost, "/loan", map[string]float64{"amount": amount}, &out); err != nil {
		return LoanResult{}, 0, err
	}
	if !out.Success {
		return LoanResult{}, numberToFloat(out.AmountRemaining), nil
	}
	return LoanResult{Approved: true, Number: out.LoanNumber, Amount: amount}, 0, nil
}

// RepayLoan pays down one loan.
func (b *HTTPBank) RepayLoan(ctx context.Context, loanNumber string, amount float64) error {
	var out struct {
		Success bool `json:"success"`
	}
	path := "/loan/" + loanNumber + "/pay"
	if err := b.do(ctx, http.MethodPost, path, map[string]float64{"amount": amount}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: repayment refused for loan %s", ErrBankUnavailable, loanNumber)
	}
	return nil
}

// MakePayment transfers amount to an account at another bank on the clearing
// network. The memo carries the business reference (order id, payment
// reference) the counterparty keys off.
func (b *HTTPBank) MakePayment(ctx context.Context, toAccount, toBank string, amount float64, memo string) (Payment, error) {
	body := map[string]any{
		"to_account_number": toAccount,
		"to_bank_name":      toBank,
		"amount":            amount,
		"description":       memo,
	}
	var out struct {
		Success           bool   `json:"success"`
		TransactionNumber string `json:"transaction_number"`
		Status            string `json:"status"`
	}
	if err := b.do(ctx, http.MethodPost, "/transaction", body, &out); err != nil {
		return Payment{}, err
	}
	return Payment{TransactionNumber: out.TransactionNumber, Status: out.Status, Success: out.Success}, nil
}

// Transaction fetches one transfer record by its idempotency-keyed number.
func (b *HTTPBank) Transaction(ctx context.Context, number string) (Transaction, error) {
	var out struct {
		TransactionNumber string      `json:"transaction_number"`
		From              string      `json:"from"`
		To                string      `json:"to"`
		Amount            json.Number `json:"amount"`
		Description       string      `json:"description"`
		Status            string      `json:"status"`
		Timestamp         int64       `json:"timestamp"`
	}
	if err := b.do(ctx, http.MethodGet, "/transaction/"+number, nil, &out); err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Number:      out.TransactionNumber,
		From:        out.From,
		To:          out.To,
		Amount:      numberToFloat(out.Amount),
		Description: out.Description,
		Status:      out.Status,
		Timestamp:   out.Timestamp,
	}, nil
}

func (b *HTTPBank) refreshCache(ctx context.Context, account Account) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Replace(ctx, account); err != nil {
		b.logger.Warn("refresh account cache", slog.Any("error", err))
	}
}

func (b *HTTPBank) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("finance: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("finance: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBankUnavailable, method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s returned %d", ErrNoAccount, method, path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s %s returned %d", ErrBankUnavailable, method, path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBankUnavailable, path, err)
	}
	return nil
}

func numberToFloat(n json.Number) float64 {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0
	}
	return f
}
