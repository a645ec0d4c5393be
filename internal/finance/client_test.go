package finance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	account *Account
}

func (c *memoryCache) Get(ctx context.Context) (Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil {
		return Account{}, ErrNoAccount
	}
	return *c.account, nil
}

func (c *memoryCache) Replace(ctx context.Context, account Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = &account
	return nil
}

func TestTakeLoanRetriesOnceAtCounterOffer(t *testing.T) {
	var amounts []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/loan", r.URL.Path)
		var body struct {
			Amount float64 `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amounts = append(amounts, body.Amount)

		if body.Amount > 60000 {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "amount_remaining": 60000})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "loan_number": "LOAN000042"})
	}))
	defer srv.Close()

	bank := NewHTTPBank(srv.URL, time.Second, nil, slog.Default())
	result, err := bank.TakeLoan(context.Background(), 100000)
	require.NoError(t, err)
	require.True(t, result.Approved)
	require.Equal(t, "LOAN000042", result.Number)
	require.InDelta(t, 60000, result.Amount, 0.001)
	require.Equal(t, []float64{100000, 60000}, amounts)
}

func TestTakeLoanRejectedWithoutCounterOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
	}))
	defer srv.Close()

	bank := NewHTTPBank(srv.URL, time.Second, nil, slog.Default())
	_, err := bank.TakeLoan(context.Background(), 100000)
	require.ErrorIs(t, err, ErrLoanRejected)
}

func TestBalanceFallsBackToCacheWhenBankDown(t *testing.T) {
	cache := &memoryCache{}
	require.NoError(t, cache.Replace(context.Background(), Account{Number: "ACC001000", Balance: 12345}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	bank := NewHTTPBank(srv.URL, time.Second, cache, slog.Default())
	balance, err := bank.Balance(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 12345, balance, 0.001)
}

func TestMyAccountRefreshesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"account_number": "ACC001000", "net_balance": 987.5})
	}))
	defer srv.Close()

	cache := &memoryCache{}
	bank := NewHTTPBank(srv.URL, time.Second, cache, slog.Default())
	account, err := bank.MyAccount(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ACC001000", account.Number)

	cached, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 987.5, cached.Balance, 0.001)
}

func TestMalformedResponseMapsToBankUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	bank := NewHTTPBank(srv.URL, time.Second, nil, slog.Default())
	_, err := bank.MyAccount(context.Background())
	require.ErrorIs(t, err, ErrBankUnavailable)
}

func TestNoAccountMapsToErrNoAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no account", http.StatusUnauthorized)
	}))
	defer srv.Close()

	bank := NewHTTPBank(srv.URL, time.Second, nil, slog.Default())
	_, err := bank.MyAccount(context.Background())
	require.ErrorIs(t, err, ErrNoAccount)
}
