package finance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// AccountStore keeps the single bank_details row: a denormalised mirror of
// the external bank's account used when the bank cannot be reached.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore constructs AccountStore.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns the cached account.
func (s *AccountStore) Get(ctx context.Context) (Account, error) {
	var account Account
	err := s.pool.QueryRow(ctx, `SELECT account_number, account_balance FROM bank_details LIMIT 1`).
		Scan(&account.Number, &account.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNoAccount
		}
		return Account{}, err
	}
	return account, nil
}

// Replace swaps the cached row for the given account snapshot.
func (s *AccountStore) Replace(ctx context.Context, account Account) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM bank_details`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO bank_details (account_number, account_balance) VALUES ($1,$2)`,
			account.Number, account.Balance)
		return err
	})
}
