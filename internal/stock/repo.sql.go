package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// Repository persists stock counters in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes row-locked operations used by the service inside one
// transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, t ItemType) (Item, error)
	SetUnits(ctx context.Context, t ItemType, total, ordered int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get reads one stock row without locking.
func (r *Repository) Get(ctx context.Context, t ItemType) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT st.name, s.total_units, s.ordered_units
FROM stock s
JOIN stock_types st ON s.stock_type_id = st.id
WHERE st.name = $1`, string(t)).Scan(&item.Type, &item.TotalUnits, &item.OrderedUnits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrUnknownType
		}
		return Item{}, err
	}
	return item, nil
}

// CaseAvailability reads the reservation-aware case stock view.
func (r *Repository) CaseAvailability(ctx context.Context) (CaseAvailability, error) {
	var avail CaseAvailability
	err := r.pool.QueryRow(ctx, `SELECT total_units, reserved_units, available_units
FROM case_stock_status
WHERE stock_name = 'case'`).Scan(&avail.TotalUnits, &avail.ReservedUnits, &avail.AvailableUnits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CaseAvailability{}, ErrUnknownType
		}
		return CaseAvailability{}, err
	}
	return avail, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, t ItemType) (Item, error) {
	var item Item
	err := r.tx.QueryRow(ctx, `SELECT st.name, s.total_units, s.ordered_units
FROM stock s
JOIN stock_types st ON s.stock_type_id = st.id
WHERE st.name = $1
FOR UPDATE OF s`, string(t)).Scan(&item.Type, &item.TotalUnits, &item.OrderedUnits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrUnknownType
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepository) SetUnits(ctx context.Context, t ItemType, total, ordered int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock s SET total_units=$2, ordered_units=$3
FROM stock_types st
WHERE s.stock_type_id = st.id AND st.name = $1`, string(t), total, ordered)
	return err
}
