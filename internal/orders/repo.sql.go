package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// Repository persists case orders in PostgreSQL. Status values are stored
// normalised through the order_statuses reference table.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the row-locked operations the service runs inside one
// transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	Insert(ctx context.Context, o Order) (Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AddPayment(ctx context.Context, id int64, amount float64, accountNumber string) error
	AddDelivered(ctx context.Context, id int64, quantity int64) error
	CaseAvailability(ctx context.Context) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `co.id, os.name, co.quantity, co.quantity_delivered,
co.total_price, co.amount_paid, COALESCE(co.account_number, ''), co.ordered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Status, &o.Quantity, &o.QuantityDelivered,
		&o.TotalPrice, &o.AmountPaid, &o.AccountNumber, &o.OrderedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

// Get reads one order without locking.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM case_orders co
JOIN order_statuses os ON co.order_status_id = os.id
WHERE co.id = $1`, id))
}

// ListPaymentPending returns every order still awaiting payment.
func (r *Repository) ListPaymentPending(ctx context.Context) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
FROM case_orders co
JOIN order_statuses os ON co.order_status_id = os.id
WHERE os.name = $1
ORDER BY co.id`, string(StatusPaymentPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CasePrice computes the selling price per case from current input costs via
// the calculate_case_price database function.
func (r *Repository) CasePrice(ctx context.Context, plasticPerCase, aluminiumPerCase, markup float64) (float64, error) {
	var price float64
	err := r.pool.QueryRow(ctx, `SELECT selling_price FROM calculate_case_price($1, $2, $3)`,
		plasticPerCase, aluminiumPerCase, markup).Scan(&price)
	if err != nil {
		return 0, err
	}
	return price, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	return scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+`
FROM case_orders co
JOIN order_statuses os ON co.order_status_id = os.id
WHERE co.id = $1
FOR UPDATE OF co`, id))
}

func (r *txRepository) Insert(ctx context.Context, o Order) (Order, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO case_orders
(order_status_id, quantity, total_price, ordered_at)
VALUES ((SELECT id FROM order_statuses WHERE name = $1), $2, $3, $4)
RETURNING id`, string(o.Status), o.Quantity, o.TotalPrice, o.OrderedAt).Scan(&o.ID)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE case_orders
SET order_status_id = (SELECT id FROM order_statuses WHERE name = $2)
WHERE id = $1`, id, string(status))
	return err
}

func (r *txRepository) AddPayment(ctx context.Context, id int64, amount float64, accountNumber string) error {
	_, err := r.tx.Exec(ctx, `UPDATE case_orders
SET amount_paid = amount_paid + $2, account_number = $3
WHERE id = $1`, id, amount, accountNumber)
	return err
}

func (r *txRepository) AddDelivered(ctx context.Context, id int64, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE case_orders
SET quantity_delivered = quantity_delivered + $2
WHERE id = $1`, id, quantity)
	return err
}

// CaseAvailability reads reservation-aware availability inside the creation
// transaction. The case stock row is locked first: snapshot isolation alone
// does not stop two concurrent creations from both passing the check, so
// every check-then-reserve sequence must queue on the same row lock.
func (r *txRepository) CaseAvailability(ctx context.Context) (int64, error) {
	var stockID int64
	err := r.tx.QueryRow(ctx, `SELECT s.id
FROM stock s
JOIN stock_types st ON s.stock_type_id = st.id
WHERE st.name = 'case'
FOR UPDATE OF s`).Scan(&stockID)
	if err != nil {
		return 0, err
	}

	var available int64
	err = r.tx.QueryRow(ctx, `SELECT available_units
FROM case_stock_status
WHERE stock_name = 'case'`).Scan(&available)
	if err != nil {
		return 0, err
	}
	return available, nil
}
