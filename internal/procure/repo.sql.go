package procure

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// order_type_id values in the external_orders table.
var kindIDs = map[Kind]int{
	KindMaterial: 1,
	KindMachine:  2,
}

// Repository persists external orders and their items.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWithItems inserts the order and its items in one transaction.
func (r *Repository) CreateWithItems(ctx context.Context, o ExternalOrder) (ExternalOrder, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO external_orders
(order_reference, total_cost, order_type_id, ordered_at)
VALUES ($1, $2, $3, $4)
RETURNING id`, o.Reference, o.TotalCost, kindIDs[o.Kind], o.OrderedAt).Scan(&o.ID)
		if err != nil {
			return err
		}
		for _, item := range o.Items {
			_, err := tx.Exec(ctx, `INSERT INTO external_order_items
(order_id, stock_type_id, ordered_units, per_unit_cost)
VALUES ($1, (SELECT id FROM stock_types WHERE name = $2), $3, $4)`,
				o.ID, string(item.StockType), item.OrderedUnits, item.PerUnitCost)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ExternalOrder{}, err
	}
	return o, nil
}

// SetShipmentReference stamps the logistics reference onto the order named
// by its market reference.
func (r *Repository) SetShipmentReference(ctx context.Context, orderReference, shipmentReference string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE external_orders
SET shipment_reference = $2
WHERE order_reference = $1`, orderReference, shipmentReference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByShipmentReference resolves an inbound delivery to the order it
// fulfils, including the purchased line.
func (r *Repository) FindByShipmentReference(ctx context.Context, shipmentReference string) (ExternalOrder, error) {
	var (
		o      ExternalOrder
		kindID int
		item   ExternalOrderItem
	)
	err := r.pool.QueryRow(ctx, `SELECT eo.id, eo.order_reference, eo.total_cost, eo.order_type_id,
eo.ordered_at, COALESCE(eo.shipment_reference, ''), st.name, eoi.ordered_units, eoi.per_unit_cost
FROM external_orders eo
JOIN external_order_items eoi ON eoi.order_id = eo.id
JOIN stock_types st ON eoi.stock_type_id = st.id
WHERE eo.shipment_reference = $1`, shipmentReference).Scan(
		&o.ID, &o.Reference, &o.TotalCost, &kindID,
		&o.OrderedAt, &o.ShipmentReference, &item.StockType, &item.OrderedUnits, &item.PerUnitCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ExternalOrder{}, ErrNotFound
		}
		return ExternalOrder{}, err
	}
	for kind, id := range kindIDs {
		if id == kindID {
			o.Kind = kind
		}
	}
	o.Items = []ExternalOrderItem{item}
	return o, nil
}
