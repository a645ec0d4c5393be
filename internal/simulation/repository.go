// Package simulation controls the lifecycle of a simulation run: start,
// stop and resume after a restart while a run is still active.
package simulation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// Repository resets all run-scoped state in one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// defaultRecipe seeds equipment parameters until the first market sync
// overwrites them.
const (
	defaultPlasticRatio   = 4
	defaultAluminiumRatio = 7
	defaultProductionRate = 200
)

// Reset wipes orders, purchases, the bank mirror and processed payment keys,
// zeroes every stock counter and reseeds the default recipe.
func (r *Repository) Reset(ctx context.Context) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM case_orders`,
			`DELETE FROM external_order_items`,
			`DELETE FROM external_orders`,
			`DELETE FROM bank_details`,
			`DELETE FROM idempotency_keys`,
			`DELETE FROM equipment_parameters`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO equipment_parameters
(plastic_ratio, aluminium_ratio, production_rate)
VALUES ($1, $2, $3)`, defaultPlasticRatio, defaultAluminiumRatio, defaultProductionRate); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE stock SET total_units = 0, ordered_units = 0`)
		return err
	})
}
