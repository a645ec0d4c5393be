package equipment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/case-supplier/case-supplier/internal/platform/db"
)

// Repository persists equipment parameters in PostgreSQL. The table holds a
// single row that is replaced on every market sync.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the current parameters.
func (r *Repository) Get(ctx context.Context) (Parameters, error) {
	var p Parameters
	var weight *float64
	err := r.pool.QueryRow(ctx, `SELECT plastic_ratio, aluminium_ratio, production_rate, case_machine_weight
FROM equipment_parameters LIMIT 1`).Scan(&p.PlasticRatio, &p.AluminiumRatio, &p.ProductionRate, &weight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Parameters{}, ErrNotConfigured
		}
		return Parameters{}, err
	}
	if weight != nil {
		p.CaseMachineWeight = *weight
	}
	return p, nil
}

// Replace swaps the parameters row for a freshly synced recipe, carrying the
// known machine weight over so a re-sync does not lose it.
func (r *Repository) Replace(ctx context.Context, p Parameters) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var weight *float64
		err := tx.QueryRow(ctx, `SELECT case_machine_weight FROM equipment_parameters LIMIT 1`).Scan(&weight)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM equipment_parameters`); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO equipment_parameters (plastic_ratio, aluminium_ratio, production_rate, case_machine_weight)
VALUES ($1,$2,$3,$4)`, p.PlasticRatio, p.AluminiumRatio, p.ProductionRate, weight)
		return err
	})
}

// SetMachineWeight records the per-unit machine weight the first time a
// machine purchase reveals it. Later purchases leave the stored value alone.
func (r *Repository) SetMachineWeight(ctx context.Context, weight float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE equipment_parameters SET case_machine_weight=$1
WHERE case_machine_weight IS NULL`, weight)
	return err
}

// MachineWeight returns the stored per-unit machine weight.
func (r *Repository) MachineWeight(ctx context.Context) (float64, error) {
	var weight *float64
	err := r.pool.QueryRow(ctx, `SELECT case_machine_weight FROM equipment_parameters LIMIT 1`).Scan(&weight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotConfigured
		}
		return 0, err
	}
	if weight == nil || *weight <= 0 {
		return 0, ErrNoMachineWeight
	}
	return *weight, nil
}
