package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var (
	ErrRecordNotFound    = errors.New("inventory record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the inventory ledger. Both mutations are single conditional
// UPDATE statements checked by affected-row count, so concurrent reservations
// against the same row serialize inside the database and can never drive
// available_qty negative.
type Repository interface {
	Reserve(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error
	Release(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error
	Get(ctx context.Context, q db.Querier, productID, variantID int64) (*Record, error)
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) Reserve(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("inventory: reserve quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE inventory_records
		SET available_qty = available_qty - $3,
		    sold_qty = sold_qty + $3,
		    updated_at = now()
		WHERE product_id = $1 AND variant_id = $2 AND available_qty >= $3
	`

	cmdTag, err := q.Exec(ctx, query, productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: failed to reserve %d of %d/%d: %w", quantity, productID, variantID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Zero rows means either no such record or not enough stock. Probe to
		// tell the caller which, inside the same transaction.
		var exists bool
		err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM inventory_records WHERE product_id = $1 AND variant_id = $2)`,
			productID, variantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("inventory: failed to probe record %d/%d: %w", productID, variantID, err)
		}
		if !exists {
			return ErrRecordNotFound
		}
		return ErrInsufficientStock
	}

	return nil
}

func (r *postgresRepository) Release(ctx context.Context, q db.Querier, productID, variantID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("inventory: release quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE inventory_records
		SET available_qty = available_qty + $3,
		    sold_qty = sold_qty - $3,
		    updated_at = now()
		WHERE product_id = $1 AND variant_id = $2
	`

	cmdTag, err := q.Exec(ctx, query, productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: failed to release %d of %d/%d: %w", quantity, productID, variantID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (r *postgresRepository) Get(ctx context.Context, q db.Querier, productID, variantID int64) (*Record, error) {
	query := `
		SELECT id, product_id, variant_id, available_qty, sold_qty, created_at, updated_at
		FROM inventory_records
		WHERE product_id = $1 AND variant_id = $2
	`

	var rec Record
	err := q.QueryRow(ctx, query, productID, variantID).Scan(
		&rec.ID,
		&rec.ProductID,
		&rec.VariantID,
		&rec.AvailableQty,
		&rec.SoldQty,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("inventory: failed to select record %d/%d: %w", productID, variantID, err)
	}

	return &rec, nil
}
