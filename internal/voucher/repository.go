package voucher

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var (
	ErrVoucherNotFound  = errors.New("voucher not found")
	ErrVoucherExhausted = errors.New("voucher exhausted")
	ErrVoucherNotActive = errors.New("voucher not active")
)

// Repository mutates voucher counters with the same single-conditional-update
// discipline as the inventory ledger.
type Repository interface {
	// Redeem decrements remaining_qty by one if the voucher is inside its
	// validity window with uses left, and returns the redeemed voucher.
	Redeem(ctx context.Context, q db.Querier, voucherCode string) (*Voucher, error)
	// Release returns one use to the voucher. Called exactly once per
	// cancellation of an order that redeemed it.
	Release(ctx context.Context, q db.Querier, voucherID int64) error
	GetByCode(ctx context.Context, q db.Querier, voucherCode string) (*Voucher, error)
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) Redeem(ctx context.Context, q db.Querier, voucherCode string) (*Voucher, error) {
	query := `
		UPDATE vouchers
		SET remaining_qty = remaining_qty - 1,
		    updated_at = now()
		WHERE voucher_code = $1
		  AND remaining_qty > 0
		  AND now() BETWEEN valid_from AND valid_to
		RETURNING id, voucher_code, discount_amount, remaining_qty, valid_from, valid_to, created_at, updated_at
	`

	var v Voucher
	err := q.QueryRow(ctx, query, voucherCode).Scan(
		&v.ID,
		&v.VoucherCode,
		&v.DiscountAmount,
		&v.RemainingQty,
		&v.ValidFrom,
		&v.ValidTo,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("voucher: failed to redeem %q: %w", voucherCode, err)
	}

	// The conditional update matched nothing. Probe the row to report the
	// precise refusal: missing, exhausted, or outside the validity window.
	existing, probeErr := r.GetByCode(ctx, q, voucherCode)
	if probeErr != nil {
		return nil, probeErr
	}
	if existing.RemainingQty <= 0 {
		return nil, ErrVoucherExhausted
	}
	return nil, ErrVoucherNotActive
}

func (r *postgresRepository) Release(ctx context.Context, q db.Querier, voucherID int64) error {
	query := `
		UPDATE vouchers
		SET remaining_qty = remaining_qty + 1,
		    updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := q.Exec(ctx, query, voucherID)
	if err != nil {
		return fmt.Errorf("voucher: failed to release voucher %d: %w", voucherID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}

	return nil
}

func (r *postgresRepository) GetByCode(ctx context.Context, q db.Querier, voucherCode string) (*Voucher, error) {
	query := `
		SELECT id, voucher_code, discount_amount, remaining_qty, valid_from, valid_to, created_at, updated_at
		FROM vouchers
		WHERE voucher_code = $1
	`

	var v Voucher
	err := q.QueryRow(ctx, query, voucherCode).Scan(
		&v.ID,
		&v.VoucherCode,
		&v.DiscountAmount,
		&v.RemainingQty,
		&v.ValidFrom,
		&v.ValidTo,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("voucher: failed to select voucher %q: %w", voucherCode, err)
	}

	return &v, nil
}
