package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var ErrItemUnavailable = errors.New("catalog item unavailable")

type Repository interface {
	GetPricedVariant(ctx context.Context, q db.Querier, productID, variantID int64) (*PricedVariant, error)
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) GetPricedVariant(ctx context.Context, q db.Querier, productID, variantID int64) (*PricedVariant, error) {
	query := `
		SELECT p.id, v.id, p.name, v.descriptor, p.image_url, p.price, p.discount_pct
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE p.id = $1 AND v.id = $2
	`

	var pv PricedVariant
	err := q.QueryRow(ctx, query, productID, variantID).Scan(
		&pv.ProductID,
		&pv.VariantID,
		&pv.ProductName,
		&pv.VariantName,
		&pv.ImageURL,
		&pv.Price,
		&pv.DiscountPct,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemUnavailable
		}
		return nil, fmt.Errorf("catalog: failed to select priced variant %d/%d: %w", productID, variantID, err)
	}

	return &pv, nil
}
