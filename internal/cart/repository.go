package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var ErrLineItemNotFound = errors.New("cart line item not found")

type Repository interface {
	// GetOrCreate returns the user's cart with its line items, creating an
	// empty cart on first touch.
	GetOrCreate(ctx context.Context, q db.Querier, userID int64) (*Cart, error)
	// UpsertItem sets the quantity and cached price for one (product, variant)
	// line, inserting it if absent.
	UpsertItem(ctx context.Context, q db.Querier, cartID int64, item LineItem) error
	RemoveItem(ctx context.Context, q db.Querier, cartID, productID, variantID int64) error
	// Clear deletes all line items of the user's cart. Runs inside the order
	// creation transaction so a failed order leaves the cart intact.
	Clear(ctx context.Context, q db.Querier, userID int64) error
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) GetOrCreate(ctx context.Context, q db.Querier, userID int64) (*Cart, error) {
	query := `
		INSERT INTO carts (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
		RETURNING id, user_id, created_at, updated_at
	`

	var c Cart
	err := q.QueryRow(ctx, query, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("cart: failed to get or create cart for user %d: %w", userID, err)
	}

	itemsQuery := `
		SELECT id, cart_id, product_id, variant_id, quantity, cached_price, created_at, updated_at
		FROM cart_line_items
		WHERE cart_id = $1
		ORDER BY created_at
	`

	rows, err := q.Query(ctx, itemsQuery, c.ID)
	if err != nil {
		return nil, fmt.Errorf("cart: failed to query line items for cart %d: %w", c.ID, err)
	}
	defer rows.Close()

	c.Items = make([]LineItem, 0)
	for rows.Next() {
		var item LineItem
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.CachedPrice,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("cart: failed to scan line item for cart %d: %w", c.ID, err)
		}
		c.Items = append(c.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart: error iterating line items for cart %d: %w", c.ID, err)
	}

	return &c, nil
}

func (r *postgresRepository) UpsertItem(ctx context.Context, q db.Querier, cartID int64, item LineItem) error {
	query := `
		INSERT INTO cart_line_items (cart_id, product_id, variant_id, quantity, cached_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id, variant_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, cached_price = EXCLUDED.cached_price, updated_at = now()
	`

	_, err := q.Exec(ctx, query, cartID, item.ProductID, item.VariantID, item.Quantity, item.CachedPrice)
	if err != nil {
		return fmt.Errorf("cart: failed to upsert item %d/%d in cart %d: %w", item.ProductID, item.VariantID, cartID, err)
	}

	return nil
}

func (r *postgresRepository) RemoveItem(ctx context.Context, q db.Querier, cartID, productID, variantID int64) error {
	query := `
		DELETE FROM cart_line_items
		WHERE cart_id = $1 AND product_id = $2 AND variant_id = $3
	`

	cmdTag, err := q.Exec(ctx, query, cartID, productID, variantID)
	if err != nil {
		return fmt.Errorf("cart: failed to remove item %d/%d from cart %d: %w", productID, variantID, cartID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrLineItemNotFound
	}

	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, q db.Querier, userID int64) error {
	query := `
		DELETE FROM cart_line_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`

	if _, err := q.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("cart: failed to clear cart for user %d: %w", userID, err)
	}

	return nil
}
