package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrLineItemNotFound   = errors.New("order line item not found")
	ErrDuplicateOrderCode = errors.New("order code already exists")
	ErrStatusChanged      = errors.New("order status changed concurrently")
)

type Repository interface {
	// Create inserts the order and its line items using the given Querier,
	// which the workflow passes as the enclosing transaction. A duplicate
	// order_code surfaces as ErrDuplicateOrderCode.
	Create(ctx context.Context, q db.Querier, o *Order) error
	GetByCode(ctx context.Context, q db.Querier, orderCode string) (*Order, error)
	// ListByUser returns the user's orders newest first, soft-deleted orders
	// excluded.
	ListByUser(ctx context.Context, q db.Querier, userID int64) ([]Order, error)
	// UpdateStatusFrom flips the status only if the row still holds the
	// expected current status; losing that race returns ErrStatusChanged.
	UpdateStatusFrom(ctx context.Context, q db.Querier, orderID int64, from, to Status) error
	MarkFeedbackSubmitted(ctx context.Context, q db.Querier, lineItemID int64) error
}

type postgresRepository struct{}

func NewRepository() Repository {
	return &postgresRepository{}
}

func (r *postgresRepository) Create(ctx context.Context, q db.Querier, o *Order) error {
	orderQuery := `
		INSERT INTO orders (order_code, user_id, voucher_id, total_price, payment_method, delivery_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(ctx, orderQuery,
		o.OrderCode,
		o.UserID,
		o.VoucherID,
		o.TotalPrice,
		o.PaymentMethod,
		o.DeliveryAddress,
		string(o.Status),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateOrderCode
		}
		return fmt.Errorf("repository: failed to insert order %s: %w", o.OrderCode, err)
	}

	itemQuery := `
		INSERT INTO order_line_items (order_id, product_id, variant_id, quantity, unit_price, product_name, variant_name, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	for i := range o.LineItems {
		item := &o.LineItems[i]
		item.OrderID = o.ID

		err := q.QueryRow(ctx, itemQuery,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			item.Quantity,
			item.UnitPrice,
			item.ProductName,
			item.VariantName,
			item.ImageURL,
		).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert line item for order %s: %w", o.OrderCode, err)
		}
	}

	return nil
}

func (r *postgresRepository) GetByCode(ctx context.Context, q db.Querier, orderCode string) (*Order, error) {
	orderQuery := `
		SELECT id, order_code, user_id, voucher_id, total_price, payment_method, delivery_address, status, created_at, updated_at
		FROM orders
		WHERE order_code = $1
	`

	var o Order
	err := q.QueryRow(ctx, orderQuery, orderCode).Scan(
		&o.ID,
		&o.OrderCode,
		&o.UserID,
		&o.VoucherID,
		&o.TotalPrice,
		&o.PaymentMethod,
		&o.DeliveryAddress,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", orderCode, err)
	}

	items, err := r.lineItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.LineItems = items

	return &o, nil
}

func (r *postgresRepository) lineItems(ctx context.Context, q db.Querier, orderID int64) ([]LineItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, product_name, variant_name, image_url, feedback_submitted, created_at, updated_at
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query line items for order %d: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]LineItem, 0)
	for rows.Next() {
		var item LineItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.UnitPrice,
			&item.ProductName,
			&item.VariantName,
			&item.ImageURL,
			&item.FeedbackSubmitted,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan line item for order %d: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating line items for order %d: %w", orderID, err)
	}

	return items, nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, q db.Querier, userID int64) ([]Order, error) {
	ordersQuery := `
		SELECT id, order_code, user_id, voucher_id, total_price, payment_method, delivery_address, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1 AND status <> $2
		ORDER BY created_at DESC
	`

	rows, err := q.Query(ctx, ordersQuery, userID, string(StatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %d: %w", userID, err)
	}
	defer rows.Close()

	ordersMap := make(map[int64]*Order)
	var orderIDs []int64

	for rows.Next() {
		var o Order
		err := rows.Scan(
			&o.ID,
			&o.OrderCode,
			&o.UserID,
			&o.VoucherID,
			&o.TotalPrice,
			&o.PaymentMethod,
			&o.DeliveryAddress,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for user %d: %w", userID, err)
		}
		o.LineItems = make([]LineItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for user %d: %w", userID, err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	itemsQuery := `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, product_name, variant_name, image_url, feedback_submitted, created_at, updated_at
		FROM order_line_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`

	itemRows, err := q.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query line items for user %d: %w", userID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item LineItem
		err := itemRows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.UnitPrice,
			&item.ProductName,
			&item.VariantName,
			&item.ImageURL,
			&item.FeedbackSubmitted,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan line item for user %d: %w", userID, err)
		}
		if o, ok := ordersMap[item.OrderID]; ok {
			o.LineItems = append(o.LineItems, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating line items for user %d: %w", userID, err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	return result, nil
}

func (r *postgresRepository) UpdateStatusFrom(ctx context.Context, q db.Querier, orderID int64, from, to Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`

	cmdTag, err := q.Exec(ctx, query, string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to update status of order %d: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return fmt.Errorf("repository: failed to probe order %d: %w", orderID, err)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrStatusChanged
	}

	return nil
}

func (r *postgresRepository) MarkFeedbackSubmitted(ctx context.Context, q db.Querier, lineItemID int64) error {
	query := `
		UPDATE order_line_items
		SET feedback_submitted = TRUE, updated_at = now()
		WHERE id = $1
	`

	cmdTag, err := q.Exec(ctx, query, lineItemID)
	if err != nil {
		return fmt.Errorf("repository: failed to mark feedback on line item %d: %w", lineItemID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrLineItemNotFound
	}

	return nil
}
