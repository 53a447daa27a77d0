package cart

import "time"

// Cart is the per-user staging area. Its line items carry only the shopper's
// intent (what, how many) plus a price estimate for display; authoritative
// prices are re-derived from the catalog at order creation.
type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type LineItem struct {
	ID          int64     `json:"id"`
	CartID      int64     `json:"cart_id"`
	ProductID   int64     `json:"product_id"`
	VariantID   int64     `json:"variant_id"`
	Quantity    int64     `json:"quantity"`
	CachedPrice int64     `json:"cached_price"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
