package order

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusDelivering Status = "DELIVERING"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusCancelled  Status = "CANCELLED"
	StatusDeleted    Status = "DELETED"
)

func (s Status) String() string {
	return string(s)
}

// allowedTransitions is the full lifecycle of an order. SUCCEEDED, CANCELLED
// and DELETED are terminal. DELETED is an administrative soft-delete reachable
// from any non-terminal state; it never reverses inventory.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusDelivering: true,
		StatusCancelled:  true,
		StatusDeleted:    true,
	},
	StatusDelivering: {
		StatusSucceeded: true,
		StatusDeleted:   true,
	},
	StatusSucceeded: {},
	StatusCancelled: {},
	StatusDeleted:   {},
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s Status) CanTransitionTo(next Status) bool {
	return allowedTransitions[s][next]
}

// Order is the durable financial record of one checkout. TotalPrice is
// computed once at creation from the line-item snapshot and never recomputed.
type Order struct {
	ID              int64      `json:"id"`
	OrderCode       string     `json:"order_code"`
	UserID          int64      `json:"user_id"`
	VoucherID       *int64     `json:"voucher_id,omitempty"`
	TotalPrice      int64      `json:"total_price"`
	PaymentMethod   string     `json:"payment_method"`
	DeliveryAddress string     `json:"delivery_address"`
	Status          Status     `json:"status"`
	LineItems       []LineItem `json:"line_items"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LineItem freezes one purchased (product, variant) pair at order time:
// quantity, unit price after discount, and denormalized display data so later
// catalog edits never corrupt the historical record. FeedbackSubmitted is the
// only field ever mutated after creation.
type LineItem struct {
	ID                int64     `json:"id"`
	OrderID           int64     `json:"order_id"`
	ProductID         int64     `json:"product_id"`
	VariantID         int64     `json:"variant_id"`
	Quantity          int64     `json:"quantity"`
	UnitPrice         int64     `json:"unit_price"`
	ProductName       string    `json:"product_name"`
	VariantName       string    `json:"variant_name"`
	ImageURL          string    `json:"image_url"`
	FeedbackSubmitted bool      `json:"feedback_submitted"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ItemRequest is the shopper's intent for one line: what and how many. Prices
// are deliberately absent; the snapshot builder derives them from the catalog.
type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int64 `json:"quantity"`
}
