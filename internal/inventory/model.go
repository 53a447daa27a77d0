package inventory

import "time"

// Record is the ledger row for one (product, variant) pair. AvailableQty and
// SoldQty only ever move through Reserve and Release; AvailableQty never goes
// below zero.
type Record struct {
	ID           int64     `json:"id"`
	ProductID    int64     `json:"product_id"`
	VariantID    int64     `json:"variant_id"`
	AvailableQty int64     `json:"available_qty"`
	SoldQty      int64     `json:"sold_qty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
