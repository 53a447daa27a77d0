package voucher

import "time"

type Voucher struct {
	ID             int64     `json:"id"`
	VoucherCode    string    `json:"voucher_code"`
	DiscountAmount int64     `json:"discount_amount"`
	RemainingQty   int64     `json:"remaining_qty"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the voucher can be redeemed at the given instant.
func (v *Voucher) Active(now time.Time) bool {
	return v.RemainingQty > 0 && !now.Before(v.ValidFrom) && !now.After(v.ValidTo)
}
