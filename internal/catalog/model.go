package catalog

// PricedVariant is the catalog's current answer for one (product, variant)
// pair: display data plus the price and discount in effect right now. Orders
// snapshot these values; they are never read back from the catalog later.
type PricedVariant struct {
	ProductID   int64
	VariantID   int64
	ProductName string
	VariantName string
	ImageURL    string
	Price       int64
	DiscountPct int
}

// UnitPrice is the per-unit price after the product-level discount.
func (p PricedVariant) UnitPrice() int64 {
	return p.Price * int64(100-p.DiscountPct) / 100
}
