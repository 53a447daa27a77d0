package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/ngophong010/bamito-backend-sub000/internal/catalog"
	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// SnapshotBuilder turns requested (product, variant, quantity) triples into
// frozen line items priced from the catalog as it stands right now. It is a
// pure read-and-compute step: no inventory or voucher state is touched here.
type SnapshotBuilder struct {
	catalog catalog.Repository
}

func NewSnapshotBuilder(catalogRepo catalog.Repository) *SnapshotBuilder {
	return &SnapshotBuilder{catalog: catalogRepo}
}

// Build resolves every requested item against the catalog and returns the
// priced line items plus their sum. A missing product or variant fails the
// whole build with catalog.ErrItemUnavailable rather than silently dropping
// the line.
func (b *SnapshotBuilder) Build(ctx context.Context, q db.Querier, items []ItemRequest) ([]LineItem, int64, error) {
	if len(items) == 0 {
		return nil, 0, ErrEmptyOrder
	}

	lines := make([]LineItem, 0, len(items))
	var subtotal int64

	for _, req := range items {
		if req.Quantity <= 0 {
			return nil, 0, fmt.Errorf("order: product %d: %w (got %d)", req.ProductID, ErrInvalidQuantity, req.Quantity)
		}

		pv, err := b.catalog.GetPricedVariant(ctx, q, req.ProductID, req.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrItemUnavailable) {
				return nil, 0, fmt.Errorf("order: product %d variant %d: %w", req.ProductID, req.VariantID, err)
			}
			return nil, 0, err
		}

		unit := pv.UnitPrice()
		lines = append(lines, LineItem{
			ProductID:   pv.ProductID,
			VariantID:   pv.VariantID,
			Quantity:    req.Quantity,
			UnitPrice:   unit,
			ProductName: pv.ProductName,
			VariantName: pv.VariantName,
			ImageURL:    pv.ImageURL,
		})
		subtotal += unit * req.Quantity
	}

	return lines, subtotal, nil
}
