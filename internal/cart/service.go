package cart

import (
	"context"
	"errors"

	"github.com/ngophong010/bamito-backend-sub000/internal/apperr"
	"github.com/ngophong010/bamito-backend-sub000/internal/catalog"
	"github.com/ngophong010/bamito-backend-sub000/internal/db"
)

type Service interface {
	GetCart(ctx context.Context, userID int64) (*Cart, error)
	// SetItem sets the quantity for one (product, variant) line, caching the
	// catalog's current unit price as a display estimate. The estimate is
	// never trusted at checkout.
	SetItem(ctx context.Context, userID, productID, variantID, quantity int64) (*Cart, error)
	RemoveItem(ctx context.Context, userID, productID, variantID int64) error
}

type service struct {
	q       db.Querier
	carts   Repository
	catalog catalog.Repository
}

func NewService(q db.Querier, carts Repository, catalogRepo catalog.Repository) Service {
	return &service{q: q, carts: carts, catalog: catalogRepo}
}

func (s *service) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, s.q, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}
	return c, nil
}

func (s *service) SetItem(ctx context.Context, userID, productID, variantID, quantity int64) (*Cart, error) {
	if quantity <= 0 {
		return nil, apperr.New(apperr.KindValidation, "quantity must be positive")
	}

	pv, err := s.catalog.GetPricedVariant(ctx, s.q, productID, variantID)
	if err != nil {
		if errors.Is(err, catalog.ErrItemUnavailable) {
			return nil, apperr.Wrap(apperr.KindNotFound, err)
		}
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}

	c, err := s.carts.GetOrCreate(ctx, s.q, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}

	item := LineItem{
		ProductID:   productID,
		VariantID:   variantID,
		Quantity:    quantity,
		CachedPrice: pv.UnitPrice(),
	}
	if err := s.carts.UpsertItem(ctx, s.q, c.ID, item); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}

	refreshed, err := s.carts.GetOrCreate(ctx, s.q, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}
	return refreshed, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, productID, variantID int64) error {
	c, err := s.carts.GetOrCreate(ctx, s.q, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, err)
	}

	if err := s.carts.RemoveItem(ctx, s.q, c.ID, productID, variantID); err != nil {
		if errors.Is(err, ErrLineItemNotFound) {
			return apperr.Wrap(apperr.KindNotFound, err)
		}
		return apperr.Wrap(apperr.KindTransient, err)
	}
	return nil
}
