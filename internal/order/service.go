package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ngophong010/bamito-backend-sub000/internal/apperr"
	"github.com/ngophong010/bamito-backend-sub000/internal/cart"
	"github.com/ngophong010/bamito-backend-sub000/internal/catalog"
	"github.com/ngophong010/bamito-backend-sub000/internal/db"
	"github.com/ngophong010/bamito-backend-sub000/internal/inventory"
	"github.com/ngophong010/bamito-backend-sub000/internal/notify"
	"github.com/ngophong010/bamito-backend-sub000/internal/voucher"
)

// CreateOrderInput describes one prospective order. OrderCode is normally left
// empty and generated here; the payment callback path supplies the code minted
// at redirect time so a redelivered callback maps onto the same order.
type CreateOrderInput struct {
	UserID          int64
	OrderCode       string
	PaymentMethod   string
	DeliveryAddress string
	VoucherCode     string
	Items           []ItemRequest
}

type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*Order, error)
	// QuoteTotal prices the items and applies the voucher without reserving
	// anything. Used to fix the amount embedded in a payment redirect.
	QuoteTotal(ctx context.Context, items []ItemRequest, voucherCode string) (int64, error)
	GetByCode(ctx context.Context, orderCode string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	Cancel(ctx context.Context, orderCode string) error
	AdvanceStatus(ctx context.Context, orderCode string, next Status) error
	Delete(ctx context.Context, orderCode string) error
	MarkFeedbackSubmitted(ctx context.Context, lineItemID int64) error
}

type service struct {
	txr       db.TxRunner
	q         db.Querier
	orders    Repository
	inventory inventory.Repository
	vouchers  voucher.Repository
	carts     cart.Repository
	snapshot  *SnapshotBuilder
	notifier  notify.Notifier
}

func NewService(
	txr db.TxRunner,
	q db.Querier,
	orders Repository,
	inventoryRepo inventory.Repository,
	voucherRepo voucher.Repository,
	cartRepo cart.Repository,
	snapshot *SnapshotBuilder,
	notifier notify.Notifier,
) Service {
	return &service{
		txr:       txr,
		q:         q,
		orders:    orders,
		inventory: inventoryRepo,
		vouchers:  voucherRepo,
		carts:     cartRepo,
		snapshot:  snapshot,
		notifier:  notifier,
	}
}

// Create runs the whole creation transition in one transaction: snapshot the
// prices, redeem the voucher, persist order and line items, reserve stock per
// line, clear the cart. Any failure rolls the entire sequence back.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if input.UserID <= 0 {
		return nil, apperr.New(apperr.KindValidation, "user id is required")
	}
	if input.PaymentMethod == "" {
		return nil, apperr.New(apperr.KindValidation, "payment method is required")
	}
	if input.DeliveryAddress == "" {
		return nil, apperr.New(apperr.KindValidation, "delivery address is required")
	}

	orderCode := input.OrderCode
	codeSupplied := orderCode != ""
	if !codeSupplied {
		code, genErr := uuid.NewV4()
		if genErr != nil {
			return nil, apperr.Wrap(apperr.KindTransient, fmt.Errorf("service: failed to generate order code: %w", genErr))
		}
		orderCode = code.String()
	}

	if codeSupplied {
		// A supplied code means a payment callback delivery. If the intent
		// already produced an order, answer with it before the snapshot or
		// voucher redemption run: a redelivery after the first one drained
		// the voucher (or after a catalog item vanished) must still be
		// treated as satisfied, not surface a fresh failure.
		existing, getErr := s.orders.GetByCode(ctx, s.q, orderCode)
		switch {
		case getErr == nil:
			log.Info().Str("order_code", orderCode).Msg("service: order intent already satisfied, returning existing order")
			return existing, nil
		case !errors.Is(getErr, ErrOrderNotFound):
			return nil, apperr.Wrap(apperr.KindTransient, getErr)
		}
	}

	var created *Order
	err := s.txr.WithTx(ctx, func(tx db.Querier) error {
		lines, subtotal, buildErr := s.snapshot.Build(ctx, tx, input.Items)
		if buildErr != nil {
			return classifySnapshotErr(buildErr)
		}

		var voucherID *int64
		var discount int64
		if input.VoucherCode != "" {
			v, redeemErr := s.vouchers.Redeem(ctx, tx, input.VoucherCode)
			if redeemErr != nil {
				return classifyVoucherErr(redeemErr)
			}
			voucherID = &v.ID
			discount = v.DiscountAmount
		}

		total := subtotal - discount
		if total < 0 {
			total = 0
		}

		newOrder := &Order{
			OrderCode:       orderCode,
			UserID:          input.UserID,
			VoucherID:       voucherID,
			TotalPrice:      total,
			PaymentMethod:   input.PaymentMethod,
			DeliveryAddress: input.DeliveryAddress,
			Status:          StatusPending,
			LineItems:       lines,
		}

		if createErr := s.orders.Create(ctx, tx, newOrder); createErr != nil {
			if errors.Is(createErr, ErrDuplicateOrderCode) {
				return createErr
			}
			return apperr.Wrap(apperr.KindTransient, createErr)
		}

		for _, line := range newOrder.LineItems {
			reserveErr := s.inventory.Reserve(ctx, tx, line.ProductID, line.VariantID, line.Quantity)
			if reserveErr != nil {
				switch {
				case errors.Is(reserveErr, inventory.ErrInsufficientStock):
					return apperr.Newf(apperr.KindConflict, "insufficient stock for %s (%s)", line.ProductName, line.VariantName)
				case errors.Is(reserveErr, inventory.ErrRecordNotFound):
					return apperr.Newf(apperr.KindNotFound, "no inventory record for %s (%s)", line.ProductName, line.VariantName)
				default:
					return apperr.Wrap(apperr.KindTransient, reserveErr)
				}
			}
		}

		if clearErr := s.carts.Clear(ctx, tx, input.UserID); clearErr != nil {
			return apperr.Wrap(apperr.KindTransient, clearErr)
		}

		created = newOrder
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrDuplicateOrderCode) {
			if codeSupplied {
				// A concurrent delivery of the same intent won the insert
				// between the probe above and ours. Answer with its order
				// instead of erroring or double-reserving.
				existing, getErr := s.orders.GetByCode(ctx, s.q, orderCode)
				if getErr != nil {
					return nil, apperr.Wrap(apperr.KindTransient, getErr)
				}
				log.Info().Str("order_code", orderCode).Msg("service: duplicate order intent, returning existing order")
				return existing, nil
			}
			return nil, apperr.Wrap(apperr.KindTransient, err)
		}
		return nil, err
	}

	log.Info().
		Str("order_code", created.OrderCode).
		Int64("user_id", created.UserID).
		Int64("total_price", created.TotalPrice).
		Msg("service: order created")

	go s.notifier.OrderConfirmed(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderCode:  created.OrderCode,
		UserID:     created.UserID,
		TotalPrice: created.TotalPrice,
	})

	return created, nil
}

func (s *service) QuoteTotal(ctx context.Context, items []ItemRequest, voucherCode string) (int64, error) {
	_, subtotal, err := s.snapshot.Build(ctx, s.q, items)
	if err != nil {
		return 0, classifySnapshotErr(err)
	}

	var discount int64
	if voucherCode != "" {
		v, err := s.vouchers.GetByCode(ctx, s.q, voucherCode)
		if err != nil {
			return 0, classifyVoucherErr(err)
		}
		if !v.Active(time.Now()) {
			if v.RemainingQty <= 0 {
				return 0, classifyVoucherErr(voucher.ErrVoucherExhausted)
			}
			return 0, classifyVoucherErr(voucher.ErrVoucherNotActive)
		}
		discount = v.DiscountAmount
	}

	total := subtotal - discount
	if total < 0 {
		total = 0
	}
	return total, nil
}

func (s *service) GetByCode(ctx context.Context, orderCode string) (*Order, error) {
	o, err := s.orders.GetByCode(ctx, s.q, orderCode)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, err)
		}
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}
	return o, nil
}

func (s *service) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, s.q, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err)
	}
	return orders, nil
}

// Cancel moves a PENDING order to CANCELLED and returns every reservation it
// held: each line item's stock and the redeemed voucher, all in the same
// transaction as the status flip. The conditional status update guarantees the
// releases run at most once even under concurrent cancel requests.
func (s *service) Cancel(ctx context.Context, orderCode string) error {
	var cancelled *Order
	err := s.txr.WithTx(ctx, func(tx db.Querier) error {
		o, getErr := s.orders.GetByCode(ctx, tx, orderCode)
		if getErr != nil {
			if errors.Is(getErr, ErrOrderNotFound) {
				return apperr.Wrap(apperr.KindNotFound, getErr)
			}
			return apperr.Wrap(apperr.KindTransient, getErr)
		}

		if o.Status != StatusPending {
			return apperr.Newf(apperr.KindConflict, "cannot cancel order in status %s", o.Status)
		}

		if updErr := s.orders.UpdateStatusFrom(ctx, tx, o.ID, StatusPending, StatusCancelled); updErr != nil {
			if errors.Is(updErr, ErrStatusChanged) {
				return apperr.Newf(apperr.KindConflict, "order %s left PENDING concurrently", orderCode)
			}
			return apperr.Wrap(apperr.KindTransient, updErr)
		}

		for _, line := range o.LineItems {
			if relErr := s.inventory.Release(ctx, tx, line.ProductID, line.VariantID, line.Quantity); relErr != nil {
				return apperr.Wrap(apperr.KindTransient, relErr)
			}
		}

		if o.VoucherID != nil {
			if relErr := s.vouchers.Release(ctx, tx, *o.VoucherID); relErr != nil {
				return apperr.Wrap(apperr.KindTransient, relErr)
			}
		}

		cancelled = o
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("order_code", orderCode).Msg("service: order cancelled")

	go s.notifier.OrderCancelled(context.WithoutCancel(ctx), notify.OrderEvent{
		OrderCode:  cancelled.OrderCode,
		UserID:     cancelled.UserID,
		TotalPrice: cancelled.TotalPrice,
	})

	return nil
}

// AdvanceStatus is the administrative fulfillment progression. It never touches
// inventory or vouchers; cancellation and deletion have their own paths.
func (s *service) AdvanceStatus(ctx context.Context, orderCode string, next Status) error {
	if next != StatusDelivering && next != StatusSucceeded {
		return apperr.Newf(apperr.KindValidation, "status %s is not an advance target", next)
	}

	return s.txr.WithTx(ctx, func(tx db.Querier) error {
		o, getErr := s.orders.GetByCode(ctx, tx, orderCode)
		if getErr != nil {
			if errors.Is(getErr, ErrOrderNotFound) {
				return apperr.Wrap(apperr.KindNotFound, getErr)
			}
			return apperr.Wrap(apperr.KindTransient, getErr)
		}

		if o.Status == next {
			log.Info().Str("order_code", orderCode).Stringer("status", next).Msg("service: order already in requested status")
			return nil
		}

		if !o.Status.CanTransitionTo(next) {
			return apperr.Newf(apperr.KindConflict, "invalid status transition from %s to %s", o.Status, next)
		}

		if updErr := s.orders.UpdateStatusFrom(ctx, tx, o.ID, o.Status, next); updErr != nil {
			if errors.Is(updErr, ErrStatusChanged) {
				return apperr.Newf(apperr.KindConflict, "order %s changed status concurrently", orderCode)
			}
			return apperr.Wrap(apperr.KindTransient, updErr)
		}

		log.Info().Str("order_code", orderCode).Stringer("old_status", o.Status).Stringer("new_status", next).Msg("service: order status advanced")
		return nil
	})
}

// Delete is the administrative soft-delete. The order row stays (financial
// history) and inventory is not reversed; the order just disappears from
// buyer-facing reads.
func (s *service) Delete(ctx context.Context, orderCode string) error {
	return s.txr.WithTx(ctx, func(tx db.Querier) error {
		o, getErr := s.orders.GetByCode(ctx, tx, orderCode)
		if getErr != nil {
			if errors.Is(getErr, ErrOrderNotFound) {
				return apperr.Wrap(apperr.KindNotFound, getErr)
			}
			return apperr.Wrap(apperr.KindTransient, getErr)
		}

		if !o.Status.CanTransitionTo(StatusDeleted) {
			return apperr.Newf(apperr.KindConflict, "cannot delete order in status %s", o.Status)
		}

		if updErr := s.orders.UpdateStatusFrom(ctx, tx, o.ID, o.Status, StatusDeleted); updErr != nil {
			if errors.Is(updErr, ErrStatusChanged) {
				return apperr.Newf(apperr.KindConflict, "order %s changed status concurrently", orderCode)
			}
			return apperr.Wrap(apperr.KindTransient, updErr)
		}

		log.Info().Str("order_code", orderCode).Msg("service: order soft-deleted")
		return nil
	})
}

func (s *service) MarkFeedbackSubmitted(ctx context.Context, lineItemID int64) error {
	if err := s.orders.MarkFeedbackSubmitted(ctx, s.q, lineItemID); err != nil {
		if errors.Is(err, ErrLineItemNotFound) {
			return apperr.Wrap(apperr.KindNotFound, err)
		}
		return apperr.Wrap(apperr.KindTransient, err)
	}
	return nil
}

func classifySnapshotErr(err error) error {
	switch {
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, ErrInvalidQuantity):
		return apperr.Wrap(apperr.KindValidation, err)
	case errors.Is(err, catalog.ErrItemUnavailable):
		return apperr.Wrap(apperr.KindNotFound, err)
	default:
		return apperr.Wrap(apperr.KindTransient, err)
	}
}

func classifyVoucherErr(err error) error {
	switch {
	case errors.Is(err, voucher.ErrVoucherNotFound):
		return apperr.Wrap(apperr.KindNotFound, err)
	case errors.Is(err, voucher.ErrVoucherExhausted), errors.Is(err, voucher.ErrVoucherNotActive):
		return apperr.Wrap(apperr.KindConflict, err)
	default:
		return apperr.Wrap(apperr.KindTransient, err)
	}
}
